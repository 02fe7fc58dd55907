package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/user-account-service/internal/model"
)

const userColumns = "id,email,username,name,active,role,password_hash,reset_token_hash,email_token_hash,email_validation_date,social_id,social_type,social_access_token,created_at,updated_at"

// UserRepo persists users in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and populates its ID.  Email is normalized to
// lower case.  Duplicate-key violations come back as the sentinel for
// the violated field so racing registrations resolve to a validation
// error instead of a server error.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email,username,name,active,role,password_hash,email_token_hash,email_validation_date,social_id,social_type,social_access_token) VALUES (?,?,?,?,?,?,?,?,?,?,?)",
		u.Email, u.Username, u.Name, u.Active, int(u.Role), u.PasswordHash,
		u.EmailTokenHash, u.EmailValidationDate, u.SocialID, u.SocialType, u.SocialAccessToken)
	if err != nil {
		return translateDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// CreateWithEmailToken inserts the user and stores the digest of a
// freshly minted verification token in one transaction.  mint receives
// the new row id and returns the raw token plus the digest to persist;
// any failure rolls the insert back, so no account is ever committed
// without its verification-token digest.  The raw token is returned
// for dispatch.
func (r *UserRepo) CreateWithEmailToken(ctx context.Context, u *model.User, mint func(id uint64) (token, digest string, err error)) (string, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email,username,name,active,role,password_hash) VALUES (?,?,?,?,?,?)",
		u.Email, u.Username, u.Name, u.Active, int(u.Role), u.PasswordHash)
	if err != nil {
		return "", translateDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}
	rawToken, digest, err := mint(uint64(id))
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET email_token_hash=? WHERE id=?", digest, id); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	u.ID = uint64(id)
	u.EmailTokenHash = &digest
	return rawToken, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetBySocial fetches a user by provider id and provider name.
func (r *UserRepo) GetBySocial(ctx context.Context, socialID string, socialType model.SocialProvider) (model.User, error) {
	return r.getOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE social_id=? AND social_type=? LIMIT 1",
		socialID, string(socialType))
}

// ExistsEmail reports whether a user other than excludeID already uses
// the email.  Pass 0 to check against all users.
func (r *UserRepo) ExistsEmail(ctx context.Context, email string, excludeID uint64) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email=? AND id<>?", email, excludeID).Scan(&n)
	return n > 0, err
}

// ExistsUsername reports whether a user other than excludeID already
// uses the username.
func (r *UserRepo) ExistsUsername(ctx context.Context, username string, excludeID uint64) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE username=? AND id<>?", username, excludeID).Scan(&n)
	return n > 0, err
}

// Update persists the mutable profile fields of an already-loaded user.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?, username=?, name=?, active=?, role=?, password_hash=? WHERE id=?",
		u.Email, u.Username, u.Name, u.Active, int(u.Role), u.PasswordHash, u.ID)
	return translateDuplicate(err)
}

// SetPassword replaces the password hash.
func (r *UserRepo) SetPassword(ctx context.Context, id uint64, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, id)
	return err
}

// SetResetToken stores the bcrypt hash of an issued password-reset token.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=? WHERE id=?", tokenHash, id)
	return err
}

// ResetPassword writes the new password hash and clears the reset-token
// digest in one statement, conditioned on the digest still matching the
// one the caller just verified.  Concurrent redemptions race on that
// condition; the loser gets sql.ErrNoRows, so each token writes a
// password at most once.
func (r *UserRepo) ResetPassword(ctx context.Context, id uint64, passwordHash, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, reset_token_hash=NULL WHERE id=? AND reset_token_hash=?",
		passwordHash, id, tokenHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEmailToken stores the bcrypt hash of an issued verification token.
func (r *UserRepo) SetEmailToken(ctx context.Context, id uint64, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email_token_hash=? WHERE id=?", tokenHash, id)
	return err
}

// MarkEmailVerified activates the account, stamps the validation time
// and clears the verification token hash in one statement.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET active=1, email_validation_date=UTC_TIMESTAMP(), email_token_hash=NULL WHERE id=?", id)
	return err
}

// LinkSocial attaches a social identity to an existing account.
func (r *UserRepo) LinkSocial(ctx context.Context, id uint64, socialID string, socialType model.SocialProvider, accessToken string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET social_id=?, social_type=?, social_access_token=? WHERE id=?",
		socialID, string(socialType), accessToken, id)
	return translateDuplicate(err)
}

// UpdateSocialAccessToken refreshes the stored provider access token.
func (r *UserRepo) UpdateSocialAccessToken(ctx context.Context, id uint64, accessToken string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET social_access_token=? WHERE id=?", accessToken, id)
	return err
}

// SetStandalone gives a social account a local username and password.
func (r *UserRepo) SetStandalone(ctx context.Context, id uint64, username, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET username=?, password_hash=? WHERE id=?", username, passwordHash, id)
	return translateDuplicate(err)
}

// Delete removes the user and its group associations in one
// transaction.  Returns sql.ErrNoRows when no user matched.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_group_associations WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return tx.Commit()
}

// ListParams controls the paged user listing.  Filter is a
// comma-separated list of field:value pairs; OrderBy is a
// comma-separated list of "field" or "field desc" terms.  Both only
// accept whitelisted columns.
type ListParams struct {
	Page    int
	PerPage int
	Filter  string
	OrderBy string
}

// ListResult carries one page of users plus paging metadata.
type ListResult struct {
	Page          int
	PerPage       int
	NumberOfPages int
	Total         int
	Users         []model.User
}

// listColumns whitelists the columns list expressions may reference.
var listColumns = map[string]bool{
	"id": true, "email": true, "username": true, "name": true,
	"active": true, "role": true, "created_at": true, "updated_at": true,
}

// List returns one page of users matching the filter, ordered by the
// caller's terms with a final created_at DESC tiebreak so pagination is
// deterministic regardless of the requested ordering.
func (r *UserRepo) List(ctx context.Context, p ListParams) (ListResult, error) {
	where, args, err := buildFilter(p.Filter)
	if err != nil {
		return ListResult{}, err
	}
	orderBy, err := buildOrder(p.OrderBy)
	if err != nil {
		return ListResult{}, err
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return ListResult{}, err
	}

	if p.Page < 1 {
		p.Page = 1
	}
	offset := (p.Page - 1) * p.PerPage
	query := "SELECT " + userColumns + " FROM users" + where + orderBy + " LIMIT ? OFFSET ?"
	rows, err := r.DB.QueryContext(ctx, query, append(args, p.PerPage, offset)...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	res := ListResult{Page: p.Page, PerPage: p.PerPage, Total: total}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return ListResult{}, err
		}
		res.Users = append(res.Users, u)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}
	res.NumberOfPages = (total + p.PerPage - 1) / p.PerPage
	return res, nil
}

func buildFilter(filter string) (string, []any, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return "", nil, nil
	}
	var conds []string
	var args []any
	for _, term := range strings.Split(filter, ",") {
		field, value, ok := strings.Cut(strings.TrimSpace(term), ":")
		field = strings.TrimSpace(field)
		if !ok || !listColumns[field] {
			return "", nil, ErrBadListExpr
		}
		conds = append(conds, field+"=?")
		args = append(args, strings.TrimSpace(value))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(orderBy string) (string, error) {
	terms := []string{}
	for _, term := range strings.Split(orderBy, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		field, dir, _ := strings.Cut(term, " ")
		if !listColumns[field] {
			return "", ErrBadListExpr
		}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
			terms = append(terms, field)
		case "desc":
			terms = append(terms, field+" DESC")
		default:
			return "", ErrBadListExpr
		}
	}
	terms = append(terms, "created_at DESC") // deterministic tiebreak
	return " ORDER BY " + strings.Join(terms, ", "), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u                 model.User
		role              int
		passwordHash      sql.NullString
		resetTokenHash    sql.NullString
		emailTokenHash    sql.NullString
		emailValidatedAt  sql.NullTime
		socialID          sql.NullString
		socialType        sql.NullString
		socialAccessToken sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Name, &u.Active, &role,
		&passwordHash, &resetTokenHash, &emailTokenHash, &emailValidatedAt,
		&socialID, &socialType, &socialAccessToken, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if passwordHash.Valid {
		u.PasswordHash = &passwordHash.String
	}
	if resetTokenHash.Valid {
		u.ResetTokenHash = &resetTokenHash.String
	}
	if emailTokenHash.Valid {
		u.EmailTokenHash = &emailTokenHash.String
	}
	if emailValidatedAt.Valid {
		u.EmailValidationDate = &emailValidatedAt.Time
	}
	if socialID.Valid {
		u.SocialID = &socialID.String
	}
	if socialType.Valid {
		u.SocialType = &socialType.String
	}
	if socialAccessToken.Valid {
		u.SocialAccessToken = &socialAccessToken.String
	}
	return u, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, args ...any) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, query, args...))
}
