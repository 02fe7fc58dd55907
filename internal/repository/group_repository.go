package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/user-account-service/internal/model"
)

// GroupRepo persists groups and user-group membership rows.  GROUPS
// is a reserved word since MySQL 8.0.2, so the table name is quoted in
// every statement.
type GroupRepo struct{ DB *sql.DB }

func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{DB: db} }

// Create inserts a group and populates its ID.
func (r *GroupRepo) Create(ctx context.Context, g *model.Group) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO `groups` (name) VALUES (?)", strings.TrimSpace(g.Name))
	if err != nil {
		return translateDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}

// GetByID fetches a group by id.
func (r *GroupRepo) GetByID(ctx context.Context, id uint64) (model.Group, error) {
	var g model.Group
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,created_at,updated_at FROM `groups` WHERE id=? LIMIT 1", id).
		Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// UpdateName renames a group.  Returns sql.ErrNoRows when no group matched.
func (r *GroupRepo) UpdateName(ctx context.Context, id uint64, name string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE `groups` SET name=? WHERE id=?", strings.TrimSpace(name), id)
	if err != nil {
		return translateDuplicate(err)
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

// Delete removes the group and its membership rows in one transaction.
func (r *GroupRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_group_associations WHERE group_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM `groups` WHERE id=?", id)
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

// List returns all groups ordered by creation time, newest first.
func (r *GroupRepo) List(ctx context.Context) ([]model.Group, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,created_at,updated_at FROM `groups` ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// AddUser inserts a membership row.  Adding the same pair twice yields
// ErrDuplicate.
func (r *GroupRepo) AddUser(ctx context.Context, groupID, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_group_associations (user_id, group_id) VALUES (?,?)",
		userID, groupID)
	return translateDuplicate(err)
}

// RemoveUser deletes a membership row.  Returns sql.ErrNoRows when the
// pair was not associated.
func (r *GroupRepo) RemoveUser(ctx context.Context, groupID, userID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_group_associations WHERE user_id=? AND group_id=?",
		userID, groupID)
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

// ListMembers returns the users belonging to a group, newest members first.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID uint64) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT u."+strings.ReplaceAll(userColumns, ",", ",u.")+" FROM users u JOIN user_group_associations a ON a.user_id=u.id WHERE a.group_id=? ORDER BY a.created_at DESC",
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
