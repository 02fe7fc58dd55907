package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/token"
	"github.com/iliyamo/user-account-service/internal/utils"
)

// fakeStore is an in-memory UserStore mirroring the MySQL repository's
// semantics: unique keys, sql.ErrNoRows for misses, single-statement
// token clearing.
type fakeStore struct {
	users  map[uint64]*model.User
	nextID uint64

	// emailTokenErr fails the digest write inside CreateWithEmailToken,
	// which must then roll the insert back.
	emailTokenErr error
	// beforeResetWrite runs between the handler's digest check and the
	// conditioned password write, standing in for a concurrent redeemer.
	beforeResetWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uint64]*model.User{}, nextID: 0}
}

func (s *fakeStore) Create(_ context.Context, u *model.User) error {
	for _, e := range s.users {
		if e.Email == strings.ToLower(u.Email) {
			return repository.ErrDuplicateEmail
		}
		if e.Username == u.Username {
			return repository.ErrDuplicateUsername
		}
		if u.SocialID != nil && e.SocialID != nil && *e.SocialID == *u.SocialID {
			return repository.ErrDuplicateSocialID
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeStore) CreateWithEmailToken(ctx context.Context, u *model.User, mint func(id uint64) (string, string, error)) (string, error) {
	if err := s.Create(ctx, u); err != nil {
		return "", err
	}
	rollback := func() {
		delete(s.users, u.ID)
		s.nextID--
		u.ID = 0
	}
	raw, digest, err := mint(u.ID)
	if err != nil {
		rollback()
		return "", err
	}
	if s.emailTokenErr != nil {
		rollback()
		return "", s.emailTokenErr
	}
	u.EmailTokenHash = &digest
	s.users[u.ID].EmailTokenHash = &digest
	return raw, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (s *fakeStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeStore) GetBySocial(_ context.Context, socialID string, socialType model.SocialProvider) (model.User, error) {
	for _, u := range s.users {
		if u.SocialID != nil && *u.SocialID == socialID &&
			u.SocialType != nil && *u.SocialType == string(socialType) {
			return *u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (s *fakeStore) ExistsEmail(_ context.Context, email string, excludeID uint64) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.ID != excludeID && u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ExistsUsername(_ context.Context, username string, excludeID uint64) (bool, error) {
	for _, u := range s.users {
		if u.ID != excludeID && u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Update(_ context.Context, u *model.User) error {
	e, ok := s.users[u.ID]
	if !ok {
		return sql.ErrNoRows
	}
	e.Email = strings.ToLower(u.Email)
	e.Username = u.Username
	e.Name = u.Name
	e.Active = u.Active
	e.Role = u.Role
	e.PasswordHash = u.PasswordHash
	return nil
}

func (s *fakeStore) SetPassword(_ context.Context, id uint64, passwordHash string) error {
	if u, ok := s.users[id]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (s *fakeStore) SetResetToken(_ context.Context, id uint64, tokenHash string) error {
	if u, ok := s.users[id]; ok {
		u.ResetTokenHash = &tokenHash
	}
	return nil
}

func (s *fakeStore) ResetPassword(_ context.Context, id uint64, passwordHash, tokenHash string) error {
	if s.beforeResetWrite != nil {
		s.beforeResetWrite()
	}
	u, ok := s.users[id]
	if !ok || u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
		return sql.ErrNoRows
	}
	u.PasswordHash = &passwordHash
	u.ResetTokenHash = nil
	return nil
}

func (s *fakeStore) SetEmailToken(_ context.Context, id uint64, tokenHash string) error {
	if u, ok := s.users[id]; ok {
		u.EmailTokenHash = &tokenHash
	}
	return nil
}

func (s *fakeStore) MarkEmailVerified(_ context.Context, id uint64) error {
	if u, ok := s.users[id]; ok {
		now := time.Now().UTC()
		u.Active = true
		u.EmailValidationDate = &now
		u.EmailTokenHash = nil
	}
	return nil
}

func (s *fakeStore) LinkSocial(_ context.Context, id uint64, socialID string, socialType model.SocialProvider, accessToken string) error {
	if u, ok := s.users[id]; ok {
		st := string(socialType)
		u.SocialID = &socialID
		u.SocialType = &st
		u.SocialAccessToken = &accessToken
	}
	return nil
}

func (s *fakeStore) UpdateSocialAccessToken(_ context.Context, id uint64, accessToken string) error {
	if u, ok := s.users[id]; ok {
		u.SocialAccessToken = &accessToken
	}
	return nil
}

func (s *fakeStore) SetStandalone(_ context.Context, id uint64, username, passwordHash string) error {
	for _, u := range s.users {
		if u.ID != id && u.Username == username {
			return repository.ErrDuplicateUsername
		}
	}
	if u, ok := s.users[id]; ok {
		u.Username = username
		u.PasswordHash = &passwordHash
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uint64) error {
	if _, ok := s.users[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.users, id)
	return nil
}

func (s *fakeStore) List(_ context.Context, p repository.ListParams) (repository.ListResult, error) {
	var all []model.User
	for _, u := range s.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := len(all)
	start := (p.Page - 1) * p.PerPage
	if start > total {
		start = total
	}
	end := start + p.PerPage
	if end > total {
		end = total
	}
	return repository.ListResult{
		Page:          p.Page,
		PerPage:       p.PerPage,
		NumberOfPages: (total + p.PerPage - 1) / p.PerPage,
		Total:         total,
		Users:         all[start:end],
	}, nil
}

// sentEmail records one notifier dispatch.
type sentEmail struct {
	kind      string
	recipient string
	token     string
}

type fakeNotifier struct {
	sent []sentEmail
}

func (n *fakeNotifier) SendRegistrationEmail(_ context.Context, u model.User, token string) error {
	n.sent = append(n.sent, sentEmail{"registration", u.Email, token})
	return nil
}

func (n *fakeNotifier) SendPasswordRecoveryEmail(_ context.Context, u model.User, token string) error {
	n.sent = append(n.sent, sentEmail{"recovery", u.Email, token})
	return nil
}

func (n *fakeNotifier) SendEmailVerificationEmail(_ context.Context, u model.User, token string) error {
	n.sent = append(n.sent, sentEmail{"verification", u.Email, token})
	return nil
}

func (n *fakeNotifier) last(t *testing.T) sentEmail {
	t.Helper()
	if len(n.sent) == 0 {
		t.Fatal("no email was dispatched")
	}
	return n.sent[len(n.sent)-1]
}

// testCodecs returns short-lived codecs sharing one secret.
func testCodecs() Codecs {
	return Codecs{
		Auth:     token.NewCodec("test-secret", token.PurposeAuth, 0, 60),
		Password: token.NewCodec("test-secret", token.PurposePassword, 0, 60),
		Email:    token.NewCodec("test-secret", token.PurposeEmail, 0, 60),
	}
}

func testHasher() utils.Hasher { return utils.Hasher{Cost: bcrypt.MinCost} }

// newTestContext builds an echo context carrying a JSON body and an
// optional authenticated user id.
func newTestContext(method, path, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != 0 {
		c.Set(middleware.ContextUserID, userID)
	}
	return c, rec
}

// seedUser inserts a user with a bcrypt-hashed password.
func seedUser(t *testing.T, store *fakeStore, email, username, password string, role model.Role, active bool) model.User {
	t.Helper()
	hash, err := testHasher().Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := model.User{Email: email, Username: username, Name: username, Active: active, Role: role, PasswordHash: &hash}
	if err := store.Create(context.Background(), &u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
