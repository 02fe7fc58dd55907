// Package handler implements the HTTP endpoints.  Each handler bundles
// its dependencies explicitly (store, hasher, token codecs, notifier)
// instead of reaching for shared singletons, so flows are testable with
// in-memory fakes.
package handler

import (
	"context"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/middleware"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/token"
)

// UserStore is the persistence contract the handlers depend on.  The
// MySQL repository satisfies it; flow tests substitute an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	CreateWithEmailToken(ctx context.Context, u *model.User, mint func(id uint64) (token, digest string, err error)) (string, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetBySocial(ctx context.Context, socialID string, socialType model.SocialProvider) (model.User, error)
	ExistsEmail(ctx context.Context, email string, excludeID uint64) (bool, error)
	ExistsUsername(ctx context.Context, username string, excludeID uint64) (bool, error)
	Update(ctx context.Context, u *model.User) error
	SetPassword(ctx context.Context, id uint64, passwordHash string) error
	SetResetToken(ctx context.Context, id uint64, tokenHash string) error
	ResetPassword(ctx context.Context, id uint64, passwordHash, tokenHash string) error
	SetEmailToken(ctx context.Context, id uint64, tokenHash string) error
	MarkEmailVerified(ctx context.Context, id uint64) error
	LinkSocial(ctx context.Context, id uint64, socialID string, socialType model.SocialProvider, accessToken string) error
	UpdateSocialAccessToken(ctx context.Context, id uint64, accessToken string) error
	SetStandalone(ctx context.Context, id uint64, username, passwordHash string) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, p repository.ListParams) (repository.ListResult, error)
}

// GroupStore is the persistence contract for group management.
type GroupStore interface {
	Create(ctx context.Context, g *model.Group) error
	GetByID(ctx context.Context, id uint64) (model.Group, error)
	UpdateName(ctx context.Context, id uint64, name string) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context) ([]model.Group, error)
	AddUser(ctx context.Context, groupID, userID uint64) error
	RemoveUser(ctx context.Context, groupID, userID uint64) error
	ListMembers(ctx context.Context, groupID uint64) ([]model.User, error)
}

// Codecs bundles the three purpose-scoped token codecs.
type Codecs struct {
	Auth     *token.Codec
	Password *token.Codec
	Email    *token.Codec
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// currentUserID returns the authenticated user id placed in context by
// the auth middleware.  Zero means the route was misconfigured.
func currentUserID(c echo.Context) uint64 {
	if v, ok := c.Get(middleware.ContextUserID).(uint64); ok {
		return v
	}
	return 0
}

// reqCtx bounds the duration of database calls for a request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
