package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/token"
)

// UserLoader loads a user by id for authentication checks.  The user
// repository satisfies it; tests substitute fakes.
type UserLoader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// ContextUserID is the context key under which the authenticated user's
// id is stored for downstream handlers.
const ContextUserID = "user_id"

// Authenticate returns middleware that resolves the bearer token into
// an existing user and stores the user id in the request context.
// Missing header, bad token and unknown user fail with 401.  Inactive
// users are allowed through: a freshly registered account must be able
// to check its status and re-request its verification email.
func Authenticate(users UserLoader, codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := resolveUser(c, users, codec, false)
			if err != nil {
				return err
			}
			c.Set(ContextUserID, u.ID)
			return next(c)
		}
	}
}

// RequirePrivileges is Authenticate plus a role gate: the resolved
// user must be active and its role must intersect the required mask or
// the request fails with 403.
func RequirePrivileges(users UserLoader, codec *token.Codec, mask model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := resolveUser(c, users, codec, true)
			if err != nil {
				return err
			}
			if !u.Role.Has(mask) {
				return httperr.Forbidden()
			}
			c.Set(ContextUserID, u.ID)
			return next(c)
		}
	}
}

func resolveUser(c echo.Context, users UserLoader, codec *token.Codec, requireActive bool) (model.User, error) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return model.User{}, httperr.Unauthorized()
	}
	raw := strings.TrimPrefix(auth, "Bearer ")

	uid, err := codec.Decode(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return model.User{}, httperr.Unauthorized("Signature expired. Please log in again.")
		}
		return model.User{}, httperr.Unauthorized("Invalid token. Please log in again.")
	}

	u, err := users.GetByID(c.Request().Context(), uid)
	if err != nil {
		return model.User{}, httperr.Unauthorized()
	}
	if requireActive && !u.Active {
		return model.User{}, httperr.Unauthorized()
	}
	return u, nil
}
