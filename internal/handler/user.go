package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
)

// UserHandler serves the self-profile endpoint.  Only GET on the
// collection path is supported; the remaining verbs are reserved.
type UserHandler struct {
	Users UserStore
}

func NewUserHandler(users UserStore) *UserHandler {
	return &UserHandler{Users: users}
}

// Get returns the logged-in user's own profile, including the social
// identity fields hidden from the admin listing.
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, currentUserID(c))
	if err != nil {
		return httperr.Unauthorized()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"email":       u.Email,
		"username":    u.Username,
		"name":        u.Name,
		"active":      u.Active,
		"created_at":  u.CreatedAt,
		"social_id":   u.SocialID,
		"social_type": u.SocialType,
	})
}

// NotImplemented answers the reserved self-profile verbs.
func (h *UserHandler) NotImplemented(c echo.Context) error {
	return httperr.NotImplemented()
}
