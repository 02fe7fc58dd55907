package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/mailer"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/repository"
	"github.com/iliyamo/user-account-service/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints: register,
// login, logout, status, password change plus the recovery/reset and
// email verification flows in the sibling files.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Hasher utils.Hasher
	Codecs Codecs
	Mail   mailer.Notifier
}

func NewAuthHandler(cfg config.Config, users UserStore, hasher utils.Hasher, codecs Codecs, mail mailer.Notifier) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Hasher: hasher, Codecs: codecs, Mail: mail}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordChangeReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Register creates an inactive user with a hashed password and the
// digest of a fresh verification token in one transaction, dispatches
// the welcome email (best-effort) and returns a session token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	ctx, cancel := reqCtx(c)
	defer cancel()

	var fields []httperr.FieldError
	if !emailRegex.MatchString(req.Email) {
		fields = append(fields, httperr.FieldError{Field: "email", Message: "value is not a valid email address"})
	} else if exists, err := h.Users.ExistsEmail(ctx, req.Email, 0); err != nil {
		return httperr.ServerError()
	} else if exists {
		fields = append(fields, httperr.FieldError{Field: "email", Message: "email already exists"})
	}
	if req.Username == "" {
		fields = append(fields, httperr.FieldError{Field: "username", Message: "field required"})
	} else if exists, err := h.Users.ExistsUsername(ctx, req.Username, 0); err != nil {
		return httperr.ServerError()
	} else if exists {
		fields = append(fields, httperr.FieldError{Field: "username", Message: "username already exists"})
	}
	if err := validPassword(req.Password); err != nil {
		fields = append(fields, httperr.FieldError{Field: "password", Message: err.Error()})
	}
	if strings.TrimSpace(req.Name) == "" {
		fields = append(fields, httperr.FieldError{Field: "name", Message: "field required"})
	}
	if len(fields) > 0 {
		return httperr.Validation(fields)
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return httperr.ServerError()
	}
	u := model.User{
		Email:        req.Email,
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
		Active:       false,
		Role:         model.RoleUser,
		PasswordHash: &hash,
	}
	emailToken, err := h.Users.CreateWithEmailToken(ctx, &u, func(id uint64) (string, string, error) {
		raw, err := h.Codecs.Email.Encode(id)
		if err != nil {
			return "", "", err
		}
		return raw, utils.HashToken(raw), nil
	})
	if err != nil {
		// A racing registration can slip past the pre-checks; the
		// unique keys are the arbiter and the loser gets a field error.
		if f, ok := duplicateField(err); ok {
			return httperr.Validation([]httperr.FieldError{f})
		}
		return httperr.ServerError()
	}
	if err := h.Mail.SendRegistrationEmail(ctx, u, emailToken); err != nil {
		log.Printf("registration email for user %d not dispatched: %v", u.ID, err)
	}

	authToken, err := h.Codecs.Auth.Encode(u.ID)
	if err != nil {
		return httperr.ServerError()
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Successfully registered.",
		"auth_token": authToken,
	})
}

// Login verifies the password for an email and returns a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return httperr.InvalidPayload()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("User does not exist.")
		}
		return httperr.ServerError()
	}
	if u.PasswordHash == nil || !h.Hasher.Verify(*u.PasswordHash, req.Password) {
		return httperr.InvalidPayload("Incorrect password.")
	}

	authToken, err := h.Codecs.Auth.Encode(u.ID)
	if err != nil {
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":    "Successfully logged in.",
		"auth_token": authToken,
	})
}

// Logout acknowledges a logout.  Sessions are stateless: the token
// stays valid until its natural expiry and the client discards it.
func (h *AuthHandler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Successfully logged out."})
}

// Status returns the authenticated user's profile snapshot.
func (h *AuthHandler) Status(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, currentUserID(c))
	if err != nil {
		return httperr.Unauthorized()
	}
	return c.JSON(http.StatusOK, echo.Map{
		"email":      u.Email,
		"username":   u.Username,
		"name":       u.Name,
		"active":     u.Active,
		"created_at": u.CreatedAt,
	})
}

// PasswordChange replaces the password of a logged-in user after
// verifying the current one.
func (h *AuthHandler) PasswordChange(c echo.Context) error {
	var req passwordChangeReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, currentUserID(c))
	if err != nil {
		return httperr.Unauthorized()
	}

	var fields []httperr.FieldError
	if u.PasswordHash == nil || !h.Hasher.Verify(*u.PasswordHash, req.CurrentPassword) {
		fields = append(fields, httperr.FieldError{Field: "current_password", Message: "Invalid current password. Please try again."})
	}
	if err := validPassword(req.NewPassword); err != nil {
		fields = append(fields, httperr.FieldError{Field: "new_password", Message: err.Error()})
	}
	if len(fields) > 0 {
		return httperr.Validation(fields)
	}

	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		return httperr.ServerError()
	}
	if err := h.Users.SetPassword(ctx, u.ID, hash); err != nil {
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Successfully changed password."})
}

// validPassword rejects empty and over-long passwords.  bcrypt caps
// input at 72 bytes, so anything longer can neither be hashed nor
// verified.
func validPassword(pw string) error {
	if pw == "" {
		return errors.New("field required")
	}
	if len(pw) > 72 {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// duplicateField maps a repository duplicate-key sentinel to the field
// error reported to the client.
func duplicateField(err error) (httperr.FieldError, bool) {
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return httperr.FieldError{Field: "email", Message: "email already exists"}, true
	case errors.Is(err, repository.ErrDuplicateUsername):
		return httperr.FieldError{Field: "username", Message: "username already exists"}, true
	default:
		return httperr.FieldError{}, false
	}
}
