package handler

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/provider"
	"github.com/iliyamo/user-account-service/internal/repository"
)

// SocialHandler implements the OAuth login flows.  Providers are
// injected behind the provider.Provider contract so the callback logic
// is identical for GitHub and Facebook and testable with a fake.
type SocialHandler struct {
	Users    UserStore
	Codecs   Codecs
	Provider provider.Provider
}

func NewSocialHandler(users UserStore, codecs Codecs, p provider.Provider) *SocialHandler {
	return &SocialHandler{Users: users, Codecs: codecs, Provider: p}
}

// Login redirects the browser to the provider's consent screen.
func (h *SocialHandler) Login(c echo.Context) error {
	return c.Redirect(http.StatusFound, h.Provider.AuthURL(randomState()))
}

// Callback exchanges the authorization code for a provider profile,
// then finds or creates the local account.  Three outcomes: existing
// social identity (200), existing email that gets the identity linked
// (200), or a brand-new active user (201).
func (h *SocialHandler) Callback(c echo.Context) error {
	code := c.QueryParam("code")
	name := string(h.Provider.Name())

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Provider.ResolveProfile(ctx, code)
	if err != nil {
		log.Printf("%s profile resolution failed: %v", name, err)
		return httperr.BadRequest(fmt.Sprintf("Something went wrong with %s. Try again.", name))
	}

	u, err := h.Users.GetBySocial(ctx, p.SocialID, h.Provider.Name())
	switch {
	case err == nil:
		if err := h.Users.UpdateSocialAccessToken(ctx, u.ID, p.AccessToken); err != nil {
			return httperr.ServerError()
		}
		return h.respondWithToken(c, http.StatusOK, u.ID, fmt.Sprintf("logged in with %s", name))
	case errors.Is(err, sql.ErrNoRows):
		// fall through to the email lookup
	default:
		return httperr.ServerError()
	}

	u, err = h.Users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if err := h.Users.LinkSocial(ctx, u.ID, p.SocialID, h.Provider.Name(), p.AccessToken); err != nil {
			return httperr.ServerError()
		}
		return h.respondWithToken(c, http.StatusOK, u.ID, fmt.Sprintf("registered with %s and logged in", name))
	case errors.Is(err, sql.ErrNoRows):
		// brand-new user, active immediately: the provider vouches for the email
	default:
		return httperr.ServerError()
	}

	socialType := string(h.Provider.Name())
	nu := model.User{
		Email:             p.Email,
		Username:          p.Username,
		Name:              p.Name,
		Active:            true,
		Role:              model.RoleUser,
		SocialID:          &p.SocialID,
		SocialType:        &socialType,
		SocialAccessToken: &p.AccessToken,
	}
	if err := h.Users.Create(ctx, &nu); err != nil {
		// Two callbacks racing on the same identity: the unique social
		// key decides, the loser logs in against the winner's row.
		if errors.Is(err, repository.ErrDuplicateSocialID) {
			if u, err := h.Users.GetBySocial(ctx, p.SocialID, h.Provider.Name()); err == nil {
				return h.respondWithToken(c, http.StatusOK, u.ID, fmt.Sprintf("logged in with %s", name))
			}
		}
		return httperr.ServerError()
	}
	return h.respondWithToken(c, http.StatusCreated, nu.ID, fmt.Sprintf("registered with %s and logged in", name))
}

func (h *SocialHandler) respondWithToken(c echo.Context, status int, userID uint64, message string) error {
	authToken, err := h.Codecs.Auth.Encode(userID)
	if err != nil {
		return httperr.ServerError()
	}
	return c.JSON(status, echo.Map{"message": message, "auth_token": authToken})
}

type setStandaloneReq struct {
	Username    string `json:"username"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// SetStandaloneUser attaches a local username and password to a social
// account so its owner can also log in with credentials.
func (h *AuthHandler) SetStandaloneUser(c echo.Context) error {
	var req setStandaloneReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	if req.Username == "" || req.OldPassword == "" || req.NewPassword == "" {
		return httperr.InvalidPayload()
	}
	if err := validPassword(req.NewPassword); err != nil {
		return httperr.Validation([]httperr.FieldError{
			{Field: "new_password", Message: err.Error()},
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, currentUserID(c))
	if err != nil {
		return httperr.Unauthorized()
	}
	if !u.IsSocial() {
		return httperr.NotFound("Must be a social authenticated user login. Please try again.")
	}
	if u.PasswordHash == nil || !h.Hasher.Verify(*u.PasswordHash, req.OldPassword) {
		return httperr.NotFound("Incorrect old password. Please try again.")
	}

	if taken, err := h.Users.ExistsUsername(ctx, req.Username, u.ID); err != nil {
		return httperr.ServerError()
	} else if taken {
		return httperr.InvalidPayload("Sorry. That username already exists, choose another username")
	}

	hash, err := h.Hasher.Hash(req.NewPassword)
	if err != nil {
		return httperr.ServerError()
	}
	if err := h.Users.SetStandalone(ctx, u.ID, req.Username, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return httperr.InvalidPayload("Sorry. That username already exists, choose another username")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Successfully changed password."})
}

// randomState returns an opaque nonce for the OAuth state parameter.
func randomState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "state"
	}
	return hex.EncodeToString(b)
}
