package handler

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/token"
	"github.com/iliyamo/user-account-service/internal/utils"
)

type passwordRecoveryReq struct {
	Email string `json:"email"`
}

type passwordResetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// PasswordRecovery issues a password-purpose token for the account
// behind an email, stores its digest and mails the raw token.  Only the
// digest is persisted, so a leaked row cannot be redeemed.
func (h *AuthHandler) PasswordRecovery(c echo.Context) error {
	var req passwordRecoveryReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	if !emailRegex.MatchString(req.Email) {
		return httperr.Validation([]httperr.FieldError{
			{Field: "email", Message: "value is not a valid email address"},
		})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("Email does not exist.")
		}
		return httperr.ServerError()
	}

	resetToken, err := h.Codecs.Password.Encode(u.ID)
	if err != nil {
		return httperr.ServerError()
	}
	if err := h.Users.SetResetToken(ctx, u.ID, utils.HashToken(resetToken)); err != nil {
		return httperr.ServerError()
	}
	if err := h.Mail.SendPasswordRecoveryEmail(ctx, u, resetToken); err != nil {
		log.Printf("recovery email for user %d not dispatched: %v", u.ID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password recovery email sent."})
}

// PasswordReset redeems a password-purpose token.  The stored digest is
// cleared in the same statement that writes the new password, so a
// token redeems at most once.
func (h *AuthHandler) PasswordReset(c echo.Context) error {
	var req passwordResetReq
	if err := c.Bind(&req); err != nil {
		return httperr.InvalidPayload()
	}
	if req.Token == "" {
		return httperr.InvalidPayload()
	}
	if err := validPassword(req.Password); err != nil {
		return httperr.Validation([]httperr.FieldError{
			{Field: "password", Message: err.Error()},
		})
	}

	userID, err := h.Codecs.Password.Decode(req.Token)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return httperr.BadRequest("Signature expired. Please log in again.")
		}
		return httperr.BadRequest("Invalid token. Please log in again.")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return httperr.ServerError()
	}
	// A missing user, a missing digest and a mismatched digest all mean
	// the same thing to the caller: the token cannot be redeemed.
	if err != nil || u.ResetTokenHash == nil || !utils.VerifyToken(*u.ResetTokenHash, req.Token) {
		return httperr.InvalidPayload("Invalid password reset token. Please try again.")
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		return httperr.ServerError()
	}
	if err := h.Users.ResetPassword(ctx, u.ID, hash, *u.ResetTokenHash); err != nil {
		// A concurrent redemption can clear the digest between the
		// verify above and this write; the loser reports the token
		// as spent.
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.InvalidPayload("Invalid password reset token. Please try again.")
		}
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Successfully reset password."})
}
