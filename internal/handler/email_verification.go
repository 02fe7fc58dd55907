package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/utils"
)

type sendFunc func(ctx context.Context, u model.User, token string) error

// EmailVerificationRequest issues a fresh email-purpose token for the
// logged-in user, stores its digest and mails the raw token.
func (h *AuthHandler) EmailVerificationRequest(c echo.Context) error {
	return h.issueVerification(c, "sent email with verification token", h.Mail.SendEmailVerificationEmail)
}

// EmailVerificationResend reissues the verification token using the
// registration email template.
func (h *AuthHandler) EmailVerificationResend(c echo.Context) error {
	return h.issueVerification(c, "verification email resent", h.Mail.SendRegistrationEmail)
}

// EmailVerificationVerify redeems an email-purpose token: activates the
// account, stamps the validation time and clears the stored digest so
// the token redeems at most once.
func (h *AuthHandler) EmailVerificationVerify(c echo.Context) error {
	raw := c.Param("token")

	userID, err := h.Codecs.Email.Decode(raw)
	if err != nil {
		return httperr.BadRequest("Invalid token. Please log in again.")
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httperr.NotFound("user does not exist")
		}
		return httperr.ServerError()
	}
	if u.EmailTokenHash == nil || !utils.VerifyToken(*u.EmailTokenHash, raw) {
		return httperr.InvalidPayload("verification link expired")
	}

	if err := h.Users.MarkEmailVerified(ctx, u.ID); err != nil {
		return httperr.ServerError()
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

func (h *AuthHandler) issueVerification(c echo.Context, message string, send sendFunc) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, currentUserID(c))
	if err != nil {
		return httperr.Unauthorized()
	}

	emailToken, err := h.Codecs.Email.Encode(u.ID)
	if err != nil {
		return httperr.ServerError()
	}
	if err := h.Users.SetEmailToken(ctx, u.ID, utils.HashToken(emailToken)); err != nil {
		return httperr.ServerError()
	}
	if err := send(ctx, u, emailToken); err != nil {
		log.Printf("verification email for user %d not dispatched: %v", u.ID, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": message})
}
