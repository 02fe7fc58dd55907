package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/utils"
)

// verifyContext builds a context for GET /v1/email_verification/:token.
func verifyContext(raw string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/email_verification/"+raw, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(raw)
	return c, rec
}

func TestEmailVerificationFlow(t *testing.T) {
	store := newFakeStore()
	mail := &fakeNotifier{}
	h := newAuthHandler(store, mail)
	u := seedUser(t, store, "a@x.com", "a", "p", 1, false)

	// Request a verification link.
	c, rec := newTestContext(http.MethodGet, "/v1/email_verification/", "", u.ID)
	require.NoError(t, h.EmailVerificationRequest(c))
	assert.Contains(t, rec.Body.String(), "sent email with verification token")

	stored := store.users[u.ID]
	require.NotNil(t, stored.EmailTokenHash)
	sent := mail.last(t)
	assert.Equal(t, "verification", sent.kind)
	require.True(t, utils.VerifyToken(*stored.EmailTokenHash, sent.token))

	// Redeem it: the account flips active and the digest is cleared.
	c, rec = verifyContext(sent.token)
	require.NoError(t, h.EmailVerificationVerify(c))
	assert.Contains(t, rec.Body.String(), "email verified")

	stored = store.users[u.ID]
	assert.True(t, stored.Active)
	assert.NotNil(t, stored.EmailValidationDate)
	assert.Nil(t, stored.EmailTokenHash)

	// Redeeming twice fails: no digest is stored anymore.
	c, _ = verifyContext(sent.token)
	apiErr := apiError(t, h.EmailVerificationVerify(c))
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Equal(t, "verification link expired", apiErr.Message)
}

func TestEmailVerificationUnknownUser(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})

	raw, err := h.Codecs.Email.Encode(42)
	require.NoError(t, err)
	c, _ := verifyContext(raw)
	apiErr := apiError(t, h.EmailVerificationVerify(c))
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.Equal(t, "user does not exist", apiErr.Message)
}

func TestEmailVerificationRejectsForeignPurpose(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})
	u := seedUser(t, store, "a@x.com", "a", "p", 1, false)

	raw, err := h.Codecs.Auth.Encode(u.ID)
	require.NoError(t, err)
	c, _ := verifyContext(raw)
	apiErr := apiError(t, h.EmailVerificationVerify(c))
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.False(t, store.users[u.ID].Active, "a session token must not activate an account")
}

func TestEmailVerificationResendUsesRegistrationTemplate(t *testing.T) {
	store := newFakeStore()
	mail := &fakeNotifier{}
	h := newAuthHandler(store, mail)
	u := seedUser(t, store, "a@x.com", "a", "p", 1, false)

	c, rec := newTestContext(http.MethodGet, "/v1/email_verification/resend", "", u.ID)
	require.NoError(t, h.EmailVerificationResend(c))
	assert.Contains(t, rec.Body.String(), "verification email resent")
	assert.Equal(t, "registration", mail.last(t).kind)
}
