package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/config"
	"github.com/iliyamo/user-account-service/internal/httperr"
	"github.com/iliyamo/user-account-service/internal/utils"
)

func newAuthHandler(store *fakeStore, mail *fakeNotifier) *AuthHandler {
	return NewAuthHandler(config.Config{}, store, testHasher(), testCodecs(), mail)
}

func apiError(t *testing.T, err error) *httperr.Error {
	t.Helper()
	var apiErr *httperr.Error
	require.True(t, errors.As(err, &apiErr), "error is not *httperr.Error: %v", err)
	return apiErr
}

func fieldMessages(e *httperr.Error) map[string]string {
	out := map[string]string{}
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestRegister(t *testing.T) {
	store := newFakeStore()
	mail := &fakeNotifier{}
	h := newAuthHandler(store, mail)

	c, rec := newTestContext(http.MethodPost, "/v1/auth/register",
		`{"email":"a@x.com","username":"a","password":"p","name":"Alice"}`, 0)
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Successfully registered.", body["message"])

	// The returned token is a usable session token for the new user.
	id, err := h.Codecs.Auth.Decode(body["auth_token"].(string))
	require.NoError(t, err)

	u := store.users[id]
	require.NotNil(t, u)
	assert.Equal(t, "a@x.com", u.Email)
	assert.False(t, u.Active, "fresh registrations start inactive")
	assert.NotNil(t, u.PasswordHash)
	assert.NotEqual(t, "p", *u.PasswordHash)

	// A verification token was issued: its digest is stored and the raw
	// token went out in the welcome email.
	require.NotNil(t, u.EmailTokenHash)
	sent := mail.last(t)
	assert.Equal(t, "registration", sent.kind)
	assert.True(t, utils.VerifyToken(*u.EmailTokenHash, sent.token))
}

func TestRegisterLeavesNoUserWhenTokenWriteFails(t *testing.T) {
	store := newFakeStore()
	store.emailTokenErr = errors.New("digest write failed")
	mail := &fakeNotifier{}
	h := newAuthHandler(store, mail)

	c, _ := newTestContext(http.MethodPost, "/v1/auth/register",
		`{"email":"a@x.com","username":"a","password":"p","name":"Alice"}`, 0)
	apiErr := apiError(t, h.Register(c))

	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
	assert.Empty(t, store.users, "user row committed despite the failed registration")
	assert.Empty(t, mail.sent, "no email may go out for a rolled-back registration")
}

func TestRegisterDuplicateFields(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})
	seedUser(t, store, "a@x.com", "a", "p", 1, true)

	c, _ := newTestContext(http.MethodPost, "/v1/auth/register",
		`{"email":"a@x.com","username":"a","password":"p","name":"Alice"}`, 0)
	err := h.Register(c)

	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Equal(t, "Validation Error", apiErr.Message)
	msgs := fieldMessages(apiErr)
	assert.Equal(t, "email already exists", msgs["email"])
	assert.Equal(t, "username already exists", msgs["username"])
}

func TestRegisterInvalidInput(t *testing.T) {
	h := newAuthHandler(newFakeStore(), &fakeNotifier{})

	c, _ := newTestContext(http.MethodPost, "/v1/auth/register",
		`{"email":"not-an-email","username":"","password":"","name":""}`, 0)
	err := h.Register(c)

	apiErr := apiError(t, err)
	msgs := fieldMessages(apiErr)
	assert.Equal(t, "value is not a valid email address", msgs["email"])
	assert.Equal(t, "field required", msgs["username"])
	assert.Equal(t, "field required", msgs["password"])
	assert.Equal(t, "field required", msgs["name"])
}

func TestLogin(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})
	u := seedUser(t, store, "a@x.com", "a", "p", 1, true)

	t.Run("unknown email", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/v1/auth/login",
			`{"email":"nobody@x.com","password":"p"}`, 0)
		apiErr := apiError(t, h.Login(c))
		assert.Equal(t, http.StatusNotFound, apiErr.Code)
		assert.Equal(t, "User does not exist.", apiErr.Message)
	})

	t.Run("wrong password", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPost, "/v1/auth/login",
			`{"email":"a@x.com","password":"wrong"}`, 0)
		apiErr := apiError(t, h.Login(c))
		assert.Equal(t, http.StatusBadRequest, apiErr.Code)
		assert.Equal(t, "Incorrect password.", apiErr.Message)
	})

	t.Run("success", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPost, "/v1/auth/login",
			`{"email":"a@x.com","password":"p"}`, 0)
		require.NoError(t, h.Login(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Successfully logged in.", body["message"])
		id, err := h.Codecs.Auth.Decode(body["auth_token"].(string))
		require.NoError(t, err)
		assert.Equal(t, u.ID, id)
	})
}

func TestLogout(t *testing.T) {
	h := newAuthHandler(newFakeStore(), &fakeNotifier{})
	c, rec := newTestContext(http.MethodGet, "/v1/auth/logout", "", 1)
	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Successfully logged out.")
}

func TestStatusShowsInactiveAccount(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})
	u := seedUser(t, store, "a@x.com", "a", "p", 1, false)

	c, rec := newTestContext(http.MethodGet, "/v1/auth/status", "", u.ID)
	require.NoError(t, h.Status(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, false, body["active"])
	assert.Equal(t, "a", body["username"])
}

func TestPasswordChange(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})
	u := seedUser(t, store, "a@x.com", "a", "old-pass", 1, true)

	t.Run("wrong current password", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPut, "/v1/auth/password_change",
			`{"current_password":"nope","new_password":"new-pass"}`, u.ID)
		apiErr := apiError(t, h.PasswordChange(c))
		msgs := fieldMessages(apiErr)
		assert.Equal(t, "Invalid current password. Please try again.", msgs["current_password"])
	})

	t.Run("success", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPut, "/v1/auth/password_change",
			`{"current_password":"old-pass","new_password":"new-pass"}`, u.ID)
		require.NoError(t, h.PasswordChange(c))
		assert.Contains(t, rec.Body.String(), "Successfully changed password.")

		stored := store.users[u.ID]
		assert.True(t, testHasher().Verify(*stored.PasswordHash, "new-pass"))
		assert.False(t, testHasher().Verify(*stored.PasswordHash, "old-pass"))
	})
}
