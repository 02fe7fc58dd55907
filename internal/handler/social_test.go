package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-account-service/internal/model"
	"github.com/iliyamo/user-account-service/internal/provider"
)

// fakeProvider satisfies provider.Provider without any network calls.
type fakeProvider struct {
	name    model.SocialProvider
	profile provider.Profile
	err     error
}

func (f *fakeProvider) Name() model.SocialProvider { return f.name }
func (f *fakeProvider) AuthURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}
func (f *fakeProvider) ResolveProfile(_ context.Context, _ string) (provider.Profile, error) {
	if f.err != nil {
		return provider.Profile{}, f.err
	}
	return f.profile, nil
}

func githubProfile() provider.Profile {
	return provider.Profile{
		SocialID:    "12345",
		Email:       "dev@x.com",
		Username:    "dev",
		Name:        "Dev Eloper",
		AccessToken: "gh-token-1",
	}
}

func callback(t *testing.T, h *SocialHandler) (int, map[string]any, error) {
	t.Helper()
	c, rec := newTestContext(http.MethodGet, "/v1/auth/github/login/callback?code=abc", "", 0)
	if err := h.Callback(c); err != nil {
		return 0, nil, err
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body, nil
}

func TestSocialCallbackIdempotence(t *testing.T) {
	store := newFakeStore()
	fp := &fakeProvider{name: model.SocialGitHub, profile: githubProfile()}
	h := NewSocialHandler(store, testCodecs(), fp)

	// First callback registers a new, immediately active user.
	code, body, err := callback(t, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "registered with GitHub and logged in", body["message"])

	firstID, err := h.Codecs.Auth.Decode(body["auth_token"].(string))
	require.NoError(t, err)
	u := store.users[firstID]
	require.NotNil(t, u)
	assert.True(t, u.Active, "social sign-ups are active immediately")
	assert.Equal(t, "dev@x.com", u.Email)
	require.NotNil(t, u.SocialID)
	assert.Equal(t, "12345", *u.SocialID)
	assert.Nil(t, u.PasswordHash)

	// Second callback logs into the same account and refreshes the token.
	fp.profile.AccessToken = "gh-token-2"
	code, body, err = callback(t, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "logged in with GitHub", body["message"])

	secondID, err := h.Codecs.Auth.Decode(body["auth_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)
	assert.Equal(t, "gh-token-2", *store.users[firstID].SocialAccessToken)
	assert.Len(t, store.users, 1)
}

func TestSocialCallbackLinksExistingEmail(t *testing.T) {
	store := newFakeStore()
	existing := seedUser(t, store, "dev@x.com", "dev", "p", 1, true)
	h := NewSocialHandler(store, testCodecs(), &fakeProvider{name: model.SocialGitHub, profile: githubProfile()})

	code, body, err := callback(t, h)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "registered with GitHub and logged in", body["message"])

	id, err := h.Codecs.Auth.Decode(body["auth_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, id, "identity links onto the account owning the email")

	u := store.users[existing.ID]
	require.NotNil(t, u.SocialID)
	assert.Equal(t, "12345", *u.SocialID)
	assert.Equal(t, "GitHub", *u.SocialType)
	assert.NotNil(t, u.PasswordHash, "local password survives the link")
}

func TestSocialCallbackProviderFailure(t *testing.T) {
	store := newFakeStore()
	h := NewSocialHandler(store, testCodecs(), &fakeProvider{
		name: model.SocialGitHub,
		err:  provider.ErrIncompleteProfile,
	})

	_, _, err := callback(t, h)
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.Equal(t, "Something went wrong with GitHub. Try again.", apiErr.Message)
	assert.Empty(t, store.users)
}

func TestSocialLoginRedirects(t *testing.T) {
	h := NewSocialHandler(newFakeStore(), testCodecs(), &fakeProvider{name: model.SocialFacebook})

	c, rec := newTestContext(http.MethodGet, "/v1/auth/facebook/login", "", 0)
	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "https://provider.example/authorize")
}

func TestSetStandaloneUser(t *testing.T) {
	store := newFakeStore()
	h := newAuthHandler(store, &fakeNotifier{})

	local := seedUser(t, store, "plain@x.com", "plain", "p", 1, true)
	social := seedUser(t, store, "dev@x.com", "dev", "old-pass", 1, true)
	require.NoError(t, store.LinkSocial(context.Background(), social.ID, "12345", model.SocialGitHub, "gh-token"))

	t.Run("not a social account", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPut, "/v1/auth/social/set_standalone_user",
			`{"username":"plain2","old_password":"p","new_password":"n"}`, local.ID)
		apiErr := apiError(t, h.SetStandaloneUser(c))
		assert.Equal(t, http.StatusNotFound, apiErr.Code)
		assert.Equal(t, "Must be a social authenticated user login. Please try again.", apiErr.Message)
	})

	t.Run("wrong old password", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPut, "/v1/auth/social/set_standalone_user",
			`{"username":"dev2","old_password":"nope","new_password":"n"}`, social.ID)
		apiErr := apiError(t, h.SetStandaloneUser(c))
		assert.Equal(t, http.StatusNotFound, apiErr.Code)
		assert.Equal(t, "Incorrect old password. Please try again.", apiErr.Message)
	})

	t.Run("username taken", func(t *testing.T) {
		c, _ := newTestContext(http.MethodPut, "/v1/auth/social/set_standalone_user",
			`{"username":"plain","old_password":"old-pass","new_password":"n"}`, social.ID)
		apiErr := apiError(t, h.SetStandaloneUser(c))
		assert.Equal(t, http.StatusBadRequest, apiErr.Code)
		assert.Equal(t, "Sorry. That username already exists, choose another username", apiErr.Message)
	})

	t.Run("success", func(t *testing.T) {
		c, rec := newTestContext(http.MethodPut, "/v1/auth/social/set_standalone_user",
			`{"username":"dev2","old_password":"old-pass","new_password":"new-pass"}`, social.ID)
		require.NoError(t, h.SetStandaloneUser(c))
		assert.Contains(t, rec.Body.String(), "Successfully changed password.")

		u := store.users[social.ID]
		assert.Equal(t, "dev2", u.Username)
		assert.True(t, testHasher().Verify(*u.PasswordHash, "new-pass"))
	})
}
