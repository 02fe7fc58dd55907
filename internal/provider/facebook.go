package provider

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/iliyamo/user-account-service/internal/model"
)

const facebookMeEndpoint = "https://graph.facebook.com/v7.0/me?fields=id,email,name"

// Facebook resolves identities through Facebook's Graph API.  Unlike
// GitHub there is no email fallback: an account without a shared email
// cannot be matched or created, so it fails the profile check.
type Facebook struct {
	conf *oauth2.Config
}

func NewFacebook(clientID, clientSecret, redirectURL string) *Facebook {
	return &Facebook{conf: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"email"},
		Endpoint:     facebook.Endpoint,
	}}
}

func (f *Facebook) Name() model.SocialProvider { return model.SocialFacebook }

// AuthURL builds the Facebook authorization URL with the given state token.
func (f *Facebook) AuthURL(state string) string {
	return f.conf.AuthCodeURL(state)
}

type facebookUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ResolveProfile exchanges the authorization code and fetches the
// Graph API profile.  The email doubles as the local username, the way
// Facebook sign-ups have always been stored here.
func (f *Facebook) ResolveProfile(ctx context.Context, code string) (Profile, error) {
	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, ErrCodeExchange
	}
	client := f.conf.Client(ctx, tok)
	client.Timeout = 10 * time.Second

	var u facebookUser
	if err := getJSON(ctx, client, facebookMeEndpoint, &u); err != nil {
		return Profile{}, err
	}
	if u.ID == "" || u.Email == "" {
		return Profile{}, ErrIncompleteProfile
	}

	return Profile{
		SocialID:    u.ID,
		Email:       u.Email,
		Username:    u.Email,
		Name:        u.Name,
		AccessToken: tok.AccessToken,
	}, nil
}
