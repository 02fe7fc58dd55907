package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/iliyamo/user-account-service/internal/model"
)

const (
	githubUserEndpoint   = "https://api.github.com/user"
	githubEmailsEndpoint = "https://api.github.com/user/emails"
)

// GitHub resolves identities through GitHub's OAuth flow.  GitHub may
// hide the account email on the /user endpoint, so the adapter falls
// back to /user/emails and picks the primary verified address.
type GitHub struct {
	conf *oauth2.Config
}

func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{conf: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"user:email"},
		Endpoint:     github.Endpoint,
	}}
}

func (g *GitHub) Name() model.SocialProvider { return model.SocialGitHub }

// AuthURL builds the GitHub authorization URL with the given state token.
func (g *GitHub) AuthURL(state string) string {
	return g.conf.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ResolveProfile exchanges the authorization code and fetches the
// GitHub user, resolving the email through the emails endpoint when the
// profile keeps it private.
func (g *GitHub) ResolveProfile(ctx context.Context, code string) (Profile, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, ErrCodeExchange
	}
	client := g.apiClient(ctx, tok)

	var u githubUser
	if err := getJSON(ctx, client, githubUserEndpoint, &u); err != nil {
		return Profile{}, err
	}
	if u.Login == "" || u.ID == 0 {
		return Profile{}, ErrIncompleteProfile
	}

	email := u.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, githubEmailsEndpoint, &emails); err != nil {
			return Profile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified && e.Email != "" {
				email = e.Email
				break
			}
		}
	}
	if email == "" {
		return Profile{}, ErrIncompleteProfile
	}

	return Profile{
		SocialID:    strconv.FormatInt(u.ID, 10),
		Email:       email,
		Username:    u.Login,
		Name:        u.Name,
		AccessToken: tok.AccessToken,
	}, nil
}

func (g *GitHub) apiClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	client := g.conf.Client(ctx, tok)
	client.Timeout = 10 * time.Second
	return client
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrIncompleteProfile
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
