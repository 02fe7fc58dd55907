// Package provider wraps the external OAuth identity providers behind a
// small interface: redirect URL generation and authorization-code
// exchange into a local profile.  Handlers never talk to provider APIs
// directly, which keeps the social login flow testable with fakes.
package provider

import (
	"context"
	"errors"

	"github.com/iliyamo/user-account-service/internal/model"
)

var (
	// ErrCodeExchange is returned when the authorization code cannot
	// be exchanged for an access token.
	ErrCodeExchange = errors.New("authorization code exchange failed")
	// ErrIncompleteProfile is returned when the provider response
	// lacks the identity fields needed to create or match an account.
	ErrIncompleteProfile = errors.New("provider profile missing identity fields")
)

// Profile is the identity data resolved from a provider.
type Profile struct {
	SocialID    string
	Email       string
	Username    string
	Name        string
	AccessToken string
}

// Provider is an external OAuth identity provider client.
type Provider interface {
	Name() model.SocialProvider
	AuthURL(state string) string
	ResolveProfile(ctx context.Context, code string) (Profile, error)
}
