// Package token signs and verifies the compact expiring tokens used for
// session auth, password recovery and email verification.  Tokens are
// HS256 JWTs carrying only the subject id and timestamps; each purpose
// gets its own codec and a token minted for one purpose never decodes
// under another.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose discriminates the three token kinds.  The value is embedded
// as a claim and checked on decode.
type Purpose string

const (
	PurposeAuth     Purpose = "auth"
	PurposePassword Purpose = "password"
	PurposeEmail    Purpose = "email"
)

var (
	// ErrExpiredToken is returned when the token is past issued-at+TTL.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidToken is returned for any structural, signature or
	// purpose mismatch failure.
	ErrInvalidToken = errors.New("invalid token")
)

// Codec encodes and decodes tokens for a single purpose.  TTL is
// expressed as days plus seconds so short-lived test codecs and
// long-lived production ones share one configuration shape.
type Codec struct {
	secret  []byte
	purpose Purpose
	ttl     time.Duration
}

// NewCodec builds a codec for the given purpose.
func NewCodec(secret string, purpose Purpose, ttlDays, ttlSeconds int) *Codec {
	return &Codec{
		secret:  []byte(secret),
		purpose: purpose,
		ttl:     time.Duration(ttlDays)*24*time.Hour + time.Duration(ttlSeconds)*time.Second,
	}
}

// Encode signs a token for the given subject id.
func (c *Codec) Encode(subjectID uint64) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":     subjectID,
		"purpose": string(c.purpose),
		"exp":     now.Add(c.ttl).Unix(),
		"iat":     now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

// Decode verifies a token and returns its subject id.  Expired tokens
// yield ErrExpiredToken; everything else that fails yields
// ErrInvalidToken, including tokens minted for a different purpose.
func (c *Codec) Decode(raw string) (uint64, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return 0, ErrInvalidToken
	}
	if p, _ := claims["purpose"].(string); p != string(c.purpose) {
		return 0, ErrInvalidToken
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub < 1 {
		return 0, ErrInvalidToken
	}
	return uint64(sub), nil
}
