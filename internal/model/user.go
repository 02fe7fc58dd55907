package model

import "time"

// Role is a bit-flag set of privileges stored as a small integer in
// `users.role`. Flags combine with bitwise OR and are tested with
// bitwise AND, so a value of 3 means USER|ADMIN.
type Role int

const (
	RoleUser  Role = 1 << 0 // regular account
	RoleAdmin Role = 1 << 1 // administrative account
)

// Has reports whether the role intersects the given mask.
func (r Role) Has(mask Role) bool { return r&mask != 0 }

// Valid reports whether the role is a non-empty combination of defined flags.
func (r Role) Valid() bool {
	return r != 0 && r&^(RoleUser|RoleAdmin) == 0
}

// Name returns a human readable name for the role combination.
func (r Role) Name() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	case RoleUser | RoleAdmin:
		return "USER|ADMIN"
	default:
		return "UNKNOWN"
	}
}

// SocialProvider identifies an external OAuth identity provider.  The
// values are stored verbatim in `users.social_type`.
type SocialProvider string

const (
	SocialGitHub   SocialProvider = "GitHub"
	SocialFacebook SocialProvider = "Facebook"
)

// Valid reports whether the provider is one of the supported values.
func (p SocialProvider) Valid() bool {
	return p == SocialGitHub || p == SocialFacebook
}

// User mirrors the 'users' table.  Nullable columns are pointers: a
// pure-social account has no password hash, and the reset/email token
// hashes are only present while a recovery or verification is pending.
type User struct {
	ID                  uint64
	Email               string
	Username            string
	Name                string
	Active              bool
	Role                Role
	PasswordHash        *string
	ResetTokenHash      *string
	EmailTokenHash      *string
	EmailValidationDate *time.Time
	SocialID            *string
	SocialType          *string
	SocialAccessToken   *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// JSON returns the admin-facing representation of the user.  Secrets
// (password and token hashes, social access token) are never included.
func (u *User) JSON() map[string]any {
	return map[string]any{
		"id":                    u.ID,
		"email":                 u.Email,
		"username":              u.Username,
		"name":                  u.Name,
		"active":                u.Active,
		"role":                  int(u.Role),
		"role_name":             u.Role.Name(),
		"social_type":           u.SocialType,
		"email_validation_date": u.EmailValidationDate,
		"created_at":            u.CreatedAt,
		"updated_at":            u.UpdatedAt,
	}
}

// IsSocial reports whether the account is linked to an external provider.
func (u *User) IsSocial() bool { return u.SocialType != nil && *u.SocialType != "" }
