// Package repository implements MySQL persistence for users and groups.
// Sentinel errors let handlers distinguish constraint violations from
// unexpected database failures: uniqueness is enforced by unique keys,
// so a losing concurrent write surfaces here as a duplicate error and
// is translated into a field-level validation error upstream, never a
// generic server error.
package repository

import (
	"errors"
	"strings"
)

// ErrDuplicateEmail is returned when a write violates the unique email key.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateUsername is returned when a write violates the unique username key.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateSocialID is returned when a write violates the unique social id key.
var ErrDuplicateSocialID = errors.New("social id already exists")

// ErrDuplicate is returned for a duplicate-key violation on any other key.
var ErrDuplicate = errors.New("duplicate entry")

// ErrBadListExpr is returned when a caller-supplied filter or order
// expression references an unknown column or is malformed.  Handlers
// translate it into a 400 response.
var ErrBadListExpr = errors.New("invalid filter or order expression")

// translateDuplicate converts a MySQL duplicate-key error (1062) into
// the matching sentinel by sniffing the violated key name, the same way
// the insert paths detect duplicates elsewhere in this package.  Other
// errors pass through unchanged.
func translateDuplicate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !containsFold(msg, "1062") {
		return err
	}
	switch {
	case containsFold(msg, "email"):
		return ErrDuplicateEmail
	case containsFold(msg, "username"):
		return ErrDuplicateUsername
	case containsFold(msg, "social"):
		return ErrDuplicateSocialID
	}
	return ErrDuplicate
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
