// Package httperr defines the API error taxonomy and the uniform JSON
// envelope every failure is rendered with: {code, name, message} plus an
// optional errors list carrying field-level validation failures.
package httperr

import (
	"net/http"
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the API error type.  Handlers return it; the Echo error
// handler renders it.  Code doubles as the HTTP status.
type Error struct {
	Code    int          `json:"code"`
	Name    string       `json:"name"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"errors,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func newError(code int, name, message string) *Error {
	return &Error{Code: code, Name: name, Message: message}
}

// InvalidPayload signals a malformed or missing request body (400).
func InvalidPayload(message ...string) *Error {
	m := "Invalid Payload"
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusBadRequest, "Invalid Payload", m)
}

// Validation signals one or more field-level semantic failures (400).
func Validation(fields []FieldError) *Error {
	e := newError(http.StatusBadRequest, "Invalid Payload", "Validation Error")
	e.Fields = fields
	return e
}

// BadRequest signals a generic client error (400).
func BadRequest(message ...string) *Error {
	m := "Bad Request"
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusBadRequest, "Bad Request", m)
}

// Unauthorized signals a missing, expired or invalid credential (401).
func Unauthorized(message ...string) *Error {
	m := "Not Authorized to perform this action"
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusUnauthorized, "Unauthorized", m)
}

// Forbidden signals insufficient privileges (403).
func Forbidden(message ...string) *Error {
	m := "Forbidden"
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusForbidden, "Forbidden", m)
}

// NotFound signals a missing resource (404).
func NotFound(message ...string) *Error {
	m := "The requested URL was not found on the server."
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusNotFound, "Not Found", m)
}

// MethodNotAllowed signals an unsupported method on a known URL (405).
func MethodNotAllowed(message ...string) *Error {
	m := "The method is not allowed for the requested URL."
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusMethodNotAllowed, "Method Not Allowed", m)
}

// NotImplemented signals an endpoint that exists but is not implemented (501).
func NotImplemented(message ...string) *Error {
	m := "The method is not implemented for the requested URL."
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusNotImplemented, "Not Implemented", m)
}

// ServerError signals an unexpected persistence or runtime failure (500).
func ServerError(message ...string) *Error {
	m := "Something went wrong"
	if len(message) > 0 {
		m = message[0]
	}
	return newError(http.StatusInternalServerError, "Internal Server Error", m)
}
