package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound  = errors.New("resource not found")
	ErrConflict  = errors.New("resource already exists")
	ErrForbidden = errors.New("forbidden")

	// Authentication and provisioning failure kinds
	ErrValidation         = errors.New("validation failed")
	ErrCSRF               = errors.New("csrf token mismatch")
	ErrMethodNotAllowed   = errors.New("method not allowed")
	ErrAccountLocked      = errors.New("account is locked")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStorage            = errors.New("storage failure")
	ErrSessionExpired     = errors.New("session expired")
)

// Generic user-facing messages
const (
	MsgInvalidRequestMethod = "Invalid request method"
	MsgInvalidSession       = "Invalid session. Please try again."
	MsgInvalidCredentials   = "Invalid username or password"
	MsgTryAgainLater        = "An error occurred. Please try again later."
)

// AuthError pairs a failure kind with the message shown to the user.
// errors.Is against the sentinel kinds works through Unwrap.
type AuthError struct {
	Err        error
	Message    string
	RetryAfter time.Duration
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an AuthError of the given kind
func NewAuthError(kind error, message string) *AuthError {
	return &AuthError{Err: kind, Message: message}
}

// UserMessage returns the message that may be shown to the user for err.
// Anything that is not an AuthError collapses to the generic retry message.
func UserMessage(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return MsgTryAgainLater
}
