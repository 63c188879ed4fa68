// Package common defines shared constants and sentinel errors used across
// memberd components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrRecordExists signals a uniqueness violation on the members table
	// (one row per email, one row per username).
	ErrRecordExists = errors.New("record already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Registration flow errors surfaced to the routing layer.
	ErrInvalidToken    = errors.New("token invalid or expired")
	ErrUsernameTaken   = errors.New("username not available")
	ErrEmailRegistered = errors.New("email already registered")
)
