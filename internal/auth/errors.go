// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import "errors"

// Sentinel errors. Flows return them wrapped in a UserError.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrRateLimited        = errors.New("too many login attempts")
	ErrMissingField       = errors.New("required field missing")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAPIAccessDenied    = errors.New("api access not included in plan")
	ErrInvalidToken       = errors.New("invalid api token")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// UserError carries a message that is safe to show to the visitor.
type UserError struct {
	Err     error
	Message string
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// UserMessage returns the message shown to the visitor.
func (e *UserError) UserMessage() string { return e.Message }

func userError(err error, msg string) *UserError {
	return &UserError{Err: err, Message: msg}
}
