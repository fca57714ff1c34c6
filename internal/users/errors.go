// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package users

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrEmailTaken     = errors.New("email already registered")
	ErrSelfAction     = errors.New("cannot perform this action on your own account")
	ErrLastAdmin      = errors.New("cannot remove the last active administrator")
	ErrUnknownAction  = errors.New("unknown bulk action")
	ErrRoleRequired   = errors.New("a valid role is required")
	ErrNothingToApply = errors.New("no users selected")
)
