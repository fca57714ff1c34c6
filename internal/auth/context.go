// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"

	"github.com/tomtom215/inkwell/internal/models"
)

type contextKey int

const (
	sessionContextKey contextKey = iota
	userContextKey
)

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext returns the request session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionContextKey).(*Session)
	return s
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user, or nil for guests.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}

// IsLoggedIn reports whether ctx carries an authenticated user.
func IsLoggedIn(ctx context.Context) bool {
	return UserFromContext(ctx) != nil
}

// HasRole reports whether the current user has role.
func HasRole(ctx context.Context, role string) bool {
	u := UserFromContext(ctx)
	return u != nil && u.Role == role
}

// IsAdmin reports whether the current user is an administrator.
func IsAdmin(ctx context.Context) bool {
	return HasRole(ctx, models.RoleAdmin)
}
