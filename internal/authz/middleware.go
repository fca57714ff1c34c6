// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package authz

import (
	"net/http"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// Middleware guards handlers with the enforcer and the user resolved by
// auth.Service.Middleware.
type Middleware struct {
	enforcer *Enforcer

	// Unauthenticated handles anonymous requests. Defaults to a plain 401.
	Unauthenticated http.HandlerFunc

	// Forbidden handles authenticated requests that were denied. Defaults
	// to a plain 403.
	Forbidden http.HandlerFunc
}

// NewMiddleware creates guards backed by enforcer.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		Unauthenticated: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Unauthorized: login required", http.StatusUnauthorized)
		},
		Forbidden: func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
		},
	}
}

// RequireLogin rejects anonymous requests.
func (m *Middleware) RequireLogin(next http.Handler) http.Handler {
	return m.guard(next, func(*models.User, *http.Request) bool { return true })
}

// RequireAdmin only lets administrators through.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.guard(next, func(u *models.User, _ *http.Request) bool { return u.IsAdmin() })
}

// RequireCapability returns a guard for one capability.
func (m *Middleware) RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.guard(next, func(u *models.User, _ *http.Request) bool {
			return m.enforcer.Can(u.Role, capability)
		})
	}
}

// RequireAccess checks the request path and method against the site area
// rules.
func (m *Middleware) RequireAccess(next http.Handler) http.Handler {
	return m.guard(next, func(u *models.User, r *http.Request) bool {
		return m.enforcer.CanAccess(u.Role, r.URL.Path, r.Method)
	})
}

func (m *Middleware) guard(next http.Handler, allow func(*models.User, *http.Request) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u == nil {
			m.Unauthenticated(w, r)
			return
		}
		if !allow(u, r) {
			logging.Ctx(r.Context()).Debug().
				Str("role", u.Role).
				Str("path", r.URL.Path).
				Msg("Authorization denied")
			m.Forbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
