// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tomtom215/inkwell/internal/analytics"
	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/backup"
	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/dashboard"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/firewall"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/landing"
	"github.com/tomtom215/inkwell/internal/legal"
	"github.com/tomtom215/inkwell/internal/media"
	"github.com/tomtom215/inkwell/internal/member"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/privacy"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/seo"
	"github.com/tomtom215/inkwell/internal/subscription"
	"github.com/tomtom215/inkwell/internal/system"
	"github.com/tomtom215/inkwell/internal/theme"
	"github.com/tomtom215/inkwell/internal/update"
	"github.com/tomtom215/inkwell/internal/users"
)

// PostsPerPage is the blog listing page size.
const PostsPerPage = 9

// Site holds the services behind the default routes. DB, Auth, CSRF and
// Content are required; any other nil service hides the pages and actions
// that need it.
type Site struct {
	DB      *database.DB
	Auth    *auth.Service
	CSRF    *security.CSRF
	Hooks   *hooks.Registry
	Content *content.Manager
	SEO     *seo.Service
	Menus   *plugin.MenuRegistry
	Plugins *plugin.Manager
	Themes  *theme.Manager
	Users   *users.Service
	Member  *member.Service
	Plans   *subscription.Manager
	Stats   *dashboard.Service
	Visits  *analytics.Service
	Backups *backup.Manager
	System  *system.Service
	Status  *system.StatusService
	Updates *update.Service
	Landing *landing.Service
	Media   *media.Service
	Version string

	Firewall *firewall.Service
	Privacy  *privacy.Service
	Consent  *consent.Service
	Legal    *legal.Service
}

type site struct {
	*Site
	rt          *Router
	adminPages  map[string]adminPage
	memberPages map[string]memberPage
}

// RegisterDefaults installs the public site, authentication, member area,
// admin area and JSON endpoints on rt.
func RegisterDefaults(rt *Router, s *Site) {
	h := &site{Site: s, rt: rt}
	h.adminPages = h.buildAdminPages()
	h.memberPages = h.buildMemberPages()

	rt.Get("/", h.home)
	rt.Get("/login", h.loginForm)
	rt.Post("/login", h.login)
	rt.Get("/register", h.registerForm)
	rt.Post("/register", h.register)
	rt.Get("/logout", h.logout)

	rt.Get("/member", h.requireLogin(h.memberHome))
	rt.GetPost("/member/plugin/:slug", h.requireLogin(h.memberPlugin))
	rt.GetPost("/member/:page", h.requireLogin(h.memberPage))

	rt.GetPost("/admin", h.requireAdmin(h.admin))
	rt.GetPost("/admin/plugins/:plugin/:page", h.requireAdmin(h.adminPlugin))
	rt.GetPost("/admin/:page", h.requireAdmin(h.admin))

	rt.Get("/api/v1/status", h.apiStatus)
	rt.Get("/api/v1/pages", h.apiPages)
	rt.Get("/api/v1/pages/:slug", h.apiPage)
	rt.Get("/api/v1/users", h.apiUsers)
	rt.Get("/api/v1/users/:id", h.apiUser)

	if s.Plans != nil {
		rt.Get("/order", h.requireLogin(h.orderForm))
		rt.Post("/order", h.requireLogin(h.order))
	}

	rt.Get("/search", h.search)
	rt.Get("/blog", h.blog)
	rt.Get("/blog/:slug", h.blogPost)
	if s.SEO != nil {
		rt.Get("/sitemap.xml", h.sitemap)
		rt.Get("/robots.txt", h.robots)
	}
	if s.Consent != nil {
		rt.Get("/api/v1/cookie-consent", h.apiCookieConsent)
	}
}

func (h *site) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if h.rt.render == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	h.rt.render.RenderStatus(w, r, status, name, data)
}

func (h *site) flash(r *http.Request, kind, msg string) {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(kind, msg)
	}
}

// verify checks the form token for action and flashes on failure.
func (h *site) verify(r *http.Request, action string) bool {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil || !h.CSRF.VerifyToken(sess, r.PostFormValue(security.NonceFieldName), action) {
		h.flash(r, "error", "Security check failed. Please try again.")
		return false
	}
	return true
}

func (h *site) requireLogin(next HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, p Params) {
		if !auth.IsLoggedIn(r.Context()) {
			h.rt.Redirect(w, r, "/login")
			return
		}
		next(w, r, p)
	}
}

func (h *site) requireAdmin(next HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, p Params) {
		if !auth.IsAdmin(r.Context()) {
			h.rt.Redirect(w, r, "/")
			return
		}
		next(w, r, p)
	}
}

// userMessage returns the text shown to the visitor for err.
func userMessage(err error, fallback string) string {
	var ue interface{ UserMessage() string }
	if errors.As(err, &ue) {
		return ue.UserMessage()
	}
	return fallback
}

func queryInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}
