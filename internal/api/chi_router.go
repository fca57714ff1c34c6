// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/inkwell/internal/authz"
	"github.com/tomtom215/inkwell/internal/bootstrap"
	"github.com/tomtom215/inkwell/internal/middleware"
	"github.com/tomtom215/inkwell/internal/websocket"
)

// Router owns the outer chi router.
type Router struct {
	handler *Handler
	chi     *ChiMiddleware
	guards  *authz.Middleware
	app     *bootstrap.App
	hub     *websocket.Hub
}

// NewRouter builds the router for app. hub may be nil, in which case
// /admin/live is not mounted.
func NewRouter(app *bootstrap.App, hub *websocket.Hub) *Router {
	monitor := middleware.NewPerformanceMonitor(1000)
	guards := authz.NewMiddleware(app.Enforcer())
	guards.Unauthenticated = func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Unauthorized("Authentication required")
	}
	guards.Forbidden = func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Forbidden("Administrator access required")
	}
	return &Router{
		handler: NewHandler(app, hub, monitor),
		chi:     NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&app.Config().Security)),
		guards:  guards,
		app:     app,
		hub:     hub,
	}
}

// Handler returns the process-wide http.Handler.
func (rt *Router) Handler() http.Handler {
	h := rt.handler
	authn := rt.app.Auth().Middleware
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(rt.chi.TrustedRealIP())
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chi.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.monitor.Middleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(rt.chi.RateLimitToken())
		r.Post("/token", h.IssueToken)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(rt.chi.RateLimit())
		r.Use(middleware.Compression)
		r.Use(authn)
		r.Use(rt.guards.RequireAdmin)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/activity", h.Activity)
		r.Get("/analytics", h.Analytics)
		r.Get("/performance", h.Performance)
		r.Get("/system", h.SystemStatus)
		r.Post("/system/cache", h.ClearCache)
		r.Get("/updates", h.Updates)

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", h.BackupList)
			r.Post("/", h.BackupCreate)
			r.Get("/history", h.BackupHistory)
			r.Post("/retention", h.BackupRetention)
			r.Post("/{name}/restore", h.BackupRestore)
			r.Delete("/{name}", h.BackupDelete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.UserCreate)
			r.Delete("/{id}", h.UserDelete)
		})
	})

	if rt.hub != nil {
		r.With(authn).Handle("/admin/live", websocket.Handler(rt.hub, rt.app.Config().Site.URL))
	}

	r.With(middleware.Compression).Handle("/*", rt.app.Handler())
	return r
}

// ServerTimeouts are applied to the http.Server built in cmd/server.
type ServerTimeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// DefaultServerTimeouts derives timeouts from the request timeout.
func DefaultServerTimeouts(request time.Duration) ServerTimeouts {
	if request <= 0 {
		request = 30 * time.Second
	}
	return ServerTimeouts{
		ReadHeader: 10 * time.Second,
		Read:       request,
		Write:      2 * request,
		Idle:       2 * time.Minute,
	}
}
