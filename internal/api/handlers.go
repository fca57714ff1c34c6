// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/inkwell/internal/bootstrap"
	"github.com/tomtom215/inkwell/internal/middleware"
	"github.com/tomtom215/inkwell/internal/websocket"
)

// Handler serves the JSON endpoints.
type Handler struct {
	app       *bootstrap.App
	svc       *bootstrap.Services
	hub       *websocket.Hub
	monitor   *middleware.PerformanceMonitor
	startTime time.Time
}

// NewHandler creates the handler set. hub and monitor may be nil.
func NewHandler(app *bootstrap.App, hub *websocket.Hub, monitor *middleware.PerformanceMonitor) *Handler {
	if monitor == nil {
		monitor = middleware.NewPerformanceMonitor(0)
	}
	return &Handler{
		app:       app,
		svc:       app.Services(),
		hub:       hub,
		monitor:   monitor,
		startTime: time.Now(),
	}
}

// queryInt parses a positive integer query parameter clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// unavailable reports a disabled optional service.
func unavailable(w http.ResponseWriter, r *http.Request, what string) {
	NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeUnavailable, what+" is not enabled")
}
