// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of the health probes.
type HealthStatus struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Database    bool    `json:"database"`
	LiveClients int     `json:"live_clients"`
	Uptime      float64 `json:"uptime_seconds"`
}

// HealthLive answers as long as the process serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 503 until the database answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:   "ready",
		Version:  h.app.Config().Site.Version,
		Database: h.app.DB().Ping(ctx) == nil,
		Uptime:   time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		status.LiveClients = h.hub.ClientCount()
	}
	if !status.Database {
		status.Status = "not_ready"
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeUnavailable,
			"Database is not reachable", map[string]any{"health": status})
		return
	}
	WriteSuccess(w, r, status)
}
