// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Dashboard returns the admin dashboard statistics.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.svc.Dashboard.AllStats(r.Context()))
}

// Activity returns the newest activity log entries (?limit=, max 100).
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	feed, err := h.svc.Dashboard.ActivityFeed(r.Context(), queryInt(r, "limit", 20, 100))
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteSuccess(w, r, feed)
}

// Analytics returns visitor statistics and top pages for ?days= (max 365).
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := queryInt(r, "days", 30, 365)
	visitors, err := h.svc.Analytics.VisitorStats(ctx, days)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	top, err := h.svc.Analytics.TopPages(ctx, days, queryInt(r, "limit", 10, 50))
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]any{
		"days":      days,
		"visitors":  visitors,
		"top_pages": top,
		"health":    h.svc.Analytics.SystemHealth(ctx),
	})
}

// Performance returns per-route latency statistics collected in memory.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"endpoints": h.monitor.Stats(),
		"recent":    h.monitor.Recent(queryInt(r, "recent", 20, 200)),
	})
}

// SystemStatus returns the system check report and the status sections.
func (h *Handler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(w, r, map[string]any{
		"report": h.svc.System.RunSystemCheck(ctx),
		"status": h.svc.Status.FullStatus(ctx),
	})
}

// ClearCache empties every registered cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.System.ClearCache(r.Context())
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Info().Int64("entries", n).Msg("Caches cleared via API")
	WriteSuccess(w, r, map[string]int64{"cleared": n})
}

// Updates reports available core, plugin and theme updates.
func (h *Handler) Updates(w http.ResponseWriter, r *http.Request) {
	if h.svc.Updates == nil {
		unavailable(w, r, "Update checking")
		return
	}
	WriteSuccess(w, r, h.svc.Updates.CheckAll(r.Context()))
}
