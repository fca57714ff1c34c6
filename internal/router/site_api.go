// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/users"
)

// StatusInfo is the body of /api/v1/status.
type StatusInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func respondAPI(w http.ResponseWriter, status int, resp *models.APIResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal API response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write API response")
	}
}

func respondData(w http.ResponseWriter, start time.Time, data any, total *int) {
	respondAPI(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Total:       total,
		},
	})
}

func respondAPIError(w http.ResponseWriter, status int, code, message string) {
	respondAPI(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

func (h *site) apiStatus(w http.ResponseWriter, _ *http.Request, _ Params) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(StatusInfo{Status: "ok", Version: h.Version})
}

func (h *site) apiPages(w http.ResponseWriter, r *http.Request, _ Params) {
	if !auth.IsLoggedIn(r.Context()) {
		respondAPIError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Authentication required")
		return
	}
	start := time.Now()
	var (
		pages []*models.Page
		err   error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		pages, err = h.Content.Search(r.Context(), q)
	} else {
		pages, err = h.Content.ListPages(r.Context(), models.ContentPublished)
	}
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("API page listing failed")
		respondAPIError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list pages")
		return
	}
	total := len(pages)
	respondData(w, start, pages, &total)
}

func (h *site) apiPage(w http.ResponseWriter, r *http.Request, p Params) {
	start := time.Now()
	page, err := h.Content.PublishedPageBySlug(r.Context(), p.Get("slug"))
	if err != nil {
		if errors.Is(err, content.ErrPageNotFound) || database.IsNotFound(err) {
			respondAPIError(w, http.StatusNotFound, "NOT_FOUND", "Page not found")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("API page lookup failed")
		respondAPIError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load page")
		return
	}
	respondData(w, start, page, nil)
}

func (h *site) apiCookieConsent(w http.ResponseWriter, r *http.Request, _ Params) {
	start := time.Now()
	banner, err := h.Consent.Banner(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Cookie banner lookup failed")
		respondAPIError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load cookie settings")
		return
	}
	respondData(w, start, banner, nil)
}

func (h *site) apiAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !auth.IsAdmin(r.Context()) {
		respondAPIError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "Administrator access required")
		return false
	}
	if h.Users == nil {
		respondAPIError(w, http.StatusNotFound, "NOT_FOUND", "User management is not available")
		return false
	}
	return true
}

func (h *site) apiUsers(w http.ResponseWriter, r *http.Request, _ Params) {
	if !h.apiAdmin(w, r) {
		return
	}
	start := time.Now()
	q := r.URL.Query()
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	list, total, err := h.Users.Users(r.Context(), users.Query{
		Search: q.Get("search"), Role: q.Get("role"), Status: q.Get("status"),
		OrderBy: q.Get("orderby"), Order: q.Get("order"), Limit: limit, Offset: offset,
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("API user listing failed")
		respondAPIError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list users")
		return
	}
	n := int(total)
	respondAPI(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   list,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Total:       &n,
			Limit:       limit,
			Offset:      offset,
		},
	})
}

func (h *site) apiUser(w http.ResponseWriter, r *http.Request, p Params) {
	if !h.apiAdmin(w, r) {
		return
	}
	start := time.Now()
	id, err := strconv.ParseInt(p.Get("id"), 10, 64)
	if err != nil || id <= 0 {
		respondAPIError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid user id")
		return
	}
	u, err := h.Users.User(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) || database.IsNotFound(err) {
			respondAPIError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("API user lookup failed")
		respondAPIError(w, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user")
		return
	}
	respondData(w, start, u, nil)
}
