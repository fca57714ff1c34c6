// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/users"
)

// UserCreate adds an account.
func (h *Handler) UserCreate(w http.ResponseWriter, r *http.Request) {
	var in users.CreateInput
	if err := DecodeJSON(r, &in); err != nil {
		NewResponseWriter(w, r).BadRequest("Request body must be a JSON user object")
		return
	}
	u, err := h.svc.Users.CreateUser(r.Context(), actorID(r), in)
	if err != nil {
		writeUserErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(u)
}

// UserDelete removes an account. ?hard=1 deletes the row; otherwise the
// account is disabled.
func (h *Handler) UserDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		NewResponseWriter(w, r).BadRequest("Invalid user id")
		return
	}
	hard := r.URL.Query().Get("hard") == "1"
	if err := h.svc.Users.DeleteUser(r.Context(), actorID(r), id, hard); err != nil {
		writeUserErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorID(r *http.Request) int64 {
	return logging.UserIDFromContext(r.Context())
}

func writeUserErr(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrEmailTaken):
		rw.Conflict(err.Error())
	case errors.Is(err, users.ErrSelfAction), errors.Is(err, users.ErrLastAdmin):
		rw.Forbidden(err.Error())
	default:
		WriteErr(w, r, err)
	}
}
