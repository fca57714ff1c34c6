// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/validation"
)

// IssueToken exchanges a username or email and password for a bearer token.
// Admins always qualify; other users need the api_access plan feature.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req TokenRequest
	if err := DecodeJSON(r, &req); err != nil {
		rw.BadRequest("Request body must be JSON with username and password")
		return
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		rw.ValidationFailed(ve)
		return
	}

	token, expires, err := h.app.Auth().IssueTokenForCredentials(r.Context(), auth.Credentials{
		Identifier: req.Username,
		Password:   req.Password,
		IP:         security.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	switch {
	case err == nil:
		rw.Created(TokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expires.UTC().Format(time.RFC3339)})
	case errors.Is(err, auth.ErrRateLimited):
		rw.Error(http.StatusTooManyRequests, ErrCodeTooManyRequests, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountDisabled):
		rw.Unauthorized(err.Error())
	case errors.Is(err, auth.ErrAPIAccessDenied):
		rw.Forbidden("API access is not included in your plan")
	default:
		rw.DatabaseError(err)
	}
}
