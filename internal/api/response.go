// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/validation"
)

// Error codes used in APIError.Code.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeUnauthorized     = "AUTHENTICATION_ERROR"
	ErrCodeForbidden        = "AUTHORIZATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "RATE_LIMIT_EXCEEDED"
	ErrCodeDatabase         = "DATABASE_ERROR"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
)

// ResponseWriter writes models.APIResponse envelopes.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a response writer for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

func (rw *ResponseWriter) metadata() models.Metadata {
	return models.Metadata{
		Timestamp:   time.Now().UTC(),
		QueryTimeMS: time.Since(rw.startTime).Milliseconds(),
	}
}

// Success writes data with status 200.
func (rw *ResponseWriter) Success(data any) {
	rw.writeJSON(http.StatusOK, models.APIResponse{Status: "success", Data: data, Metadata: rw.metadata()})
}

// Paginated writes a page of results with its total.
func (rw *ResponseWriter) Paginated(data any, total int64, limit, offset int) {
	meta := rw.metadata()
	n := int(total)
	meta.Total, meta.Limit, meta.Offset = &n, limit, offset
	rw.writeJSON(http.StatusOK, models.APIResponse{Status: "success", Data: data, Metadata: meta})
}

// Created writes data with status 201.
func (rw *ResponseWriter) Created(data any) {
	rw.writeJSON(http.StatusCreated, models.APIResponse{Status: "success", Data: data, Metadata: rw.metadata()})
}

// Error writes an error envelope.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error envelope with details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details map[string]any) {
	rw.writeAPIError(statusCode, &models.APIError{Code: code, Message: message, Details: details})
}

func (rw *ResponseWriter) writeAPIError(statusCode int, apiErr *models.APIError) {
	if id := logging.RequestIDFromContext(rw.r.Context()); id != "" {
		if apiErr.Details == nil {
			apiErr.Details = map[string]any{}
		}
		apiErr.Details["request_id"] = id
	}
	rw.writeJSON(statusCode, models.APIResponse{Status: "error", Metadata: rw.metadata(), Error: apiErr})
}

// BadRequest writes a 400 error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized writes a 401 error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden writes a 403 error.
func (rw *ResponseWriter) Forbidden(message string) {
	rw.Error(http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound writes a 404 error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict writes a 409 error.
func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, ErrCodeConflict, message)
}

// InternalError writes a 500 error.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternal, message)
}

// ValidationFailed writes a 400 error carrying per-field details.
func (rw *ResponseWriter) ValidationFailed(ve *validation.RequestValidationError) {
	rw.writeAPIError(http.StatusBadRequest, ve.ToAPIError())
}

// DatabaseError logs err and writes a generic 500 error.
func (rw *ResponseWriter) DatabaseError(err error) {
	logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Database error")
	rw.Error(http.StatusInternalServerError, ErrCodeDatabase, "A database error occurred")
}

func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	NewResponseWriter(w, r).Success(data)
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	NewResponseWriter(w, r).Error(statusCode, code, message)
}

// WriteNotFound writes a 404 envelope.
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	NewResponseWriter(w, r).NotFound(message)
}

// WriteErr maps err onto a status: validation errors become 400 with
// field details, UserError 400 with its message, ErrNotFound-style
// sentinels 404, everything else 500.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	var ve *validation.RequestValidationError
	var ue interface{ UserMessage() string }
	switch {
	case errors.As(err, &ve):
		rw.ValidationFailed(ve)
	case isNotFound(err):
		rw.NotFound(err.Error())
	case errors.As(err, &ue):
		rw.BadRequest(ue.UserMessage())
	default:
		rw.DatabaseError(err)
	}
}

// DecodeJSON reads a JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ErrInvalidBody
	}
	return nil
}
