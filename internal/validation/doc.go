// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the API handlers and the admin
// services. Field names in errors are taken from the json tag so messages
// match the request body the client sent.
//
// Custom tags:
//   - username: letters, digits and underscore
//   - slug: lowercase words joined by single hyphens
//   - role, user_status, content_status: membership in the models enums
//
// Example:
//
//	type CreateUserRequest struct {
//	    Username string `json:"username" validate:"required,min=3,max=60,username"`
//	    Email    string `json:"email" validate:"required,email"`
//	    Role     string `json:"role" validate:"omitempty,role"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
package validation
