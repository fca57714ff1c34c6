// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import "errors"

// Sentinel errors returned by Manager.
var (
	ErrPageNotFound     = errors.New("page not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrTitleRequired    = errors.New("title is required")
	ErrInvalidStatus    = errors.New("invalid content status")
	ErrInvalidFormat    = errors.New("invalid content format")
)
