// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"errors"
	"strings"
)

// ErrInvalidBody is returned when a request body is not valid JSON for the
// endpoint.
var ErrInvalidBody = errors.New("invalid request body")

// notFound is implemented by errors that should map to 404.
type notFound interface{ NotFound() bool }

func isNotFound(err error) bool {
	var nf notFound
	if errors.As(err, &nf) && nf.NotFound() {
		return true
	}
	return strings.HasSuffix(err.Error(), "not found")
}
