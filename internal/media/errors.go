// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import "errors"

var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrNotFound        = errors.New("item not found")
	ErrExists          = errors.New("destination already exists")
	ErrNotDirectory    = errors.New("directory does not exist")
	ErrSystemItem      = errors.New("system folders cannot be modified")
	ErrTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrTypeNotAllowed  = errors.New("file type is not allowed")
	ErrContentMismatch = errors.New("file content does not match its extension")
	ErrCategoryExists  = errors.New("category already exists")
	ErrUnknownCategory = errors.New("unknown category")
)
