// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import "errors"

// Sentinel errors.
var (
	ErrThemeNotFound   = errors.New("theme not found")
	ErrThemeActive     = errors.New("the active theme cannot be deleted")
	ErrLastTheme       = errors.New("the last available theme cannot be deleted")
	ErrUnknownSetting  = errors.New("unknown customizer setting")
	ErrNoCustomization = errors.New("no customizations to import")
)
