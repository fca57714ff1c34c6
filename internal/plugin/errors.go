// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import "errors"

var (
	// ErrPluginNotFound is returned for slugs with no registered plugin.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrAlreadyActive is returned when activating an active plugin.
	ErrAlreadyActive = errors.New("plugin is already active")

	// ErrNotActive is returned when deactivating an inactive plugin.
	ErrNotActive = errors.New("plugin is not active")

	// ErrPluginActive is returned when deleting a plugin that is still active.
	ErrPluginActive = errors.New("plugin must be deactivated first")

	// ErrMissingDependency is returned when a required plugin is not active.
	ErrMissingDependency = errors.New("required plugin is not active")
)
