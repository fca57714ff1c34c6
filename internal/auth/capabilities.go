// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import "github.com/tomtom215/inkwell/internal/models"

// CapabilityChecker answers role capability questions. authz.Enforcer
// implements it.
type CapabilityChecker interface {
	Can(role, capability string) bool
}

// StaticCapabilities is the built-in role to capability map, used when no
// enforcer is configured.
type StaticCapabilities map[string][]string

// DefaultCapabilities mirrors the seeded roles table.
var DefaultCapabilities = StaticCapabilities{
	models.RoleMember: {"read", "edit_profile", "view_content"},
	models.RoleEditor: {"read", "edit_profile", "view_content", "edit_posts", "publish_posts", "manage_media"},
	models.RoleAuthor: {"read", "edit_profile", "view_content", "edit_own_posts"},
}

// Can reports whether role holds capability. Admins hold every capability.
func (m StaticCapabilities) Can(role, capability string) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, c := range m[role] {
		if c == capability {
			return true
		}
	}
	return false
}
