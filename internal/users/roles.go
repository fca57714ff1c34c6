// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package users

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
)

// RoleInfo describes a role for the admin UI.
type RoleInfo struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

var roleLabels = map[string][3]string{
	models.RoleAdmin:  {"Administrator", "👑", "Full access to every feature and setting"},
	models.RoleEditor: {"Editor", "✏️", "Creates, edits and publishes all content"},
	models.RoleAuthor: {"Author", "📝", "Creates and publishes own posts"},
	models.RoleMember: {"Member", "👤", "Logs in and edits own profile"},
}

// AvailableRoles maps role slugs to display names.
func (s *Service) AvailableRoles() map[string]string {
	out := make(map[string]string, len(roleLabels))
	for slug, l := range roleLabels {
		out[slug] = l[0]
	}
	return out
}

// RoleDescriptions lists the roles, most privileged first.
func (s *Service) RoleDescriptions() []RoleInfo {
	out := make([]RoleInfo, 0, len(models.Roles))
	for _, slug := range models.Roles {
		l := roleLabels[slug]
		out = append(out, RoleInfo{Slug: slug, Name: l[0], Icon: l[1], Description: l[2], Capabilities: s.RoleCapabilities(slug)})
	}
	return out
}

// RoleCapabilities lists the capabilities of role from the RBAC policy.
func (s *Service) RoleCapabilities(role string) []string {
	if s.caps == nil {
		return []string{}
	}
	caps := s.caps.Capabilities(role)
	if caps == nil {
		return []string{}
	}
	return caps
}

// AvailableStatuses maps status slugs to display names.
func (s *Service) AvailableStatuses() map[string]string {
	return map[string]string{
		models.StatusActive:   "Active",
		models.StatusInactive: "Inactive",
		models.StatusBanned:   "Banned",
	}
}

// Statistics is the user overview of the admin area.
type Statistics struct {
	Total         int64            `json:"total_users"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByRole        map[string]int64 `json:"by_role"`
	NewLast30Days int64            `json:"new_last_30_days"`
}

// Statistics counts users by role and status.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	st := Statistics{ByStatus: map[string]int64{}, ByRole: map[string]int64{}}
	for _, r := range models.Roles {
		st.ByRole[r] = 0
	}
	for _, v := range models.Statuses {
		st.ByStatus[v] = 0
	}
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT role, status, COUNT(*) FROM users GROUP BY role, status`)
	if err != nil {
		return st, fmt.Errorf("failed to count users: %w", err)
	}
	for rows.Next() {
		var (
			role, status string
			n            int64
		)
		if err := rows.Scan(&role, &status, &n); err != nil {
			_ = rows.Close()
			return st, fmt.Errorf("failed to scan user counts: %w", err)
		}
		st.ByRole[role] += n
		st.ByStatus[status] += n
		st.Total += n
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return st, err
	}
	_ = rows.Close()

	since := s.now().UTC().Add(-30 * 24 * time.Hour)
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= ?`, since).
		Scan(&st.NewLast30Days); err != nil {
		return st, fmt.Errorf("failed to count new users: %w", err)
	}
	return st, nil
}

// Meta returns one meta value of a user.
func (s *Service) Meta(ctx context.Context, userID int64, key string) (string, error) {
	v, _, err := s.db.UserMeta(ctx, userID, key)
	return v, err
}

// SetMeta stores one meta value of a user.
func (s *Service) SetMeta(ctx context.Context, userID int64, key, value string) error {
	return s.db.SetUserMeta(ctx, userID, key, value)
}
