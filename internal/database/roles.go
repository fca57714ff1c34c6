// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
)

// RoleRecord is a row of the roles table.
type RoleRecord struct {
	Name                  string   `json:"name"`
	DisplayName           string   `json:"display_name"`
	Description           string   `json:"description"`
	Capabilities          []string `json:"capabilities"`
	MemberDashboardAccess bool     `json:"member_dashboard_access"`
	SortOrder             int      `json:"sort_order"`
}

// Roles returns every role ordered by sort_order.
func (db *DB) Roles(ctx context.Context) ([]RoleRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT name, display_name, description, capabilities, member_dashboard_access, sort_order
		FROM roles ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer CloseRows(rows)

	var out []RoleRecord
	for rows.Next() {
		var (
			r          RoleRecord
			desc, caps sql.NullString
		)
		if err := rows.Scan(&r.Name, &r.DisplayName, &desc, &caps, &r.MemberDashboardAccess, &r.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		r.Description = desc.String
		if caps.Valid && caps.String != "" {
			if err := json.Unmarshal([]byte(caps.String), &r.Capabilities); err != nil {
				return nil, fmt.Errorf("role %s has invalid capabilities: %w", r.Name, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
