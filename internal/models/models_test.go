// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package models

import "testing"

func TestUserPredicates(t *testing.T) {
	var nilUser *User
	if nilUser.IsAdmin() || nilUser.IsActive() {
		t.Error("nil user must not be admin or active")
	}
	u := &User{Role: RoleAdmin, Status: StatusBanned}
	if !u.IsAdmin() || u.IsActive() {
		t.Errorf("IsAdmin=%v IsActive=%v", u.IsAdmin(), u.IsActive())
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) bool
		in   string
		want bool
	}{
		{"role member", ValidRole, RoleMember, true},
		{"role root", ValidRole, "root", false},
		{"status banned", ValidStatus, StatusBanned, true},
		{"status empty", ValidStatus, "", false},
		{"content trash", ValidContentStatus, ContentTrash, true},
		{"content live", ValidContentStatus, "live", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanLimit(t *testing.T) {
	var p *Plan
	if p.Limit("experts") != 0 {
		t.Error("nil plan limit must be 0")
	}
	p = &Plan{Limits: map[string]int{"experts": -1}}
	if p.Limit("experts") != -1 || p.Limit("events") != 0 {
		t.Errorf("limits = %v", p.Limits)
	}
}
