// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
	"github.com/tomtom215/inkwell/internal/validation"
)

type staticCaps map[string][]string

func (c staticCaps) Capabilities(role string) []string { return c[role] }

type recordingRevoker struct{ revoked []int64 }

func (r *recordingRevoker) DestroyUserSessions(_ context.Context, id int64) (int, error) {
	r.revoked = append(r.revoked, id)
	return 1, nil
}

func newService(t *testing.T) (*Service, *recordingRevoker, *models.User) {
	t.Helper()
	db := testinfra.NewDB(t)
	rev := &recordingRevoker{}
	s := New(db, staticCaps{models.RoleMember: {"read"}}, rev, bcrypt.MinCost)
	admin := testinfra.CreateUser(t, db, "root", models.RoleAdmin, "password123")
	return s, rev, admin
}

func TestCreateUser(t *testing.T) {
	s, _, admin := newService(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, admin.ID, CreateInput{
		Username: "alice", Email: "alice@example.com", Password: "longenough", FirstName: "Alice",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != models.RoleMember || u.Status != models.StatusActive || u.DisplayName != "alice" {
		t.Errorf("defaults not applied: %+v", u)
	}
	d, err := s.User(ctx, u.ID)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if d.Meta["first_name"] != "Alice" {
		t.Errorf("meta = %v", d.Meta)
	}

	_, err = s.CreateUser(ctx, admin.ID, CreateInput{Username: "alice", Email: "other@example.com", Password: "longenough"})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate username err = %v", err)
	}
	_, err = s.CreateUser(ctx, admin.ID, CreateInput{Username: "bob", Email: "alice@example.com", Password: "longenough"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email err = %v", err)
	}

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"short username", CreateInput{Username: "ab", Email: "ab@example.com", Password: "longenough"}},
		{"bad username", CreateInput{Username: "a b!", Email: "ab@example.com", Password: "longenough"}},
		{"bad email", CreateInput{Username: "carol", Email: "nope", Password: "longenough"}},
		{"short password", CreateInput{Username: "carol", Email: "c@example.com", Password: "short"}},
		{"unknown role", CreateInput{Username: "carol", Email: "c@example.com", Password: "longenough", Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, admin.ID, tt.in)
			var ve *validation.RequestValidationError
			if !errors.As(err, &ve) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

func TestUpdateAndLastAdmin(t *testing.T) {
	s, rev, admin := newService(t)
	ctx := context.Background()

	role := models.RoleMember
	if _, err := s.UpdateUser(ctx, admin.ID, admin.ID, UpdateInput{Role: &role}); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("demoting last admin err = %v", err)
	}
	if err := s.DeleteUser(ctx, 0, admin.ID, false); !errors.Is(err, ErrLastAdmin) {
		t.Errorf("deleting last admin err = %v", err)
	}
	if err := s.DeleteUser(ctx, admin.ID, admin.ID, false); !errors.Is(err, ErrSelfAction) {
		t.Errorf("self delete err = %v", err)
	}

	u, err := s.CreateUser(ctx, admin.ID, CreateInput{Username: "editor1", Email: "editor1@example.com", Password: "longenough"})
	if err != nil {
		t.Fatal(err)
	}
	name, status := "Ed Editor", models.StatusInactive
	got, err := s.UpdateUser(ctx, admin.ID, u.ID, UpdateInput{DisplayName: &name, Status: &status})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.DisplayName != "Ed Editor" || got.Status != models.StatusInactive {
		t.Errorf("update not applied: %+v", got)
	}
	if len(rev.revoked) != 1 || rev.revoked[0] != u.ID {
		t.Errorf("sessions revoked for %v", rev.revoked)
	}

	if _, err := s.UpdateUser(ctx, admin.ID, 9999, UpdateInput{DisplayName: &name}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v", err)
	}
}

func TestDeleteUserHard(t *testing.T) {
	s, _, admin := newService(t)
	ctx := context.Background()
	u, err := s.CreateUser(ctx, admin.ID, CreateInput{Username: "gone", Email: "gone@example.com", Password: "longenough", LastName: "X"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, admin.ID, u.ID, true); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := s.User(ctx, u.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("User after delete err = %v", err)
	}
	meta, err := s.db.AllUserMeta(ctx, u.ID)
	if err != nil || len(meta) != 0 {
		t.Errorf("meta left behind: %v %v", meta, err)
	}
}

func TestUsersAndBulk(t *testing.T) {
	s, _, admin := newService(t)
	ctx := context.Background()
	var ids []int64
	for _, name := range []string{"anna", "bert", "cora"} {
		u, err := s.CreateUser(ctx, admin.ID, CreateInput{Username: name, Email: name + "@example.com", Password: "longenough"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, u.ID)
	}

	list, total, err := s.Users(ctx, Query{Role: models.RoleMember, OrderBy: "username", Order: "asc", Limit: 2})
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if total != 3 || len(list) != 2 || list[0].Username != "anna" {
		t.Errorf("Users = %d %v", total, list)
	}
	found, _, err := s.Users(ctx, Query{Search: "BER"})
	if err != nil || len(found) != 1 {
		t.Errorf("search = %v %v", found, err)
	}

	res, err := s.BulkAction(ctx, admin.ID, ActionChangeRole, append(ids, admin.ID), models.RoleEditor)
	if err != nil {
		t.Fatalf("BulkAction: %v", err)
	}
	if res.Success != 3 || res.Failed != 1 {
		t.Errorf("BulkAction = %+v", res)
	}
	if _, err := s.BulkAction(ctx, admin.ID, "explode", ids, ""); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("unknown action err = %v", err)
	}

	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.Total != 4 || st.ByRole[models.RoleEditor] != 3 || st.ByRole[models.RoleAdmin] != 1 || st.NewLast30Days != 4 {
		t.Errorf("Statistics = %+v", st)
	}
}

func TestRoleCatalogue(t *testing.T) {
	s, _, _ := newService(t)
	roles := s.RoleDescriptions()
	if len(roles) != 4 || roles[0].Slug != models.RoleAdmin {
		t.Fatalf("RoleDescriptions = %+v", roles)
	}
	if caps := s.RoleCapabilities(models.RoleMember); len(caps) != 1 || caps[0] != "read" {
		t.Errorf("member caps = %v", caps)
	}
	if len(s.AvailableStatuses()) != 3 || s.AvailableRoles()[models.RoleEditor] != "Editor" {
		t.Error("catalogue mismatch")
	}
}
