// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package member

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

type fakeSubs struct {
	sub   *models.UserSubscription
	plans []*models.Plan
}

func (f fakeSubs) UserSubscription(context.Context, int64) (*models.UserSubscription, error) {
	return f.sub, nil
}

func (f fakeSubs) AllPlans(context.Context) ([]*models.Plan, error) { return f.plans, nil }

func newService(t *testing.T, subs Subscriptions) (*Service, *models.User) {
	t.Helper()
	db := testinfra.NewDB(t)
	u := testinfra.CreateUser(t, db, "mia", models.RoleMember, "password123")
	testinfra.CreateUser(t, db, "other", models.RoleMember, "password123")
	return New(db, subs, bcrypt.MinCost), u
}

func TestUpdateProfile(t *testing.T) {
	s, u := newService(t, nil)
	ctx := context.Background()

	err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{
		Email:  "mia@new.example.com",
		Fields: map[string]string{"first_name": " <b>Mia</b> ", "website": "https://mia.example.com", "unknown": "x"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	meta, err := s.UserMeta(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserMeta: %v", err)
	}
	if meta["first_name"] != "Mia" {
		t.Errorf("first_name = %q", meta["first_name"])
	}
	if meta["website"] != "https://mia.example.com" {
		t.Errorf("website = %q", meta["website"])
	}
	if _, ok := meta["unknown"]; ok {
		t.Error("unknown field was stored")
	}
	got, err := s.db.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if got.Email != "mia@new.example.com" {
		t.Errorf("email = %q", got.Email)
	}

	if err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: "other@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("taken email err = %v", err)
	}
	if err := s.UpdateProfile(ctx, u.ID, ProfileUpdate{Email: "bogus"}); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("invalid email err = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, u := newService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name                   string
		current, next, confirm string
		want                   error
	}{
		{"missing", "", "newpassword", "newpassword", ErrPasswordFields},
		{"mismatch", "password123", "newpassword", "newpasswordx", ErrPasswordMismatch},
		{"short", "password123", "short", "short", ErrPasswordShort},
		{"wrong current", "wrong", "newpassword", "newpassword", ErrWrongPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.ChangePassword(ctx, u.ID, tt.current, tt.next, tt.confirm); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if err := s.ChangePassword(ctx, u.ID, "password123", "newpassword", "newpassword"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	got, err := s.db.UserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserByID: %v", err)
	}
	if !security.VerifyPassword("newpassword", got.PasswordHash) {
		t.Error("new password does not verify")
	}
	if v, ok, _ := s.db.UserMeta(ctx, u.ID, MetaPasswordChangedAt); !ok || v == "" {
		t.Error("password_changed_at not recorded")
	}
}

func TestPreferences(t *testing.T) {
	s, u := newService(t, nil)
	ctx := context.Background()

	np, err := s.NotificationPreferences(ctx, u.ID)
	if err != nil {
		t.Fatalf("NotificationPreferences: %v", err)
	}
	if np != DefaultNotificationPreferences() {
		t.Errorf("defaults = %+v", np)
	}
	np.EmailMarketing = true
	np.Frequency = "hourly"
	if err := s.UpdateNotificationPreferences(ctx, u.ID, np); err != nil {
		t.Fatalf("UpdateNotificationPreferences: %v", err)
	}
	np, _ = s.NotificationPreferences(ctx, u.ID)
	if !np.EmailMarketing || np.Frequency != "immediate" {
		t.Errorf("saved = %+v", np)
	}

	ps, err := s.PrivacySettings(ctx, u.ID)
	if err != nil {
		t.Fatalf("PrivacySettings: %v", err)
	}
	if ps.ProfileVisibility != "members" || ps.ShowEmail || !ps.ShowActivity {
		t.Errorf("privacy defaults = %+v", ps)
	}
	if err := s.UpdatePrivacySettings(ctx, u.ID, PrivacySettings{ProfileVisibility: "private", ShowEmail: true}); err != nil {
		t.Fatalf("UpdatePrivacySettings: %v", err)
	}
	ps, _ = s.PrivacySettings(ctx, u.ID)
	if ps.ProfileVisibility != "private" || !ps.ShowEmail || ps.ShowActivity {
		t.Errorf("privacy saved = %+v", ps)
	}

	if err := s.Toggle2FA(ctx, u.ID, true); err != nil {
		t.Fatalf("Toggle2FA: %v", err)
	}
	sec, err := s.SecurityData(ctx, u.ID)
	if err != nil {
		t.Fatalf("SecurityData: %v", err)
	}
	if !sec.TwoFactorEnabled || sec.Score != 100 {
		t.Errorf("security = %+v", sec)
	}
}

func TestSecurityData(t *testing.T) {
	s, u := newService(t, nil)
	ctx := context.Background()
	if err := s.db.RecordLoginAttempt(ctx, u.Username, "10.0.0.1", "ua", false); err != nil {
		t.Fatal(err)
	}
	if err := s.db.RecordLoginAttempt(ctx, u.Username, "10.0.0.2", "ua", true); err != nil {
		t.Fatal(err)
	}

	sec, err := s.SecurityData(ctx, u.ID)
	if err != nil {
		t.Fatalf("SecurityData: %v", err)
	}
	// base 40 + fresh password 20, no 2FA, one failure
	if sec.Score != 60 {
		t.Errorf("score = %d", sec.Score)
	}
	if sec.FailedAttempts != 1 || sec.LastLoginIP != "10.0.0.2" {
		t.Errorf("failed = %d, ip = %q", sec.FailedAttempts, sec.LastLoginIP)
	}
	if len(sec.Recommendations) != 2 {
		t.Errorf("recommendations = %v", sec.Recommendations)
	}
	if sec.LastLoginAgo != "never" {
		t.Errorf("last login ago = %q", sec.LastLoginAgo)
	}
}

func TestExportAndDeletion(t *testing.T) {
	s, u := newService(t, nil)
	ctx := context.Background()
	_ = s.UpdateProfile(ctx, u.ID, ProfileUpdate{Fields: map[string]string{"company": "Acme"}})
	_ = s.UpdatePrivacySettings(ctx, u.ID, PrivacySettings{ProfileVisibility: "public"})

	exp, err := s.ExportUserData(ctx, u.ID)
	if err != nil {
		t.Fatalf("ExportUserData: %v", err)
	}
	if exp.Account.Username != "mia" || exp.Meta["company"] != "Acme" || exp.Privacy.ProfileVisibility != "public" {
		t.Errorf("export = %+v", exp)
	}
	if _, ok := exp.Meta[MetaPrivacySettings]; ok {
		t.Error("raw privacy document leaked into meta")
	}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	at, err := s.RequestAccountDeletion(ctx, u.ID)
	if err != nil {
		t.Fatalf("RequestAccountDeletion: %v", err)
	}
	if !at.Equal(now.Add(DeletionGrace)) {
		t.Errorf("scheduled = %v", at)
	}
	got, _ := s.db.UserByID(ctx, u.ID)
	if got.Status != models.StatusInactive {
		t.Errorf("status = %q", got.Status)
	}
	notes, err := s.RecentNotifications(ctx, u.ID, 5)
	if err != nil || len(notes) != 1 || notes[0].Action != "account_deletion_requested" {
		t.Errorf("notifications = %+v, %v", notes, err)
	}

	o, err := s.DataOverview(ctx, u.ID)
	if err != nil {
		t.Fatalf("DataOverview: %v", err)
	}
	if o.ActivityCount != 1 || o.MetaFields < 3 {
		t.Errorf("overview = %+v", o)
	}

	if _, err := s.RequestAccountDeletion(ctx, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user err = %v", err)
	}
}

func TestPermissionsAndDashboard(t *testing.T) {
	plan := &models.Plan{ID: 2, Name: "Pro", Slug: "pro", Features: map[string]bool{"analytics": true, "api_access": false}}
	s, u := newService(t, fakeSubs{
		sub:   &models.UserSubscription{UserID: 1, Plan: plan, Source: "explicit"},
		plans: []*models.Plan{plan},
	})
	ctx := context.Background()

	perms, err := s.UserPermissions(ctx, u.ID)
	if err != nil {
		t.Fatalf("UserPermissions: %v", err)
	}
	if !perms["can_post"] || !perms["analytics"] || perms["api_access"] || !perms["premium_features"] {
		t.Errorf("perms = %v", perms)
	}
	pkgs, _ := s.AvailablePackages(ctx)
	if len(pkgs) != 1 {
		t.Errorf("packages = %d", len(pkgs))
	}

	_ = s.UpdateProfile(ctx, u.ID, ProfileUpdate{Fields: map[string]string{"first_name": "Mia"}})
	_ = s.db.RecordLoginAttempt(ctx, u.Username, "10.0.0.2", "ua", true)
	d, err := s.MemberDashboardData(ctx, u.ID)
	if err != nil {
		t.Fatalf("MemberDashboardData: %v", err)
	}
	if d.Logins30Days != 1 || d.ProfileComplete != 100/len(ProfileFields) || d.Subscription == nil {
		t.Errorf("dashboard = %+v", d)
	}
	if d.SecurityScore != 70 {
		t.Errorf("security score = %d", d.SecurityScore)
	}
}
