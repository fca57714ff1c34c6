// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package member

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/inkwell/internal/models"
)

// DataOverview summarizes what the site stores about a member.
type DataOverview struct {
	MetaFields     int       `json:"meta_fields"`
	ActivityCount  int64     `json:"activity_count"`
	PageViews      int64     `json:"page_views"`
	Sessions       int       `json:"sessions"`
	LoginAttempts  int64     `json:"login_attempts"`
	AccountCreated time.Time `json:"account_created"`
}

// DataOverview counts the rows kept for userID.
func (s *Service) DataOverview(ctx context.Context, userID int64) (*DataOverview, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := s.db.AllUserMeta(ctx, userID)
	if err != nil {
		return nil, err
	}
	sessions, err := s.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	o := &DataOverview{MetaFields: len(meta), Sessions: len(sessions), AccountCreated: u.CreatedAt}
	counts := []struct {
		dst   *int64
		query string
		arg   any
	}{
		{&o.ActivityCount, `SELECT COUNT(*) FROM activity_log WHERE user_id = ?`, userID},
		{&o.PageViews, `SELECT COUNT(*) FROM page_views WHERE user_id = ?`, userID},
		{&o.LoginAttempts, `SELECT COUNT(*) FROM login_attempts WHERE username = ?`, u.Username},
	}
	for _, c := range counts {
		if err := s.db.Conn().QueryRowContext(ctx, c.query, c.arg).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to build data overview: %w", err)
		}
	}
	return o, nil
}

// Export is the portable copy of a member's data.
type Export struct {
	Account       ExportAccount           `json:"account"`
	Meta          map[string]string       `json:"meta"`
	Privacy       PrivacySettings         `json:"privacy"`
	Notifications NotificationPreferences `json:"notifications"`
	Activity      []models.Activity       `json:"activity"`
	ExportedAt    time.Time               `json:"exported_at"`
}

// ExportAccount is the account part of an Export. The password hash is
// never included.
type ExportAccount struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

// ExportUserData gathers everything for a download.
func (s *Service) ExportUserData(ctx context.Context, userID int64) (*Export, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := s.db.AllUserMeta(ctx, userID)
	if err != nil {
		return nil, err
	}
	// preference documents are exported decoded
	delete(meta, MetaNotificationPrefs)
	delete(meta, MetaPrivacySettings)

	privacy, err := s.PrivacySettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	notes, err := s.NotificationPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity, err := s.db.UserActivity(ctx, userID, 500)
	if err != nil {
		return nil, err
	}
	return &Export{
		Account: ExportAccount{
			ID: u.ID, Username: u.Username, Email: u.Email, DisplayName: u.DisplayName,
			Role: u.Role, Status: u.Status, CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
		},
		Meta:          meta,
		Privacy:       privacy,
		Notifications: notes,
		Activity:      activity,
		ExportedAt:    s.now().UTC(),
	}, nil
}

// RequestAccountDeletion marks the account inactive and schedules removal
// after DeletionGrace. It returns the scheduled time.
func (s *Service) RequestAccountDeletion(ctx context.Context, userID int64) (time.Time, error) {
	if _, err := s.user(ctx, userID); err != nil {
		return time.Time{}, err
	}
	now := s.now().UTC()
	at := now.Add(DeletionGrace)
	if err := s.db.SetUserMeta(ctx, userID, MetaDeletionRequestedAt, now.Format(time.RFC3339)); err != nil {
		return time.Time{}, err
	}
	if err := s.db.SetUserMeta(ctx, userID, MetaDeletionScheduledAt, at.Format(time.RFC3339)); err != nil {
		return time.Time{}, err
	}
	if _, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusInactive, now, userID); err != nil {
		return time.Time{}, fmt.Errorf("failed to deactivate account: %w", err)
	}
	uid := userID
	if err := s.db.LogActivity(ctx, models.Activity{
		UserID: &uid, Action: "account_deletion_requested", EntityType: "user", EntityID: &uid,
		Description: "Account deletion scheduled for " + at.Format("2006-01-02"),
	}); err != nil {
		return at, err
	}
	return at, nil
}

// ErrNoDeletionPending is returned when cancelling a deletion that was
// never requested.
var ErrNoDeletionPending = errors.New("no account deletion is scheduled")

// CancelAccountDeletion reactivates an account scheduled for deletion and
// clears the schedule.
func (s *Service) CancelAccountDeletion(ctx context.Context, userID int64) error {
	if _, err := s.user(ctx, userID); err != nil {
		return err
	}
	if _, ok, err := s.db.UserMeta(ctx, userID, MetaDeletionScheduledAt); err != nil {
		return err
	} else if !ok {
		return ErrNoDeletionPending
	}
	for _, key := range []string{MetaDeletionRequestedAt, MetaDeletionScheduledAt} {
		if err := s.db.DeleteUserMeta(ctx, userID, key); err != nil {
			return err
		}
	}
	if _, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusActive, s.now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to reactivate account: %w", err)
	}
	uid := userID
	return s.db.LogActivity(ctx, models.Activity{
		UserID: &uid, Action: "account_deletion_cancelled", EntityType: "user", EntityID: &uid,
		Description: "Scheduled account deletion cancelled",
	})
}

// DeletionScheduledAt returns when the account is due for removal, or the
// zero time when no deletion is pending.
func (s *Service) DeletionScheduledAt(ctx context.Context, userID int64) (time.Time, error) {
	v, ok, err := s.db.UserMeta(ctx, userID, MetaDeletionScheduledAt)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return parseMetaTime(v), nil
}

// UserSubscription returns the member's resolved plan, or nil without a
// subscription source.
func (s *Service) UserSubscription(ctx context.Context, userID int64) (*models.UserSubscription, error) {
	if s.subs == nil {
		return nil, nil
	}
	return s.subs.UserSubscription(ctx, userID)
}

// AvailablePackages lists the active plans a member can choose from.
func (s *Service) AvailablePackages(ctx context.Context) ([]*models.Plan, error) {
	if s.subs == nil {
		return nil, nil
	}
	return s.subs.AllPlans(ctx)
}

// UserPermissions merges the plan's feature flags over the member
// defaults.
func (s *Service) UserPermissions(ctx context.Context, userID int64) (map[string]bool, error) {
	perms := map[string]bool{
		"can_post":          true,
		"can_message":       true,
		"can_view_profiles": true,
		"premium_features":  false,
	}
	sub, err := s.UserSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || sub.Plan == nil {
		return perms, nil
	}
	for name, on := range sub.Plan.Features {
		perms[name] = on
		if on {
			perms["premium_features"] = true
		}
	}
	return perms, nil
}

func relative(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func parseMetaTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
