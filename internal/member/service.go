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

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// Meta keys.
const (
	MetaTwoFactor           = "2fa_enabled"
	MetaPasswordChangedAt   = "password_changed_at"
	MetaNotificationPrefs   = "notification_preferences"
	MetaPrivacySettings     = "privacy_settings"
	MetaDeletionRequestedAt = "deletion_requested_at"
	MetaDeletionScheduledAt = "deletion_scheduled_at"
)

// DeletionGrace is the time between a deletion request and the scheduled
// removal.
const DeletionGrace = 30 * 24 * time.Hour

// ProfileFields are the free-form profile values members may edit.
var ProfileFields = []string{"first_name", "last_name", "bio", "website", "phone", "position", "company"}

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordFields   = errors.New("all password fields are required")
	ErrPasswordMismatch = errors.New("new password and confirmation do not match")
	ErrPasswordShort    = errors.New("the new password must be at least 8 characters long")
	ErrWrongPassword    = errors.New("the current password is not correct")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrEmailTaken       = errors.New("email address is already in use")
)

// Subscriptions resolves plans for the member area.
type Subscriptions interface {
	UserSubscription(ctx context.Context, userID int64) (*models.UserSubscription, error)
	AllPlans(ctx context.Context) ([]*models.Plan, error)
}

// Service is the member service.
type Service struct {
	db         *database.DB
	subs       Subscriptions
	bcryptCost int
	now        func() time.Time
}

// New creates the service. subs may be nil.
func New(db *database.DB, subs Subscriptions, bcryptCost int) *Service {
	return &Service{db: db, subs: subs, bcryptCost: bcryptCost, now: time.Now}
}

// ProfileUpdate carries the fields a member submits. Nil map entries and
// absent keys are left unchanged.
type ProfileUpdate struct {
	Email  string
	Fields map[string]string
}

// UpdateProfile changes the email (validated and unique) and the known
// profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileUpdate) error {
	if in.Email != "" {
		if !security.ValidateEmail(in.Email) {
			return ErrInvalidEmail
		}
		taken, err := s.db.EmailExists(ctx, in.Email, userID)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if _, err := s.db.Conn().ExecContext(ctx, `UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
			in.Email, s.now().UTC(), userID); err != nil {
			return fmt.Errorf("failed to update email: %w", err)
		}
	}
	for _, f := range ProfileFields {
		v, ok := in.Fields[f]
		if !ok {
			continue
		}
		kind := security.KindText
		if f == "website" && v != "" {
			kind = security.KindURL
		}
		if err := s.db.SetUserMeta(ctx, userID, f, security.Sanitize(v, kind)); err != nil {
			return err
		}
	}
	return nil
}

// UserMeta returns every meta value of the user.
func (s *Service) UserMeta(ctx context.Context, userID int64) (map[string]string, error) {
	return s.db.AllUserMeta(ctx, userID)
}

// ChangePassword verifies current and stores next.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	switch {
	case current == "" || next == "" || confirm == "":
		return ErrPasswordFields
	case next != confirm:
		return ErrPasswordMismatch
	case len(next) < 8:
		return ErrPasswordShort
	}
	u, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	if !security.VerifyPassword(current, u.PasswordHash) {
		return ErrWrongPassword
	}
	hash, err := security.HashPasswordCost(next, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.db.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return s.db.SetUserMeta(ctx, userID, MetaPasswordChangedAt, s.now().UTC().Format(time.RFC3339))
}

// Toggle2FA stores the two-factor flag.
func (s *Service) Toggle2FA(ctx context.Context, userID int64, enable bool) error {
	v := "0"
	if enable {
		v = "1"
	}
	return s.db.SetUserMeta(ctx, userID, MetaTwoFactor, v)
}

func (s *Service) user(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.db.UserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// NotificationPreferences are the member's notification switches.
type NotificationPreferences struct {
	EmailNotifications   bool   `json:"email_notifications"`
	EmailMarketing       bool   `json:"email_marketing"`
	EmailUpdates         bool   `json:"email_updates"`
	EmailSecurity        bool   `json:"email_security"`
	BrowserNotifications bool   `json:"browser_notifications"`
	DesktopNotifications bool   `json:"desktop_notifications"`
	MobileNotifications  bool   `json:"mobile_notifications"`
	NotifyNewFeatures    bool   `json:"notify_new_features"`
	NotifyPromotions     bool   `json:"notify_promotions"`
	Frequency            string `json:"notification_frequency"`
}

// DefaultNotificationPreferences apply until a member saves their own.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		EmailNotifications: true,
		EmailUpdates:       true,
		EmailSecurity:      true,
		NotifyNewFeatures:  true,
		Frequency:          "immediate",
	}
}

// NotificationPreferences loads the saved preferences over the defaults.
func (s *Service) NotificationPreferences(ctx context.Context, userID int64) (NotificationPreferences, error) {
	p := DefaultNotificationPreferences()
	return p, s.loadJSON(ctx, userID, MetaNotificationPrefs, &p)
}

// UpdateNotificationPreferences stores p.
func (s *Service) UpdateNotificationPreferences(ctx context.Context, userID int64, p NotificationPreferences) error {
	switch p.Frequency {
	case "immediate", "daily", "weekly":
	default:
		p.Frequency = "immediate"
	}
	return s.storeJSON(ctx, userID, MetaNotificationPrefs, p)
}

// PrivacySettings control what other members see.
type PrivacySettings struct {
	ProfileVisibility string `json:"profile_visibility"`
	ShowEmail         bool   `json:"show_email"`
	ShowActivity      bool   `json:"show_activity"`
}

// PrivacySettings loads the saved settings over the defaults.
func (s *Service) PrivacySettings(ctx context.Context, userID int64) (PrivacySettings, error) {
	p := PrivacySettings{ProfileVisibility: "members", ShowActivity: true}
	return p, s.loadJSON(ctx, userID, MetaPrivacySettings, &p)
}

// UpdatePrivacySettings stores p. Unknown visibilities become "members".
func (s *Service) UpdatePrivacySettings(ctx context.Context, userID int64, p PrivacySettings) error {
	switch p.ProfileVisibility {
	case "public", "members", "private":
	default:
		p.ProfileVisibility = "members"
	}
	return s.storeJSON(ctx, userID, MetaPrivacySettings, p)
}

func (s *Service) loadJSON(ctx context.Context, userID int64, key string, v any) error {
	raw, ok, err := s.db.UserMeta(ctx, userID, key)
	if err != nil || !ok || raw == "" {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("stored %s is not valid JSON: %w", key, err)
	}
	return nil
}

func (s *Service) storeJSON(ctx context.Context, userID int64, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.db.SetUserMeta(ctx, userID, key, string(raw))
}

// RecentNotifications returns the member's newest activity entries.
func (s *Service) RecentNotifications(ctx context.Context, userID int64, limit int) ([]models.Activity, error) {
	return s.db.UserActivity(ctx, userID, limit)
}

// ActiveSessions lists the member's unexpired sessions.
func (s *Service) ActiveSessions(ctx context.Context, userID int64) ([]database.SessionRecord, error) {
	return s.db.UserSessions(ctx, userID, s.now())
}
