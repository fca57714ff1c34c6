// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package member

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
)

// Dashboard is the data behind the member home page.
type Dashboard struct {
	User            *models.User             `json:"user"`
	Meta            map[string]string        `json:"meta"`
	Subscription    *models.UserSubscription `json:"subscription,omitempty"`
	Permissions     map[string]bool          `json:"permissions"`
	AccountAgeDays  int                      `json:"account_age_days"`
	MemberSince     string                   `json:"member_since"`
	LastLoginAgo    string                   `json:"last_login_ago"`
	Logins30Days    int64                    `json:"logins_30_days"`
	ProfileComplete int                      `json:"profile_complete"`
	Notifications   []models.Activity        `json:"notifications"`
	SecurityScore   int                      `json:"security_score"`
}

// MemberDashboardData aggregates the member's account summary.
func (s *Service) MemberDashboardData(ctx context.Context, userID int64) (*Dashboard, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &Dashboard{
		User:           u,
		AccountAgeDays: int(now.Sub(u.CreatedAt).Hours() / 24),
		MemberSince:    relative(u.CreatedAt, now),
		LastLoginAgo:   "never",
	}
	if u.LastLogin != nil {
		d.LastLoginAgo = relative(*u.LastLogin, now)
	}
	if d.Meta, err = s.db.AllUserMeta(ctx, userID); err != nil {
		return nil, err
	}
	filled := 0
	for _, f := range ProfileFields {
		if d.Meta[f] != "" {
			filled++
		}
	}
	d.ProfileComplete = filled * 100 / len(ProfileFields)

	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_attempts WHERE username = ? AND success AND attempted_at >= ?`,
		u.Username, now.Add(-30*24*time.Hour).UTC()).Scan(&d.Logins30Days); err != nil {
		return nil, fmt.Errorf("failed to count logins: %w", err)
	}
	if d.Notifications, err = s.RecentNotifications(ctx, userID, 5); err != nil {
		return nil, err
	}
	if d.Subscription, err = s.UserSubscription(ctx, userID); err != nil {
		return nil, err
	}
	if d.Permissions, err = s.UserPermissions(ctx, userID); err != nil {
		return nil, err
	}
	sec, err := s.SecurityData(ctx, userID)
	if err != nil {
		return nil, err
	}
	d.SecurityScore = sec.Score
	return d, nil
}
