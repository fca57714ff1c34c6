// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package member

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
)

// SecurityData is the member's security overview.
type SecurityData struct {
	TwoFactorEnabled  bool                     `json:"two_factor_enabled"`
	PasswordChangedAt *time.Time               `json:"password_changed_at,omitempty"`
	PasswordAge       string                   `json:"password_age"`
	LastLogin         *time.Time               `json:"last_login,omitempty"`
	LastLoginAgo      string                   `json:"last_login_ago"`
	LastLoginIP       string                   `json:"last_login_ip,omitempty"`
	FailedAttempts    int64                    `json:"failed_attempts_30d"`
	Sessions          []database.SessionRecord `json:"sessions"`
	Score             int                      `json:"score"`
	Recommendations   []string                 `json:"recommendations"`
}

// SecurityData scores the account: 40 base, 30 for two-factor, up to 20
// for a recent password, 10 for no recent failed logins.
func (s *Service) SecurityData(ctx context.Context, userID int64) (*SecurityData, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	meta, err := s.db.AllUserMeta(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	d := &SecurityData{TwoFactorEnabled: meta[MetaTwoFactor] == "1", LastLogin: u.LastLogin, Score: 40}
	if u.LastLogin != nil {
		d.LastLoginAgo = relative(*u.LastLogin, now)
	} else {
		d.LastLoginAgo = relative(time.Time{}, now)
	}

	if d.TwoFactorEnabled {
		d.Score += 30
	} else {
		d.Recommendations = append(d.Recommendations, "Enable two-factor authentication")
	}

	changed := parseMetaTime(meta[MetaPasswordChangedAt])
	if changed.IsZero() {
		changed = u.CreatedAt
	} else {
		d.PasswordChangedAt = &changed
	}
	d.PasswordAge = relative(changed, now)
	switch age := now.Sub(changed); {
	case age <= 90*24*time.Hour:
		d.Score += 20
	case age <= 180*24*time.Hour:
		d.Score += 10
		d.Recommendations = append(d.Recommendations, "Consider changing your password")
	default:
		d.Recommendations = append(d.Recommendations, "Your password is older than six months; change it")
	}

	d.FailedAttempts, err = s.db.CountFailedLogins(ctx, now.Add(-30*24*time.Hour), u.Username)
	if err != nil {
		return nil, err
	}
	if d.FailedAttempts == 0 {
		d.Score += 10
	} else {
		d.Recommendations = append(d.Recommendations,
			fmt.Sprintf("%d failed sign-in attempts in the last 30 days", d.FailedAttempts))
	}

	err = s.db.Conn().QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ip_address), '') FROM (
			SELECT ip_address FROM login_attempts WHERE username = ? AND success
			ORDER BY attempted_at DESC LIMIT 1)`, u.Username).Scan(&d.LastLoginIP)
	if err != nil {
		return nil, fmt.Errorf("failed to read last login ip: %w", err)
	}

	if d.Sessions, err = s.ActiveSessions(ctx, userID); err != nil {
		return nil, err
	}
	return d, nil
}
