// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"fmt"
	"time"
)

// SessionRecord is the SQL index of a live session. The session payload
// itself lives in the session store; this row lets admins and members list
// sessions without scanning the store.
type SessionRecord struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RecordLoginAttempt writes a login_attempts row and, for failures, a
// failed_logins row.
func (db *DB) RecordLoginAttempt(ctx context.Context, username, ip, userAgent string, success bool) error {
	now := time.Now().UTC()
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO login_attempts (username, ip_address, success, attempted_at) VALUES (?, ?, ?, ?)`,
		username, ip, success, now); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	if success {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO failed_logins (username, ip_address, user_agent, attempted_at) VALUES (?, ?, ?, ?)`,
		username, ip, nullString(userAgent), now); err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}
	return nil
}

// CountFailedLogins counts failed logins since t, optionally for one username.
func (db *DB) CountFailedLogins(ctx context.Context, since time.Time, username string) (int64, error) {
	q, args := `SELECT COUNT(*) FROM failed_logins WHERE attempted_at >= ?`, []any{since.UTC()}
	if username != "" {
		q += ` AND username = ?`
		args = append(args, username)
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}
	return n, nil
}

// DeleteFailedLoginsBefore prunes failed_logins and login_attempts older than t.
func (db *DB) DeleteFailedLoginsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM failed_logins WHERE attempted_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune failed logins: %w", err)
	}
	n, _ := res.RowsAffected()
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM login_attempts WHERE attempted_at < ?`, t.UTC()); err != nil {
		return n, fmt.Errorf("failed to prune login attempts: %w", err)
	}
	return n, nil
}

// CountBlockedIPs counts permanent or unexpired IP blocks.
func (db *DB) CountBlockedIPs(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blocked_ips WHERE permanent OR expires_at IS NULL OR expires_at > ?`, now.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count blocked ips: %w", err)
	}
	return n, nil
}

// IsIPBlocked reports whether ip has an active block.
func (db *DB) IsIPBlocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	return db.exists(ctx,
		`SELECT COUNT(*) FROM blocked_ips WHERE ip_address = ? AND (permanent OR expires_at IS NULL OR expires_at > ?)`,
		ip, now.UTC())
}

// BlockIP adds or refreshes a manual block. A zero until makes it
// permanent.
func (db *DB) BlockIP(ctx context.Context, ip, reason string, until time.Time) error {
	return db.SaveIPBlock(ctx, IPBlock{IPAddress: ip, Reason: reason, BlockedBy: "manual", ExpiresAt: until})
}

// RecordSession inserts or refreshes a session index row.
func (db *DB) RecordSession(ctx context.Context, s SessionRecord) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, ip_address, user_agent, created_at, last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET last_activity = excluded.last_activity, expires_at = excluded.expires_at`,
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.CreatedAt.UTC(), s.LastActivity.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

// DeleteSessionRecord removes a session index row.
func (db *DB) DeleteSessionRecord(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

// UserSessions lists unexpired sessions of a user, newest activity first.
func (db *DB) UserSessions(ctx context.Context, userID int64, now time.Time) ([]SessionRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at, last_activity, expires_at
		FROM sessions WHERE user_id = ? AND expires_at > ?
		ORDER BY last_activity DESC`, userID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer CloseRows(rows)
	var out []SessionRecord
	for rows.Next() {
		var s SessionRecord
		if err := rows.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountActiveSessions counts unexpired sessions.
func (db *DB) CountActiveSessions(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, now.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// DeleteExpiredSessions removes session rows that expired before now.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
