// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// IPBlock is a row of blocked_ips. A zero ExpiresAt means the block is
// permanent.
type IPBlock struct {
	ID        int64     `json:"id"`
	IPAddress string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	BlockedBy string    `json:"blocked_by"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Permanent bool      `json:"permanent"`
	CreatedAt time.Time `json:"created_at"`
}

// FailedLogin is a row of failed_logins.
type FailedLogin struct {
	Username    string    `json:"username"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// FailureCount groups failed logins by IP address or username.
type FailureCount struct {
	Key         string    `json:"key"`
	Attempts    int64     `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

// SaveIPBlock adds or refreshes the block of b.IPAddress.
func (db *DB) SaveIPBlock(ctx context.Context, b IPBlock) error {
	var expires any
	permanent := b.ExpiresAt.IsZero()
	if !permanent {
		expires = b.ExpiresAt.UTC()
	}
	if b.BlockedBy == "" {
		b.BlockedBy = "manual"
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO blocked_ips (ip_address, reason, expires_at, permanent, blocked_by, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (ip_address) DO UPDATE SET reason = excluded.reason, expires_at = excluded.expires_at,
			permanent = excluded.permanent, blocked_by = excluded.blocked_by`,
		b.IPAddress, b.Reason, expires, permanent, b.BlockedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to block ip: %w", err)
	}
	return nil
}

// UnblockIP removes the block of ip and reports whether one existed.
func (db *DB) UnblockIP(ctx context.Context, ip string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM blocked_ips WHERE ip_address = ?`, ip)
	if err != nil {
		return false, fmt.Errorf("failed to unblock ip: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteExpiredBlocks removes temporary blocks that ended before now.
func (db *DB) DeleteExpiredBlocks(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM blocked_ips WHERE NOT permanent AND expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired blocks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// BlockedIPs returns one page of blocks, newest first, with the total.
func (db *DB) BlockedIPs(ctx context.Context, limit, offset int) ([]IPBlock, int64, error) {
	var total int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_ips`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, ip_address, COALESCE(reason, ''), COALESCE(blocked_by, 'manual'), expires_at, COALESCE(permanent, false), created_at
		FROM blocked_ips ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer CloseRows(rows)
	var out []IPBlock
	for rows.Next() {
		var (
			b       IPBlock
			expires sql.NullTime
			created sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.IPAddress, &b.Reason, &b.BlockedBy, &expires, &b.Permanent, &created); err != nil {
			return nil, 0, fmt.Errorf("failed to scan block: %w", err)
		}
		b.ExpiresAt, b.CreatedAt = expires.Time, created.Time
		out = append(out, b)
	}
	return out, total, rows.Err()
}

// FailuresByIP groups failed logins since t by IP address and keeps groups
// with at least minAttempts attempts, most attempts first.
func (db *DB) FailuresByIP(ctx context.Context, since time.Time, minAttempts int64, limit int) ([]FailureCount, error) {
	return db.failureCounts(ctx, "ip_address", since, minAttempts, limit)
}

// FailuresByUsername groups failed logins since t by username.
func (db *DB) FailuresByUsername(ctx context.Context, since time.Time, limit int) ([]FailureCount, error) {
	return db.failureCounts(ctx, "username", since, 1, limit)
}

func (db *DB) failureCounts(ctx context.Context, column string, since time.Time, minAttempts int64, limit int) ([]FailureCount, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+column+`, COUNT(*) AS attempts, MAX(attempted_at)
		FROM failed_logins WHERE attempted_at >= ? AND `+column+` IS NOT NULL
		GROUP BY `+column+` HAVING COUNT(*) >= ?
		ORDER BY attempts DESC, `+column+` LIMIT ?`, since.UTC(), minAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to group failed logins: %w", err)
	}
	defer CloseRows(rows)
	var out []FailureCount
	for rows.Next() {
		var c FailureCount
		if err := rows.Scan(&c.Key, &c.Attempts, &c.LastAttempt); err != nil {
			return nil, fmt.Errorf("failed to scan failed login group: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentFailedLogins lists the newest failed logins.
func (db *DB) RecentFailedLogins(ctx context.Context, limit int) ([]FailedLogin, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT COALESCE(username, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''), attempted_at
		FROM failed_logins ORDER BY attempted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed logins: %w", err)
	}
	defer CloseRows(rows)
	var out []FailedLogin
	for rows.Next() {
		var f FailedLogin
		if err := rows.Scan(&f.Username, &f.IPAddress, &f.UserAgent, &f.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan failed login: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
