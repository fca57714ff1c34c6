// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package firewall

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/validation"
)

const settingsOption = "firewall_settings"

// Blockers recorded in blocked_ips.blocked_by.
const (
	BlockedByManual = "manual"
	BlockedByAuto   = "auto"
)

// autoBlockWindow is how far back RunAutoBlock counts failed logins.
const autoBlockWindow = time.Hour

var (
	ErrInvalidIP   = errors.New("invalid IP address")
	ErrWhitelisted = errors.New("IP address is whitelisted")
	ErrNotBlocked  = errors.New("IP address is not blocked")
)

// Settings control the firewall.
type Settings struct {
	Enabled          bool     `json:"enabled"`
	MaxAttempts      int      `json:"max_attempts" validate:"min=1,max=100"`
	LockoutMinutes   int      `json:"lockout_minutes" validate:"min=1,max=10080"`
	AutoBlock        bool     `json:"auto_block"`
	Whitelist        []string `json:"whitelist"`
	BlockEmptyUA     bool     `json:"block_empty_ua"`
	LogRetentionDays int      `json:"log_retention_days" validate:"min=1,max=365"`
}

// DefaultSettings apply until settings are saved.
func DefaultSettings() Settings {
	return Settings{
		Enabled:          true,
		MaxAttempts:      5,
		LockoutMinutes:   30,
		AutoBlock:        true,
		LogRetentionDays: 30,
	}
}

// Stats summarize blocks and failed logins.
type Stats struct {
	BlockedTotal  int64                   `json:"blocked_total"`
	BlockedActive int64                   `json:"blocked_active"`
	Failed24h     int64                   `json:"failed_24h"`
	Failed7d      int64                   `json:"failed_7d"`
	TopIPs        []database.FailureCount `json:"top_ips"`
	TopUsernames  []database.FailureCount `json:"top_usernames"`
}

// Service manages IP blocks and the firewall settings.
type Service struct {
	db      *database.DB
	blocked *cache.LRU[bool]
	now     func() time.Time
}

// New creates the service.
func New(db *database.DB) *Service {
	return &Service{db: db, blocked: cache.NewLRU[bool](4096, 30*time.Second), now: time.Now}
}

// Settings loads the saved settings over the defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	st := DefaultSettings()
	if _, err := s.db.GetOptionJSON(ctx, settingsOption, &st); err != nil {
		return DefaultSettings(), err
	}
	return st, nil
}

// SaveSettings validates and stores st. Whitelist entries must be IP
// addresses or CIDR prefixes.
func (s *Service) SaveSettings(ctx context.Context, st Settings) error {
	if verr := validation.ValidateStruct(st); verr != nil {
		return verr
	}
	clean := st.Whitelist[:0]
	for _, entry := range st.Whitelist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, err := parseEntry(entry); err != nil {
			return fmt.Errorf("whitelist entry %q: %w", entry, ErrInvalidIP)
		}
		clean = append(clean, entry)
	}
	st.Whitelist = clean
	if err := s.db.UpdateOptionJSON(ctx, settingsOption, st); err != nil {
		return err
	}
	s.blocked.Purge()
	return nil
}

// Whitelisted reports whether ip matches a whitelist entry of st.
func (st Settings) Whitelisted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, entry := range st.Whitelist {
		p, err := parseEntry(strings.TrimSpace(entry))
		if err == nil && p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func normalizeIP(ip string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", ErrInvalidIP
	}
	return addr.Unmap().String(), nil
}

// Block blocks ip for the given duration, or permanently when d is zero.
// Whitelisted addresses cannot be blocked.
func (s *Service) Block(ctx context.Context, actorID int64, ip, reason string, d time.Duration) error {
	ip, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	st, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if st.Whitelisted(ip) {
		return ErrWhitelisted
	}
	if reason == "" {
		reason = "Blocked by administrator"
	}
	b := database.IPBlock{IPAddress: ip, Reason: reason, BlockedBy: BlockedByManual}
	if d > 0 {
		b.ExpiresAt = s.now().Add(d)
	}
	if err := s.db.SaveIPBlock(ctx, b); err != nil {
		return err
	}
	s.blocked.Remove(ip)
	actor := actorID
	return s.db.LogActivity(ctx, models.Activity{
		UserID: &actor, Action: "ip_blocked", EntityType: "firewall", Description: "Blocked " + ip + ": " + reason,
	})
}

// Unblock removes the block of ip.
func (s *Service) Unblock(ctx context.Context, actorID int64, ip string) error {
	ip, err := normalizeIP(ip)
	if err != nil {
		return err
	}
	ok, err := s.db.UnblockIP(ctx, ip)
	if err != nil {
		return err
	}
	s.blocked.Remove(ip)
	if !ok {
		return ErrNotBlocked
	}
	actor := actorID
	return s.db.LogActivity(ctx, models.Activity{
		UserID: &actor, Action: "ip_unblocked", EntityType: "firewall", Description: "Unblocked " + ip,
	})
}

// IsBlocked reports whether ip has an active block. Results are cached
// briefly.
func (s *Service) IsBlocked(ctx context.Context, ip string) (bool, error) {
	if v, ok := s.blocked.Get(ip); ok {
		return v, nil
	}
	blocked, err := s.db.IsIPBlocked(ctx, ip, s.now())
	if err != nil {
		return false, err
	}
	s.blocked.Add(ip, blocked)
	return blocked, nil
}

// CleanExpired deletes temporary blocks that have ended.
func (s *Service) CleanExpired(ctx context.Context) (int64, error) {
	n, err := s.db.DeleteExpiredBlocks(ctx, s.now())
	if n > 0 {
		s.blocked.Purge()
	}
	return n, err
}

// ClearLogs deletes failed logins older than the retention period.
func (s *Service) ClearLogs(ctx context.Context) (int64, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	return s.db.DeleteFailedLoginsBefore(ctx, s.now().AddDate(0, 0, -st.LogRetentionDays))
}

// RunAutoBlock blocks every non-whitelisted address with at least
// MaxAttempts failed logins in the last hour for LockoutMinutes. It does
// nothing when the firewall or auto-blocking is disabled, and returns the
// number of addresses blocked.
func (s *Service) RunAutoBlock(ctx context.Context) (int64, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return 0, err
	}
	if !st.Enabled || !st.AutoBlock {
		return 0, nil
	}
	now := s.now()
	offenders, err := s.db.FailuresByIP(ctx, now.Add(-autoBlockWindow), int64(st.MaxAttempts), 1000)
	if err != nil {
		return 0, err
	}
	var blocked int64
	for _, o := range offenders {
		if o.Key == "" || st.Whitelisted(o.Key) {
			continue
		}
		if active, err := s.db.IsIPBlocked(ctx, o.Key, now); err != nil {
			return blocked, err
		} else if active {
			continue
		}
		err := s.db.SaveIPBlock(ctx, database.IPBlock{
			IPAddress: o.Key,
			Reason:    fmt.Sprintf("Auto-Block: %d failed attempts", o.Attempts),
			BlockedBy: BlockedByAuto,
			ExpiresAt: now.Add(time.Duration(st.LockoutMinutes) * time.Minute),
		})
		if err != nil {
			return blocked, err
		}
		s.blocked.Remove(o.Key)
		logging.Ctx(ctx).Warn().Str("ip", o.Key).Int64("attempts", o.Attempts).Msg("Auto-blocked IP address")
		blocked++
	}
	return blocked, nil
}

// Stats counts blocks and failed logins and lists the top offenders.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	st := &Stats{}
	var err error
	if err = s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_ips`).Scan(&st.BlockedTotal); err != nil {
		return nil, fmt.Errorf("failed to count blocks: %w", err)
	}
	if st.BlockedActive, err = s.db.CountBlockedIPs(ctx, now); err != nil {
		return nil, err
	}
	if st.Failed24h, err = s.db.CountFailedLogins(ctx, now.Add(-24*time.Hour), ""); err != nil {
		return nil, err
	}
	if st.Failed7d, err = s.db.CountFailedLogins(ctx, now.AddDate(0, 0, -7), ""); err != nil {
		return nil, err
	}
	if st.TopIPs, err = s.db.FailuresByIP(ctx, now.AddDate(0, 0, -7), 1, 10); err != nil {
		return nil, err
	}
	if st.TopUsernames, err = s.db.FailuresByUsername(ctx, now.AddDate(0, 0, -7), 10); err != nil {
		return nil, err
	}
	return st, nil
}

// Blocked returns one page of blocks with the total.
func (s *Service) Blocked(ctx context.Context, page, perPage int) ([]database.IPBlock, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 20
	}
	return s.db.BlockedIPs(ctx, perPage, (page-1)*perPage)
}

// RecentFailedLogins lists the newest failed logins.
func (s *Service) RecentFailedLogins(ctx context.Context, limit int) ([]database.FailedLogin, error) {
	if limit < 1 {
		limit = 50
	}
	return s.db.RecentFailedLogins(ctx, limit)
}
