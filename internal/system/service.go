// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package system

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
)

// Paths are the directories the system screens inspect.
type Paths struct {
	Uploads string
	Cache   string
	Themes  string
	Plugins string
	Backups string
	Public  string
	LogFile string
}

// dirs returns the named writable directories in display order.
func (p Paths) dirs() []namedPath {
	out := []namedPath{
		{"uploads", p.Uploads}, {"cache", p.Cache}, {"themes", p.Themes},
		{"plugins", p.Plugins}, {"backups", p.Backups}, {"public", p.Public},
	}
	if p.LogFile != "" {
		out = append(out, namedPath{"logs", filepath.Dir(p.LogFile)})
	}
	return out
}

type namedPath struct {
	name string
	path string
}

// Options describe the installation.
type Options struct {
	Paths        Paths
	Version      string
	SiteURL      string
	Debug        bool
	CookieSecure bool
	SessionTTL   time.Duration
	// FailedLoginRetention is how long failed logins are kept by
	// ClearOldFailedLogins. Zero means 24 hours.
	FailedLoginRetention time.Duration
}

// Clearer is an in-process cache ClearCache empties.
type Clearer interface {
	Clear()
}

// Service is the system service.
type Service struct {
	db   *database.DB
	opts Options
	now  func() time.Time

	mu     sync.Mutex
	caches map[string]Clearer
}

// New creates the service.
func New(db *database.DB, opts Options) *Service {
	if opts.FailedLoginRetention <= 0 {
		opts.FailedLoginRetention = 24 * time.Hour
	}
	return &Service{db: db, opts: opts, now: time.Now, caches: map[string]Clearer{}}
}

// RegisterCache adds an in-process cache to ClearCache.
func (s *Service) RegisterCache(name string, c Clearer) {
	s.mu.Lock()
	s.caches[name] = c
	s.mu.Unlock()
}

// Info describes the running process and host.
type Info struct {
	CMSVersion    string `json:"cms_version"`
	GoVersion     string `json:"go_version"`
	DuckDBVersion string `json:"duckdb_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform"`
	Kernel        string `json:"kernel"`
	CPUCount      int    `json:"cpu_count"`
	Goroutines    int    `json:"goroutines"`
	MemoryAlloc   string `json:"memory_alloc"`
	MemorySys     string `json:"memory_sys"`
	Uptime        string `json:"uptime"`
	ServerTime    string `json:"server_time"`
	Timezone      string `json:"timezone"`
	MaxUpload     string `json:"max_upload"`
}

// SystemInfo reports versions and runtime figures.
func (s *Service) SystemInfo(ctx context.Context) Info {
	h := CollectHost(ctx, s.opts.Paths.Uploads, 0)
	alloc, sys := GoMemory()
	now := s.now()
	info := Info{
		CMSVersion:  s.opts.Version,
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		Hostname:    h.Hostname,
		Platform:    strings.TrimSpace(h.Platform + " " + h.PlatformVersion),
		Kernel:      h.KernelVersion,
		CPUCount:    h.CPUCount,
		Goroutines:  runtime.NumGoroutine(),
		MemoryAlloc: FormatBytes(int64(alloc)),
		MemorySys:   FormatBytes(int64(sys)),
		Uptime:      h.Uptime,
		ServerTime:  now.Format("2006-01-02 15:04:05"),
		Timezone:    now.Location().String(),
	}
	if v, ok, err := s.db.Option(ctx, "media_settings"); err == nil && ok {
		var st struct {
			MaxUploadSize string `json:"max_upload_size"`
		}
		if json.Unmarshal([]byte(v), &st) == nil {
			info.MaxUpload = st.MaxUploadSize
		}
	}
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT version()`).Scan(&info.DuckDBVersion); err != nil {
		info.DuckDBVersion = "unknown"
	}
	return info
}

// DatabaseStatus is the DuckDB storage summary.
type DatabaseStatus struct {
	Connected    bool   `json:"connected"`
	Error        string `json:"error,omitempty"`
	Path         string `json:"path"`
	Version      string `json:"version"`
	FileSize     string `json:"file_size"`
	DatabaseSize string `json:"database_size"`
	WALSize      string `json:"wal_size"`
	MemoryUsage  string `json:"memory_usage"`
	MemoryLimit  string `json:"memory_limit"`
	FreeBytes    int64  `json:"free_bytes"`
	Tables       int    `json:"tables"`
	TotalRows    int64  `json:"total_rows"`
}

// DatabaseStatus reads pragma_database_size and the table counts.
func (s *Service) DatabaseStatus(ctx context.Context) DatabaseStatus {
	st := DatabaseStatus{Path: s.db.Path(), FileSize: FormatBytes(s.db.SizeBytes())}
	if err := s.db.Ping(ctx); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Connected = true
	_ = s.db.Conn().QueryRowContext(ctx, `SELECT version()`).Scan(&st.Version)
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT database_size, wal_size, memory_usage, memory_limit,
		       CAST(COALESCE(block_size * free_blocks, 0) AS BIGINT)
		FROM pragma_database_size() LIMIT 1`).
		Scan(&st.DatabaseSize, &st.WALSize, &st.MemoryUsage, &st.MemoryLimit, &st.FreeBytes)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("pragma_database_size unavailable")
	}
	for _, t := range database.Tables {
		n, err := s.db.TableRowCount(ctx, t)
		if err != nil {
			continue
		}
		st.Tables++
		st.TotalRows += n
	}
	return st
}

// TableStatus is one row of CheckDatabaseTables.
type TableStatus struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Exists bool   `json:"exists"`
	Rows   int64  `json:"rows"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

var tableLabels = map[string]string{
	"users": "Users", "user_meta": "User metadata", "roles": "Roles", "settings": "Settings",
	"sessions": "Sessions", "login_attempts": "Login attempts", "failed_logins": "Failed logins",
	"blocked_ips": "Blocked IPs", "activity_log": "Activity log", "pages": "Pages",
	"page_revisions": "Page revisions", "post_categories": "Post categories", "posts": "Posts",
	"landing_sections": "Landing sections", "media": "Media library", "page_views": "Page views",
	"cache": "Cache", "plugins": "Plugins", "plugin_meta": "Plugin metadata",
	"theme_customizations": "Theme customizations", "subscription_plans": "Subscription plans",
	"user_subscriptions": "User subscriptions", "user_groups": "User groups",
	"user_group_members": "Group members", "subscription_usage": "Subscription usage",
	"orders": "Orders", "backup_history": "Backup history", "update_history": "Update history",
}

// CheckDatabaseTables verifies every expected table and counts its rows.
func (s *Service) CheckDatabaseTables(ctx context.Context) []TableStatus {
	out := make([]TableStatus, 0, len(database.Tables))
	for _, t := range database.Tables {
		ts := TableStatus{Name: t, Label: tableLabels[t], Status: "OK"}
		if ts.Label == "" {
			ts.Label = t
		}
		exists, err := s.db.TableExists(ctx, t)
		switch {
		case err != nil:
			ts.Status, ts.Error = "Error", err.Error()
		case !exists:
			ts.Status, ts.Error = "Missing", "table does not exist"
		default:
			ts.Exists = true
			if ts.Rows, err = s.db.TableRowCount(ctx, t); err != nil {
				ts.Status, ts.Error = "Error", err.Error()
			}
		}
		out = append(out, ts)
	}
	return out
}

// PathStatus is one row of CheckFilePermissions.
type PathStatus struct {
	Path        string `json:"path"`
	FullPath    string `json:"full_path"`
	Exists      bool   `json:"exists"`
	Readable    bool   `json:"readable"`
	Writable    bool   `json:"writable"`
	Permissions string `json:"permissions,omitempty"`
	Status      string `json:"status"`
}

// CheckFilePermissions probes every configured directory.
func (s *Service) CheckFilePermissions() []PathStatus {
	var out []PathStatus
	for _, d := range s.opts.Paths.dirs() {
		if d.path == "" {
			continue
		}
		out = append(out, probePath(d.name, d.path))
	}
	return out
}

func probePath(name, p string) PathStatus {
	ps := PathStatus{Path: name, FullPath: p, Status: "Missing"}
	fi, err := os.Stat(p)
	if err != nil {
		return ps
	}
	ps.Exists = true
	ps.Permissions = fmt.Sprintf("%04o", fi.Mode().Perm())
	if f, err := os.Open(p); err == nil {
		ps.Readable = true
		_ = f.Close()
	}
	ps.Writable = writable(p, fi)
	switch {
	case ps.Readable && ps.Writable:
		ps.Status = "OK"
	case ps.Readable:
		ps.Status = "Read-Only"
	default:
		ps.Status = "No Access"
	}
	return ps
}

// CheckWritable reports whether p exists and can be written to.
func CheckWritable(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && writable(p, fi)
}

// writable tries to create a file in dir (or open a file for writing).
func writable(p string, fi fs.FileInfo) bool {
	if !fi.IsDir() {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			return false
		}
		_ = f.Close()
		return true
	}
	f, err := os.CreateTemp(p, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

// DirSize is one row of DirectorySizes.
type DirSize struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Formatted string `json:"formatted"`
}

// DirectorySizes sums each configured directory. Unreadable entries are
// skipped.
func (s *Service) DirectorySizes() map[string]DirSize {
	out := make(map[string]DirSize)
	for _, d := range s.opts.Paths.dirs() {
		if d.path == "" {
			continue
		}
		n := DirectorySize(d.path)
		out[d.name] = DirSize{Path: d.name, Size: n, Formatted: FormatBytes(n)}
	}
	return out
}

// DirectorySize returns the total size of regular files below root.
func DirectorySize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// CMSStatistics are the headline counts.
type CMSStatistics struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsers       int64 `json:"active_users"`
	TotalPages        int64 `json:"total_pages"`
	TotalPosts        int64 `json:"total_posts"`
	ActiveSessions    int64 `json:"active_sessions"`
	CacheEntries      int64 `json:"cache_entries"`
	FailedLoginsToday int64 `json:"failed_logins_today"`
	ActivePlugins     int64 `json:"active_plugins"`
}

// CMSStatistics counts users, content, sessions, cache rows and failed
// logins since midnight UTC.
func (s *Service) CMSStatistics(ctx context.Context) (CMSStatistics, error) {
	var st CMSStatistics
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM users WHERE status = 'active'),
		       (SELECT COUNT(*) FROM pages),
		       (SELECT COUNT(*) FROM posts),
		       (SELECT COUNT(*) FROM sessions WHERE expires_at > ?),
		       (SELECT COUNT(*) FROM cache WHERE expires_at IS NULL OR expires_at > ?),
		       (SELECT COUNT(*) FROM failed_logins WHERE attempted_at >= ?)`,
		now, now, midnight).Scan(&st.TotalUsers, &st.ActiveUsers, &st.TotalPages, &st.TotalPosts,
		&st.ActiveSessions, &st.CacheEntries, &st.FailedLoginsToday)
	if err != nil {
		return st, fmt.Errorf("failed to collect statistics: %w", err)
	}
	var active []string
	if _, err := s.db.GetOptionJSON(ctx, "active_plugins", &active); err == nil {
		st.ActivePlugins = int64(len(active))
	}
	return st, nil
}

// ClearCache empties the cache table, the cache directory and every
// registered in-process cache. It returns the number of removed rows and
// files.
func (s *Service) ClearCache(ctx context.Context) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache table: %w", err)
	}
	n, _ := res.RowsAffected()
	if dir := s.opts.Paths.Cache; dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("failed to read cache dir: %w", err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && os.Remove(filepath.Join(dir, e.Name())) == nil {
				n++
			}
		}
	}
	s.mu.Lock()
	for _, c := range s.caches {
		c.Clear()
	}
	s.mu.Unlock()
	s.db.InvalidateOptions()
	return n, nil
}

// ClearOldSessions deletes expired session rows.
func (s *Service) ClearOldSessions(ctx context.Context) (int64, error) {
	return s.db.DeleteExpiredSessions(ctx, s.now())
}

// ClearOldFailedLogins deletes failed logins older than the retention.
func (s *Service) ClearOldFailedLogins(ctx context.Context) (int64, error) {
	return s.db.DeleteFailedLoginsBefore(ctx, s.now().Add(-s.opts.FailedLoginRetention))
}

// TableResult reports the outcome of a per-table maintenance statement.
type TableResult struct {
	Table  string `json:"table"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RepairTables verifies each table is readable and then checkpoints the
// database so the WAL is folded into the main file.
func (s *Service) RepairTables(ctx context.Context) ([]TableResult, error) {
	out := make([]TableResult, 0, len(database.Tables))
	for _, t := range database.Tables {
		r := TableResult{Table: t, Status: "OK"}
		if _, err := s.db.TableRowCount(ctx, t); err != nil {
			r.Status, r.Error = "Error", err.Error()
		}
		out = append(out, r)
	}
	if err := s.db.Checkpoint(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// OptimizeTables recomputes statistics for each table and checkpoints.
func (s *Service) OptimizeTables(ctx context.Context) ([]TableResult, error) {
	out := make([]TableResult, 0, len(database.Tables))
	for _, t := range database.Tables {
		r := TableResult{Table: t, Status: "OK"}
		if _, err := s.db.Conn().ExecContext(ctx, "ANALYZE "+t); err != nil {
			r.Status, r.Error = "Error", err.Error()
		}
		out = append(out, r)
	}
	if err := s.db.Checkpoint(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// SecurityStatus lists security-relevant settings as display strings.
type SecurityStatus struct {
	DebugMode      string `json:"debug_mode"`
	HTTPS          string `json:"https_enabled"`
	CookieSecure   string `json:"session_secure"`
	CookieHTTPOnly string `json:"session_httponly"`
	SameSite       string `json:"session_samesite"`
	SessionTTL     string `json:"session_ttl"`
	BlockedIPs     int64  `json:"blocked_ips"`
}

func onOff(v bool, good bool) string {
	switch {
	case v && good:
		return "enabled"
	case v:
		return "enabled (not recommended)"
	case good:
		return "disabled (not recommended)"
	default:
		return "disabled"
	}
}

// SecurityStatus summarizes the security configuration.
func (s *Service) SecurityStatus(ctx context.Context) SecurityStatus {
	st := SecurityStatus{
		DebugMode:      onOff(s.opts.Debug, false),
		HTTPS:          onOff(strings.HasPrefix(s.opts.SiteURL, "https://"), true),
		CookieSecure:   onOff(s.opts.CookieSecure, true),
		CookieHTTPOnly: onOff(true, true),
		SameSite:       "Lax",
		SessionTTL:     s.opts.SessionTTL.String(),
	}
	st.BlockedIPs, _ = s.db.CountBlockedIPs(ctx, s.now())
	return st
}

// Report is the result of RunSystemCheck.
type Report struct {
	SystemInfo      Info               `json:"system_info"`
	DatabaseStatus  DatabaseStatus     `json:"database_status"`
	TableStatus     []TableStatus      `json:"table_status"`
	FilePermissions []PathStatus       `json:"file_permissions"`
	DirectorySizes  map[string]DirSize `json:"directory_sizes"`
	CMSStatistics   CMSStatistics      `json:"cms_statistics"`
	SecurityStatus  SecurityStatus     `json:"security_status"`
}

// RunSystemCheck runs every system report.
func (s *Service) RunSystemCheck(ctx context.Context) Report {
	stats, err := s.CMSStatistics(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("System check statistics failed")
	}
	return Report{
		SystemInfo:      s.SystemInfo(ctx),
		DatabaseStatus:  s.DatabaseStatus(ctx),
		TableStatus:     s.CheckDatabaseTables(ctx),
		FilePermissions: s.CheckFilePermissions(),
		DirectorySizes:  s.DirectorySizes(),
		CMSStatistics:   stats,
		SecurityStatus:  s.SecurityStatus(ctx),
	}
}
