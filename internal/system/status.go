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
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
)

// Check levels.
const (
	LevelOK       = "ok"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Repair actions named by checks.
const (
	ActionCleanupOverhead = "cleanup_overhead"
	ActionCreateDirectory = "create_directory"
	ActionFixPermissions  = "fix_permissions"
	ActionRenameAdmin     = "rename_admin"
	ActionCleanupTemp     = "cleanup_temp_files"
)

// Check is one status line.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// Section is a named group of checks.
type Section map[string]Check

// Worst returns the most severe level in the section.
func (sec Section) Worst() string {
	order := []string{LevelOK, LevelInfo, LevelWarning, LevelError, LevelCritical}
	worst := 0
	for _, c := range sec {
		if i := slices.Index(order, c.Status); i > worst {
			worst = i
		}
	}
	return order[worst]
}

// requiredTables must exist for the site to work at all.
var requiredTables = []string{"users", "user_meta", "sessions", "login_attempts", "settings", "pages", "activity_log"}

// overheadWarning is the reclaimable space that triggers a cleanup hint.
const overheadWarning = 10 << 20

// StatusService runs the status checks and their repairs.
type StatusService struct {
	db   *database.DB
	opts Options
	now  func() time.Time
}

// NewStatus creates the status service.
func NewStatus(db *database.DB, opts Options) *StatusService {
	return &StatusService{db: db, opts: opts, now: time.Now}
}

// FullStatus runs every section.
func (s *StatusService) FullStatus(ctx context.Context) map[string]Section {
	return map[string]Section{
		"database":    s.CheckDatabase(ctx),
		"filesystem":  s.CheckFilesystem(ctx),
		"runtime":     s.CheckRuntime(),
		"security":    s.CheckSecurity(ctx),
		"performance": s.CheckPerformance(ctx),
	}
}

// CheckDatabase covers connectivity, required tables, reclaimable space
// and size.
func (s *StatusService) CheckDatabase(ctx context.Context) Section {
	sec := Section{}
	if err := s.db.Ping(ctx); err != nil {
		sec["connection"] = Check{Status: LevelError, Message: err.Error()}
		return sec
	}
	sec["connection"] = Check{Status: LevelOK, Message: "Database connection active"}

	var missing []string
	for _, t := range requiredTables {
		if ok, err := s.db.TableExists(ctx, t); err != nil || !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		sec["tables"] = Check{Status: LevelOK, Message: fmt.Sprintf("All tables present (%d)", len(requiredTables))}
	} else {
		sec["tables"] = Check{Status: LevelError, Message: "Missing tables: " + strings.Join(missing, ", ")}
	}

	var free int64
	_ = s.db.Conn().QueryRowContext(ctx,
		`SELECT CAST(COALESCE(block_size * free_blocks, 0) AS BIGINT) FROM pragma_database_size() LIMIT 1`).Scan(&free)
	if free > overheadWarning {
		sec["overhead"] = Check{Status: LevelWarning, Message: FormatBytes(free) + " reclaimable", Action: ActionCleanupOverhead}
	} else {
		sec["overhead"] = Check{Status: LevelOK, Message: FormatBytes(free) + " reclaimable"}
	}
	sec["size"] = Check{Status: LevelInfo, Message: FormatBytes(s.db.SizeBytes())}
	return sec
}

// CheckFilesystem verifies the writable directories and free disk space.
func (s *StatusService) CheckFilesystem(ctx context.Context) Section {
	sec := Section{}
	for _, d := range s.opts.Paths.dirs() {
		if d.path == "" {
			continue
		}
		ps := probePath(d.name, d.path)
		switch {
		case !ps.Exists:
			sec[d.name] = Check{Status: LevelError, Message: "Directory does not exist: " + d.path, Action: ActionCreateDirectory}
		case !ps.Writable:
			sec[d.name] = Check{Status: LevelError, Message: "Not writable (" + ps.Permissions + ")", Action: ActionFixPermissions}
		default:
			sec[d.name] = Check{Status: LevelOK, Message: "Writable (" + ps.Permissions + ")"}
		}
	}
	h := CollectHost(ctx, s.opts.Paths.Uploads, 0)
	switch {
	case h.DiskTotal == 0:
		sec["disk_space"] = Check{Status: LevelInfo, Message: "Disk usage unavailable"}
	case h.DiskPercent > 90:
		sec["disk_space"] = Check{Status: LevelCritical, Message: fmt.Sprintf("%.2f%% used, critically low space", h.DiskPercent)}
	case h.DiskPercent > 80:
		sec["disk_space"] = Check{Status: LevelWarning, Message: fmt.Sprintf("%.2f%% used", h.DiskPercent)}
	default:
		sec["disk_space"] = Check{Status: LevelOK,
			Message: FormatBytes(int64(h.DiskFree)) + " free of " + FormatBytes(int64(h.DiskTotal))}
	}
	return sec
}

// CheckRuntime reports the Go runtime.
func (s *StatusService) CheckRuntime() Section {
	alloc, sys := GoMemory()
	sec := Section{
		"version":    Check{Status: LevelOK, Message: runtime.Version()},
		"goroutines": Check{Status: LevelInfo, Message: fmt.Sprintf("%d", runtime.NumGoroutine())},
		"memory":     Check{Status: LevelInfo, Message: FormatBytes(int64(alloc)) + " in use of " + FormatBytes(int64(sys))},
		"cpus":       Check{Status: LevelInfo, Message: fmt.Sprintf("%d", runtime.NumCPU())},
	}
	if runtime.NumGoroutine() > 10000 {
		sec["goroutines"] = Check{Status: LevelWarning, Message: fmt.Sprintf("%d goroutines running", runtime.NumGoroutine())}
	}
	return sec
}

// CheckSecurity covers HTTPS, debug mode, secure cookies and the default
// "admin" account.
func (s *StatusService) CheckSecurity(ctx context.Context) Section {
	sec := Section{}
	if strings.HasPrefix(s.opts.SiteURL, "https://") {
		sec["https"] = Check{Status: LevelOK, Message: "HTTPS active"}
	} else {
		sec["https"] = Check{Status: LevelCritical, Message: "HTTPS is not active"}
	}
	if s.opts.Debug {
		sec["debug_mode"] = Check{Status: LevelWarning, Message: "Debug mode is on (not for production)"}
	} else {
		sec["debug_mode"] = Check{Status: LevelOK, Message: "Debug mode is off"}
	}
	if s.opts.CookieSecure {
		sec["secure_cookies"] = Check{Status: LevelOK, Message: "Session cookies are Secure"}
	} else {
		sec["secure_cookies"] = Check{Status: LevelWarning, Message: "Session cookies are sent over plain HTTP"}
	}
	u, err := s.db.UserByUsername(ctx, "admin")
	if err == nil && u.Role == models.RoleAdmin {
		sec["default_admin"] = Check{Status: LevelWarning, Message: "The default admin account exists", Action: ActionRenameAdmin}
	} else {
		sec["default_admin"] = Check{Status: LevelOK, Message: "No default admin account"}
	}
	return sec
}

// CheckPerformance covers the cache table and the number of stale rows.
func (s *StatusService) CheckPerformance(ctx context.Context) Section {
	sec := Section{}
	var expired, sessions int64
	_ = s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM cache WHERE expires_at <= ?`, s.now().UTC()).Scan(&expired)
	_ = s.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at <= ?`, s.now().UTC()).Scan(&sessions)
	if expired > 1000 {
		sec["cache"] = Check{Status: LevelWarning, Message: fmt.Sprintf("%d expired cache rows", expired), Action: ActionCleanupTemp}
	} else {
		sec["cache"] = Check{Status: LevelOK, Message: fmt.Sprintf("%d expired cache rows", expired)}
	}
	if sessions > 1000 {
		sec["sessions"] = Check{Status: LevelWarning, Message: fmt.Sprintf("%d expired sessions", sessions)}
	} else {
		sec["sessions"] = Check{Status: LevelOK, Message: fmt.Sprintf("%d expired sessions", sessions)}
	}
	sec["object_cache"] = Check{Status: LevelInfo, Message: "In-process TTL cache"}
	return sec
}

// RepairResult reports what a repair did.
type RepairResult struct {
	Message string   `json:"message"`
	Items   []string `json:"items,omitempty"`
	Count   int64    `json:"count"`
	Freed   string   `json:"freed,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// RepairDatabase checkpoints the WAL into the database file.
func (s *StatusService) RepairDatabase(ctx context.Context) (*RepairResult, error) {
	if err := s.db.Checkpoint(ctx); err != nil {
		return nil, err
	}
	return &RepairResult{Message: "Database checkpointed"}, nil
}

// CleanupOverhead reclaims free blocks and refreshes statistics.
func (s *StatusService) CleanupOverhead(ctx context.Context) (*RepairResult, error) {
	before := s.db.SizeBytes()
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := s.db.Conn().ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s failed: %w", stmt, err)
		}
	}
	if err := s.db.Checkpoint(ctx); err != nil {
		return nil, err
	}
	freed := max(before-s.db.SizeBytes(), 0)
	return &RepairResult{
		Message: FormatBytes(freed) + " reclaimed",
		Count:   int64(len(database.Tables)),
		Freed:   FormatBytes(freed),
	}, nil
}

// CleanupOrphans deletes rows that point at users or pages that no longer
// exist, and login attempts older than 90 days.
func (s *StatusService) CleanupOrphans(ctx context.Context) (*RepairResult, error) {
	stmts := []struct {
		name  string
		query string
		args  []any
	}{
		{"user_meta", `DELETE FROM user_meta WHERE user_id NOT IN (SELECT id FROM users)`, nil},
		{"sessions", `DELETE FROM sessions WHERE user_id IS NOT NULL AND user_id NOT IN (SELECT id FROM users)`, nil},
		{"user_subscriptions", `DELETE FROM user_subscriptions WHERE user_id NOT IN (SELECT id FROM users)`, nil},
		{"user_group_members", `DELETE FROM user_group_members WHERE user_id NOT IN (SELECT id FROM users)`, nil},
		{"page_revisions", `DELETE FROM page_revisions WHERE page_id NOT IN (SELECT id FROM pages)`, nil},
		{"login_attempts", `DELETE FROM login_attempts WHERE attempted_at < ?`, []any{s.now().UTC().AddDate(0, 0, -90)}},
	}
	res := &RepairResult{}
	for _, st := range stmts {
		r, err := s.db.Conn().ExecContext(ctx, st.query, st.args...)
		if err != nil {
			res.Errors = append(res.Errors, st.name+": "+err.Error())
			continue
		}
		if n, _ := r.RowsAffected(); n > 0 {
			res.Count += n
			res.Items = append(res.Items, fmt.Sprintf("%s: %d", st.name, n))
		}
	}
	res.Message = fmt.Sprintf("%d orphaned rows deleted", res.Count)
	return res, nil
}

// CleanupTempFiles deletes files in the cache directory older than maxAge
// (24h when zero) and expired cache rows.
func (s *StatusService) CleanupTempFiles(ctx context.Context, maxAge time.Duration) (*RepairResult, error) {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	res := &RepairResult{}
	cutoff := s.now().Add(-maxAge)
	var freed int64
	if dir := s.opts.Paths.Cache; dir != "" {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if p == dir && errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil || info.ModTime().After(cutoff) {
				return nil
			}
			if os.Remove(p) == nil {
				res.Count++
				freed += info.Size()
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to clean cache dir: %w", err)
		}
	}
	r, err := s.db.Conn().ExecContext(ctx, `DELETE FROM cache WHERE expires_at <= ?`, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired cache rows: %w", err)
	}
	rows, _ := r.RowsAffected()
	res.Freed = FormatBytes(freed)
	res.Message = fmt.Sprintf("%d files deleted, %s freed, %d expired cache rows removed", res.Count, res.Freed, rows)
	return res, nil
}

// FixPermissions sets 0755 on directories and 0644 on files below every
// writable directory.
func (s *StatusService) FixPermissions() (*RepairResult, error) {
	res := &RepairResult{}
	for _, d := range s.opts.Paths.dirs() {
		if d.path == "" {
			continue
		}
		if _, err := os.Stat(d.path); errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(d.path, 0o755); err != nil {
				res.Errors = append(res.Errors, d.name+": "+err.Error())
				continue
			}
		}
		err := filepath.WalkDir(d.path, func(p string, e fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			mode := os.FileMode(0o644)
			if e.IsDir() {
				mode = 0o755
			} else if !e.Type().IsRegular() {
				return nil
			}
			info, err := e.Info()
			if err != nil || info.Mode().Perm() == mode {
				return nil
			}
			if err := os.Chmod(p, mode); err != nil {
				res.Errors = append(res.Errors, p+": "+err.Error())
				return nil
			}
			res.Count++
			return nil
		})
		if err != nil {
			res.Errors = append(res.Errors, d.name+": "+err.Error())
			continue
		}
		res.Items = append(res.Items, d.name)
	}
	res.Message = fmt.Sprintf("%d permissions corrected", res.Count)
	return res, nil
}
