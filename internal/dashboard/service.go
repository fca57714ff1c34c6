// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/system"
)

// Options describe the installation the dashboard reports on.
type Options struct {
	UploadsDir string
	DiskPath   string
	Version    string
	SiteURL    string
	Debug      bool
	// CPUSample is how long the CPU percentage is sampled for.
	CPUSample time.Duration
}

// Service is the DashboardService.
type Service struct {
	db   *database.DB
	opts Options
	now  func() time.Time
}

// New creates the service.
func New(db *database.DB, opts Options) *Service {
	return &Service{db: db, opts: opts, now: time.Now}
}

// Stats is everything the dashboard shows.
type Stats struct {
	Users       UserStats        `json:"users"`
	Pages       PageStats        `json:"pages"`
	Media       MediaStats       `json:"media"`
	Sessions    SessionStats     `json:"sessions"`
	Security    SecurityStats    `json:"security"`
	Performance PerformanceStats `json:"performance"`
	System      SystemInfo       `json:"system"`
}

// AllStats gathers every section. A failing section is logged and left
// zero so one broken query does not blank the dashboard.
func (s *Service) AllStats(ctx context.Context) Stats {
	var st Stats
	log := logging.Ctx(ctx)
	var err error
	if st.Users, err = s.UserStats(ctx); err != nil {
		log.Warn().Err(err).Msg("Dashboard user stats failed")
	}
	if st.Pages, err = s.PageStats(ctx); err != nil {
		log.Warn().Err(err).Msg("Dashboard page stats failed")
	}
	if st.Media, err = s.MediaStats(); err != nil {
		log.Warn().Err(err).Msg("Dashboard media stats failed")
	}
	if st.Sessions, err = s.SessionStats(ctx); err != nil {
		log.Warn().Err(err).Msg("Dashboard session stats failed")
	}
	if st.Security, err = s.SecurityStats(ctx); err != nil {
		log.Warn().Err(err).Msg("Dashboard security stats failed")
	}
	st.Performance = s.PerformanceStats(ctx)
	st.System = s.SystemInfo(ctx)
	return st
}

// UserStats counts accounts.
type UserStats struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	Inactive     int64            `json:"inactive"`
	ActiveToday  int64            `json:"active_today"`
	NewToday     int64            `json:"new_today"`
	NewThisWeek  int64            `json:"new_this_week"`
	NewThisMonth int64            `json:"new_this_month"`
	Roles        map[string]int64 `json:"roles"`
	GrowthRate   float64          `json:"growth_rate"`
}

func (s *Service) startOfDay() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// UserStats counts users by status, role and registration date.
func (s *Service) UserStats(ctx context.Context) (UserStats, error) {
	u := UserStats{Roles: map[string]int64{}}
	today := s.startOfDay()
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'active'),
		       COUNT(*) FILTER (WHERE status <> 'active'),
		       COUNT(*) FILTER (WHERE last_login >= ?),
		       COUNT(*) FILTER (WHERE created_at >= ?),
		       COUNT(*) FILTER (WHERE created_at >= ?),
		       COUNT(*) FILTER (WHERE created_at >= ?)
		FROM users`, today, today, today.AddDate(0, 0, -7), today.AddDate(0, 0, -30)).
		Scan(&u.Total, &u.Active, &u.Inactive, &u.ActiveToday, &u.NewToday, &u.NewThisWeek, &u.NewThisMonth)
	if err != nil {
		return u, fmt.Errorf("failed to count users: %w", err)
	}
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return u, fmt.Errorf("failed to count roles: %w", err)
	}
	defer database.CloseRows(rows)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return u, fmt.Errorf("failed to scan role count: %w", err)
		}
		u.Roles[role] = n
	}
	if u.Total > 0 {
		u.GrowthRate = round2(float64(u.NewThisMonth) / float64(u.Total) * 100)
	}
	return u, rows.Err()
}

// PageStats counts pages by status.
type PageStats struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Drafts    int64 `json:"drafts"`
	Private   int64 `json:"private"`
	Posts     int64 `json:"posts"`
}

// PageStats counts pages and published posts.
func (s *Service) PageStats(ctx context.Context) (PageStats, error) {
	var p PageStats
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status <> ?),
		       COUNT(*) FILTER (WHERE status = ?),
		       COUNT(*) FILTER (WHERE status = ?),
		       COUNT(*) FILTER (WHERE status = ?),
		       (SELECT COUNT(*) FROM posts WHERE status = ?)
		FROM pages`, models.ContentTrash, models.ContentPublished, models.ContentDraft, models.ContentPrivate,
		models.ContentPublished).Scan(&p.Total, &p.Published, &p.Drafts, &p.Private, &p.Posts)
	if err != nil {
		return p, fmt.Errorf("failed to count pages: %w", err)
	}
	return p, nil
}

// MediaStats summarizes the uploads directory.
type MediaStats struct {
	TotalFiles         int              `json:"total_files"`
	TotalSize          int64            `json:"total_size"`
	TotalSizeFormatted string           `json:"total_size_formatted"`
	Types              map[string]int   `json:"types"`
	SizeByType         map[string]int64 `json:"size_by_type"`
}

var mediaKinds = []struct {
	name string
	exts []string
}{
	{"images", []string{"jpg", "jpeg", "png", "gif", "webp", "svg", "bmp", "ico"}},
	{"videos", []string{"mp4", "avi", "mov", "wmv", "webm", "mkv"}},
	{"audio", []string{"mp3", "wav", "aac", "flac", "m4a", "ogg"}},
	{"documents", []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "csv", "rtf"}},
	{"archives", []string{"zip", "rar", "7z", "tar", "gz"}},
}

func mediaKind(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, k := range mediaKinds {
		if slices.Contains(k.exts, ext) {
			return k.name
		}
	}
	return "other"
}

// MediaStats walks the uploads directory. Hidden files are ignored.
func (s *Service) MediaStats() (MediaStats, error) {
	m := MediaStats{Types: map[string]int{}, SizeByType: map[string]int64{}}
	for _, k := range mediaKinds {
		m.Types[k.name] = 0
	}
	m.Types["other"] = 0
	if s.opts.UploadsDir == "" {
		m.TotalSizeFormatted = system.FormatBytes(0)
		return m, nil
	}
	err := filepath.WalkDir(s.opts.UploadsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.opts.UploadsDir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		kind := mediaKind(d.Name())
		m.TotalFiles++
		m.TotalSize += info.Size()
		m.Types[kind]++
		m.SizeByType[kind] += info.Size()
		return nil
	})
	m.TotalSizeFormatted = system.FormatBytes(m.TotalSize)
	if err != nil {
		return m, fmt.Errorf("failed to scan uploads: %w", err)
	}
	return m, nil
}

// SessionStats describes logged-in sessions.
type SessionStats struct {
	Active      int64            `json:"active"`
	Today       int64            `json:"today"`
	Total       int64            `json:"total"`
	AvgDuration float64          `json:"avg_duration_minutes"`
	Browsers    map[string]int64 `json:"browsers"`
}

// SessionStats reads the session index. Active means activity in the last
// 30 minutes on an unexpired session.
func (s *Service) SessionStats(ctx context.Context) (SessionStats, error) {
	st := SessionStats{Browsers: map[string]int64{}}
	now := s.now().UTC()
	today := s.startOfDay()
	var avg float64
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE last_activity >= ? AND expires_at > ?),
		       COUNT(*) FILTER (WHERE last_activity >= ?),
		       COUNT(*),
		       COALESCE(AVG(date_diff('second', created_at, last_activity)) FILTER (WHERE created_at >= ?), 0)
		FROM sessions`, now.Add(-30*time.Minute), now, today, today).Scan(&st.Active, &st.Today, &st.Total, &avg)
	if err != nil {
		return st, fmt.Errorf("failed to read session stats: %w", err)
	}
	st.AvgDuration = round2(avg / 60)

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT CASE
		         WHEN user_agent LIKE '%Edg%' THEN 'Edge'
		         WHEN user_agent LIKE '%Chrome%' THEN 'Chrome'
		         WHEN user_agent LIKE '%Firefox%' THEN 'Firefox'
		         WHEN user_agent LIKE '%Safari%' THEN 'Safari'
		         ELSE 'Other'
		       END AS browser, COUNT(*)
		FROM sessions WHERE last_activity >= ?
		GROUP BY browser`, today)
	if err != nil {
		return st, fmt.Errorf("failed to read browser stats: %w", err)
	}
	defer database.CloseRows(rows)
	for rows.Next() {
		var b string
		var n int64
		if err := rows.Scan(&b, &n); err != nil {
			return st, fmt.Errorf("failed to scan browser stats: %w", err)
		}
		st.Browsers[b] = n
	}
	return st, rows.Err()
}

// SecurityStats summarizes login security.
type SecurityStats struct {
	FailedLogins24h     int64  `json:"failed_logins_24h"`
	SuccessfulLogins24h int64  `json:"successful_logins_24h"`
	BlockedIPs          int64  `json:"blocked_ips"`
	HTTPSEnabled        bool   `json:"https_enabled"`
	Score               int    `json:"security_score"`
	Status              string `json:"status"`
}

// SecurityStats scores the installation: HTTPS off costs 20, debug mode 10
// and more than ten failed logins in a day 15.
func (s *Service) SecurityStats(ctx context.Context) (SecurityStats, error) {
	now := s.now().UTC()
	st := SecurityStats{HTTPSEnabled: strings.HasPrefix(s.opts.SiteURL, "https://"), Score: 100}
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE NOT success), COUNT(*) FILTER (WHERE success)
		FROM login_attempts WHERE attempted_at >= ?`, now.Add(-24*time.Hour)).
		Scan(&st.FailedLogins24h, &st.SuccessfulLogins24h)
	if err != nil {
		return st, fmt.Errorf("failed to count logins: %w", err)
	}
	if st.BlockedIPs, err = s.db.CountBlockedIPs(ctx, now); err != nil {
		return st, err
	}
	if !st.HTTPSEnabled {
		st.Score -= 20
	}
	if s.opts.Debug {
		st.Score -= 10
	}
	if st.FailedLogins24h > 10 {
		st.Score -= 15
	}
	switch {
	case st.Score >= 80:
		st.Status = "good"
	case st.Score >= 60:
		st.Status = "warning"
	default:
		st.Status = "critical"
	}
	return st, nil
}

// PerformanceStats covers process memory, host disk and database size.
type PerformanceStats struct {
	MemoryUsage          uint64  `json:"memory_usage"`
	MemoryUsageFormatted string  `json:"memory_usage_formatted"`
	MemorySys            uint64  `json:"memory_sys"`
	MemoryPercent        float64 `json:"memory_percent"`
	Goroutines           int     `json:"goroutines"`
	CPUPercent           float64 `json:"cpu_percent"`
	DiskFree             uint64  `json:"disk_free"`
	DiskFreeFormatted    string  `json:"disk_free_formatted"`
	DiskTotal            uint64  `json:"disk_total"`
	DiskPercent          float64 `json:"disk_percent"`
	DatabaseSize         string  `json:"database_size"`
	Score                int     `json:"performance_score"`
}

// PerformanceStats samples the process and host.
func (s *Service) PerformanceStats(ctx context.Context) PerformanceStats {
	h := system.CollectHost(ctx, s.opts.DiskPath, s.opts.CPUSample)
	alloc, sys := system.GoMemory()
	p := PerformanceStats{
		MemoryUsage:          alloc,
		MemoryUsageFormatted: system.FormatBytes(int64(alloc)),
		MemorySys:            sys,
		MemoryPercent:        h.MemoryPercent,
		Goroutines:           runtime.NumGoroutine(),
		CPUPercent:           h.CPUPercent,
		DiskFree:             h.DiskFree,
		DiskFreeFormatted:    system.FormatBytes(int64(h.DiskFree)),
		DiskTotal:            h.DiskTotal,
		DiskPercent:          h.DiskPercent,
		DatabaseSize:         system.FormatBytes(s.db.SizeBytes()),
		Score:                100,
	}
	if p.MemoryPercent > 80 {
		p.Score -= 20
	}
	if p.DiskPercent > 90 {
		p.Score -= 30
	} else if p.DiskPercent > 80 {
		p.Score -= 10
	}
	if p.CPUPercent > 90 {
		p.Score -= 20
	}
	return p
}

// SystemInfo describes the runtime.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	DuckDBVersion string `json:"duckdb_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Hostname      string `json:"hostname"`
	CMSVersion    string `json:"cms_version"`
	ServerTime    string `json:"server_time"`
	Timezone      string `json:"timezone"`
}

// SystemInfo reports versions and host identity.
func (s *Service) SystemInfo(ctx context.Context) SystemInfo {
	now := s.now()
	info := SystemInfo{
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		CMSVersion: s.opts.Version,
		ServerTime: now.Format("2006-01-02 15:04:05"),
		Timezone:   now.Location().String(),
	}
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT version()`).Scan(&info.DuckDBVersion); err != nil {
		info.DuckDBVersion = "unknown"
	}
	info.Hostname = system.Hostname()
	return info
}

// ActivityFeed returns the newest activity log entries.
func (s *Service) ActivityFeed(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.RecentActivity(ctx, limit)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}
