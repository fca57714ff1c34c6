// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package analytics

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/system"
)

// ReportTTL is how long report results are reused.
const ReportTTL = time.Minute

// ActiveWindow is how recent a session's activity must be to count as
// "active now".
const ActiveWindow = 30 * time.Minute

// Service is the analytics service.
type Service struct {
	db       *database.DB
	cache    *cache.Cache
	diskPath string
	log      zerolog.Logger
	now      func() time.Time
}

// New creates the service. diskPath selects the filesystem reported by
// SystemHealth.
func New(db *database.DB, diskPath string) *Service {
	return &Service{
		db:       db,
		cache:    cache.New(ReportTTL),
		diskPath: diskPath,
		log:      logging.WithComponent("analytics"),
		now:      time.Now,
	}
}

// Cache exposes the report cache for maintenance and statistics.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// TrackPageView stores one page view.
func (s *Service) TrackPageView(ctx context.Context, v models.PageView) error {
	if v.VisitedAt.IsZero() {
		v.VisitedAt = s.now().UTC()
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO page_views (page_id, page_slug, page_title, user_id, session_id, ip_address, user_agent, referrer, visited_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		database.NullInt64(v.PageID), v.PageSlug, v.PageTitle, database.NullInt64(v.UserID),
		v.SessionID, v.IPAddress, v.UserAgent, v.Referrer, v.VisitedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to track page view: %w", err)
	}
	metrics.PageViews.Inc()
	return nil
}

func (s *Service) since(days int) time.Time {
	if days <= 0 {
		days = 30
	}
	return s.now().UTC().AddDate(0, 0, -days)
}

// cached returns the cached value for key or computes and stores it.
func cached[T any](s *Service, key string, fn func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			metrics.RecordCache("analytics", true)
			return t, nil
		}
	}
	metrics.RecordCache("analytics", false)
	v, err := fn()
	if err != nil {
		return v, err
	}
	s.cache.Set(key, v)
	return v, nil
}

// Invalidate drops every cached report.
func (s *Service) Invalidate() {
	s.cache.Clear()
}

// PageViewsByDate counts views per day over the last days days, oldest first.
// Days without views are omitted.
func (s *Service) PageViewsByDate(ctx context.Context, days int) ([]models.DailyCount, error) {
	return cached(s, cache.GenerateKey("views_by_date", days), func() ([]models.DailyCount, error) {
		return s.dailyCounts(ctx, `
			SELECT strftime(visited_at, '%Y-%m-%d') AS d, COUNT(*)
			FROM page_views WHERE visited_at >= ?
			GROUP BY d ORDER BY d`, s.since(days))
	})
}

func (s *Service) dailyCounts(ctx context.Context, query string, args ...any) ([]models.DailyCount, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily counts: %w", err)
	}
	defer database.CloseRows(rows)
	out := []models.DailyCount{}
	for rows.Next() {
		var c models.DailyCount
		if err := rows.Scan(&c.Date, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TopPage is one row of the most viewed pages report.
type TopPage struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

// TopPages returns the most viewed slugs over the last days days.
func (s *Service) TopPages(ctx context.Context, days, limit int) ([]TopPage, error) {
	if limit <= 0 {
		limit = 10
	}
	return cached(s, cache.GenerateKey("top_pages", []int{days, limit}), func() ([]TopPage, error) {
		rows, err := s.db.Conn().QueryContext(ctx, `
			SELECT page_slug, COALESCE(MAX(page_title), ''), COUNT(*) AS views
			FROM page_views WHERE visited_at >= ? AND page_slug IS NOT NULL AND page_slug <> ''
			GROUP BY page_slug ORDER BY views DESC, page_slug LIMIT ?`, s.since(days), limit)
		if err != nil {
			return nil, fmt.Errorf("failed to query top pages: %w", err)
		}
		defer database.CloseRows(rows)
		out := []TopPage{}
		for rows.Next() {
			var p TopPage
			if err := rows.Scan(&p.Slug, &p.Title, &p.Views); err != nil {
				return nil, fmt.Errorf("failed to scan top page: %w", err)
			}
			out = append(out, p)
		}
		return out, rows.Err()
	})
}

// UniqueVisitors counts distinct IP addresses over the last days days.
func (s *Service) UniqueVisitors(ctx context.Context, days int) (int64, error) {
	var n int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT ip_address) FROM page_views WHERE visited_at >= ?`, s.since(days)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unique visitors: %w", err)
	}
	return n, nil
}

// VisitorStats summarizes traffic over a period.
type VisitorStats struct {
	Total              int64   `json:"total"`
	Unique             int64   `json:"unique"`
	Today              int64   `json:"today"`
	AvgPerDay          float64 `json:"avg_per_day"`
	ActiveNow          int64   `json:"active_now"`
	BounceRate         float64 `json:"bounce_rate"`
	AvgSessionDuration string  `json:"avg_session_duration"`
}

// VisitorStats computes the traffic summary for the last days days. The
// bounce rate is the share of tracked sessions with a single view.
func (s *Service) VisitorStats(ctx context.Context, days int) (VisitorStats, error) {
	if days <= 0 {
		days = 30
	}
	return cached(s, cache.GenerateKey("visitor_stats", days), func() (VisitorStats, error) {
		var st VisitorStats
		since := s.since(days)
		now := s.now().UTC()
		conn := s.db.Conn()

		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*), COUNT(DISTINCT ip_address) FROM page_views WHERE visited_at >= ?`, since).
			Scan(&st.Total, &st.Unique); err != nil {
			return st, fmt.Errorf("failed to count views: %w", err)
		}
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM page_views WHERE visited_at >= ?`, midnight).Scan(&st.Today); err != nil {
			return st, fmt.Errorf("failed to count today's views: %w", err)
		}
		st.AvgPerDay = float64(int64(float64(st.Total)/float64(days)*10+0.5)) / 10

		if err := conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE last_activity >= ?`, now.Add(-ActiveWindow)).Scan(&st.ActiveNow); err != nil {
			return st, fmt.Errorf("failed to count active sessions: %w", err)
		}

		var single, sessions int64
		if err := conn.QueryRowContext(ctx, `
			SELECT COUNT(*) FILTER (WHERE n = 1), COUNT(*)
			FROM (SELECT session_id, COUNT(*) AS n FROM page_views
			      WHERE visited_at >= ? AND session_id IS NOT NULL AND session_id <> ''
			      GROUP BY session_id)`, since).Scan(&single, &sessions); err != nil {
			return st, fmt.Errorf("failed to compute bounce rate: %w", err)
		}
		if sessions > 0 {
			st.BounceRate = float64(int64(float64(single)/float64(sessions)*1000+0.5)) / 10
		}

		var avg *float64
		if err := conn.QueryRowContext(ctx, `
			SELECT AVG(date_diff('second', created_at, last_activity))
			FROM sessions WHERE created_at >= ? AND last_activity > created_at`, since).Scan(&avg); err != nil {
			return st, fmt.Errorf("failed to compute session duration: %w", err)
		}
		secs := 0
		if avg != nil {
			secs = int(*avg)
		}
		st.AvgSessionDuration = formatDuration(secs)
		return st, nil
	})
}

func formatDuration(secs int) string {
	if secs >= 60 {
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%ds", secs)
}

// ActivityDay counts registrations and successful logins on one day.
type ActivityDay struct {
	Date          string `json:"date"`
	Registrations int64  `json:"registrations"`
	Logins        int64  `json:"logins"`
}

// UserActivity returns registrations and logins per day, newest first.
func (s *Service) UserActivity(ctx context.Context, days int) ([]ActivityDay, error) {
	if days <= 0 {
		days = 7
	}
	since := s.since(days)
	regs, err := s.dailyCounts(ctx, `
		SELECT strftime(created_at, '%Y-%m-%d') AS d, COUNT(*) FROM users
		WHERE created_at >= ? GROUP BY d`, since)
	if err != nil {
		return nil, err
	}
	logins, err := s.dailyCounts(ctx, `
		SELECT strftime(attempted_at, '%Y-%m-%d') AS d, COUNT(*) FROM login_attempts
		WHERE success AND attempted_at >= ? GROUP BY d`, since)
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]*ActivityDay)
	for _, c := range regs {
		byDate[c.Date] = &ActivityDay{Date: c.Date, Registrations: c.Count}
	}
	for _, c := range logins {
		d, ok := byDate[c.Date]
		if !ok {
			d = &ActivityDay{Date: c.Date}
			byDate[c.Date] = d
		}
		d.Logins = c.Count
	}
	out := make([]ActivityDay, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b ActivityDay) int { return strings.Compare(b.Date, a.Date) })
	return out, nil
}

// Health is the host health summary shown on the analytics page.
type Health struct {
	CPUUsage     float64 `json:"cpu_usage"`
	MemoryUsage  float64 `json:"memory_usage"`
	DiskUsage    float64 `json:"disk_usage"`
	DatabaseSize string  `json:"database_size"`
	Uptime       string  `json:"uptime"`
}

// SystemHealth samples the host.
func (s *Service) SystemHealth(ctx context.Context) Health {
	h := system.CollectHost(ctx, s.diskPath, 200*time.Millisecond)
	return Health{
		CPUUsage:     h.CPUPercent,
		MemoryUsage:  h.MemoryPercent,
		DiskUsage:    h.DiskPercent,
		DatabaseSize: system.FormatBytes(s.db.SizeBytes()),
		Uptime:       h.Uptime,
	}
}

// CacheStats combines the persistent cache table with the in-process
// report cache counters.
type CacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Size    string `json:"size"`
	Items   int64  `json:"items"`
	Expired int64  `json:"expired"`
}

// CacheStats reports cache usage.
func (s *Service) CacheStats(ctx context.Context) (CacheStats, error) {
	var (
		st   CacheStats
		size int64
	)
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE expires_at < ?), CAST(COALESCE(SUM(LENGTH(cache_value)), 0) AS BIGINT)
		FROM cache`, s.now().UTC()).Scan(&st.Items, &st.Expired, &size)
	if err != nil {
		return st, fmt.Errorf("failed to read cache stats: %w", err)
	}
	st.Size = system.FormatBytes(size)
	mem := s.cache.GetStats()
	st.Hits, st.Misses = mem.Hits, mem.Misses
	return st, nil
}

// RecentActivity returns the newest activity log entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	return s.db.RecentActivity(ctx, limit)
}

// PruneViews deletes page views older than before.
func (s *Service) PruneViews(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM page_views WHERE visited_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune page views: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
