// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package update

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/system"
	"github.com/tomtom215/inkwell/internal/theme"
)

// Minimum supported runtime versions.
const (
	MinGoVersion     = "1.24.0"
	MinDuckDBVersion = "1.1.0"
)

// Update types recorded in update_history.
const (
	TypeCore   = "core"
	TypePlugin = "plugin"
	TypeTheme  = "theme"
)

// PluginSource lists installed plugins.
type PluginSource interface {
	AvailablePlugins(ctx context.Context) ([]plugin.Info, error)
}

// ThemeSource lists installed themes.
type ThemeSource interface {
	AvailableThemes() ([]theme.Info, error)
}

// Options configure the service.
type Options struct {
	Version       string
	ReleaseURL    string
	CheckInterval time.Duration
	// WritableDirs are checked by SystemRequirements, keyed by label.
	WritableDirs map[string]string
}

// Service is the update service.
type Service struct {
	db      *database.DB
	client  *Client
	cache   *cache.Cache
	opts    Options
	plugins PluginSource
	themes  ThemeSource
}

// New creates the service. plugins and themes may be nil.
func New(db *database.DB, client *Client, opts Options, plugins PluginSource, themes ThemeSource) *Service {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 12 * time.Hour
	}
	return &Service{
		db:      db,
		client:  client,
		cache:   cache.New(opts.CheckInterval),
		opts:    opts,
		plugins: plugins,
		themes:  themes,
	}
}

// Cache exposes the result cache so it can be registered for clearing.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// release is the subset of a GitHub release document we read.
type release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
	ZipballURL  string    `json:"zipball_url"`
	HTMLURL     string    `json:"html_url"`
}

// CoreUpdate describes the CMS release status.
type CoreUpdate struct {
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	UpdateAvailable bool      `json:"update_available"`
	Changelog       []string  `json:"changelog"`
	ReleaseDate     string    `json:"release_date"`
	DownloadURL     string    `json:"download_url"`
	ReleaseNotes    string    `json:"release_notes,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
	Error           string    `json:"error,omitempty"`
}

// CheckCoreUpdates compares the running version with the latest release.
// When the release server cannot be reached the current version is
// reported as latest and Error is set; failures are not cached.
func (s *Service) CheckCoreUpdates(ctx context.Context) CoreUpdate {
	if v, ok := s.cache.Get("core"); ok {
		metrics.UpdateChecks.WithLabelValues("cached").Inc()
		return v.(CoreUpdate)
	}
	out := CoreUpdate{
		CurrentVersion: s.opts.Version,
		LatestVersion:  s.opts.Version,
		Changelog:      []string{},
		CheckedAt:      time.Now().UTC(),
	}
	if s.opts.ReleaseURL == "" {
		return out
	}
	var rel release
	if err := s.client.FetchJSON(ctx, s.opts.ReleaseURL, &rel); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Core update check failed")
		out.Error = err.Error()
		return out
	}
	latest := strings.TrimPrefix(rel.TagName, "v")
	if latest != "" {
		out.LatestVersion = latest
	}
	out.UpdateAvailable = Newer(latest, s.opts.Version)
	out.Changelog = ParseChangelog(rel.Body)
	out.ReleaseNotes = rel.Body
	out.DownloadURL = rel.ZipballURL
	if !rel.PublishedAt.IsZero() {
		out.ReleaseDate = rel.PublishedAt.UTC().Format("2006-01-02")
	}
	s.cache.Set("core", out)
	return out
}

// remoteManifest is the document behind a plugin or theme update_url.
type remoteManifest struct {
	Version     string    `json:"version"`
	DownloadURL string    `json:"download_url"`
	Changelog   Changelog `json:"changelog"`
}

// ComponentUpdate is an available plugin or theme update.
type ComponentUpdate struct {
	Name           string   `json:"name"`
	CurrentVersion string   `json:"current_version"`
	NewVersion     string   `json:"new_version"`
	DownloadURL    string   `json:"download_url"`
	Changelog      []string `json:"changelog"`
}

type component struct {
	key, name, version, updateURL string
}

// checkComponents fetches each update_url and keeps the ones that offer a
// newer version. One failing component does not stop the others.
func (s *Service) checkComponents(ctx context.Context, cacheKey string, list []component) map[string]ComponentUpdate {
	if v, ok := s.cache.Get(cacheKey); ok {
		metrics.UpdateChecks.WithLabelValues("cached").Inc()
		return v.(map[string]ComponentUpdate)
	}
	out := make(map[string]ComponentUpdate)
	failed := false
	for _, c := range list {
		if c.updateURL == "" {
			continue
		}
		var rm remoteManifest
		if err := s.client.FetchJSON(ctx, c.updateURL, &rm); err != nil {
			failed = true
			logging.Ctx(ctx).Warn().Err(err).Str("component", c.key).Msg("Update check failed")
			if errors.Is(err, ErrUnavailable) {
				break
			}
			continue
		}
		current := c.version
		if current == "" {
			current = "1.0.0"
		}
		if !Newer(rm.Version, current) {
			continue
		}
		cl := []string(rm.Changelog)
		if cl == nil {
			cl = []string{}
		}
		out[c.key] = ComponentUpdate{
			Name:           c.name,
			CurrentVersion: current,
			NewVersion:     rm.Version,
			DownloadURL:    rm.DownloadURL,
			Changelog:      cl,
		}
	}
	if !failed {
		s.cache.Set(cacheKey, out)
	}
	return out
}

// CheckPluginUpdates returns available updates keyed by plugin slug.
func (s *Service) CheckPluginUpdates(ctx context.Context) (map[string]ComponentUpdate, error) {
	if s.plugins == nil {
		return map[string]ComponentUpdate{}, nil
	}
	infos, err := s.plugins.AvailablePlugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	list := make([]component, 0, len(infos))
	for _, p := range infos {
		list = append(list, component{key: p.Slug, name: p.Name, version: p.Version, updateURL: p.UpdateURL})
	}
	return s.checkComponents(ctx, "plugins", list), nil
}

// CheckThemeUpdates returns available updates keyed by theme folder.
func (s *Service) CheckThemeUpdates(ctx context.Context) (map[string]ComponentUpdate, error) {
	if s.themes == nil {
		return map[string]ComponentUpdate{}, nil
	}
	infos, err := s.themes.AvailableThemes()
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	list := make([]component, 0, len(infos))
	for _, t := range infos {
		list = append(list, component{key: t.Folder, name: t.Name, version: t.Version, updateURL: t.UpdateURL})
	}
	return s.checkComponents(ctx, "themes", list), nil
}

// Overview bundles every check for the updates screen.
type Overview struct {
	Core         CoreUpdate                 `json:"core"`
	Plugins      map[string]ComponentUpdate `json:"plugins"`
	Themes       map[string]ComponentUpdate `json:"themes"`
	Requirements Requirements               `json:"requirements"`
	Breaker      string                     `json:"breaker"`
}

// CheckAll runs the core, plugin and theme checks.
func (s *Service) CheckAll(ctx context.Context) Overview {
	ov := Overview{Core: s.CheckCoreUpdates(ctx), Requirements: s.SystemRequirements(ctx), Breaker: s.client.State()}
	var err error
	if ov.Plugins, err = s.CheckPluginUpdates(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Plugin update check failed")
	}
	if ov.Themes, err = s.CheckThemeUpdates(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Theme update check failed")
	}
	return ov
}

// Refresh drops cached results so the next check hits the network.
func (s *Service) Refresh() {
	s.cache.Clear()
}

// HistoryEntry is one update_history row.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	FromVersion string    `json:"from_version"`
	ToVersion   string    `json:"to_version"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogUpdate records an update attempt.
func (s *Service) LogUpdate(ctx context.Context, e HistoryEntry) error {
	if e.Type == "" || e.Name == "" {
		return errors.New("update type and name are required")
	}
	if e.Status == "" {
		e.Status = "success"
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO update_history (type, name, from_version, to_version, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Type, e.Name, e.FromVersion, e.ToVersion, e.Status, e.Message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log update: %w", err)
	}
	return nil
}

// UpdateHistory returns the newest entries first.
func (s *Service) UpdateHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, type, name, COALESCE(from_version, ''), COALESCE(to_version, ''), status,
		       COALESCE(message, ''), created_at
		FROM update_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query update history: %w", err)
	}
	defer database.CloseRows(rows)
	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.Type, &e.Name, &e.FromVersion, &e.ToVersion, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan update history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Requirement is one checked prerequisite.
type Requirement struct {
	Required string `json:"required"`
	Current  string `json:"current"`
	Met      bool   `json:"met"`
}

// Requirements is the SystemRequirements report.
type Requirements struct {
	Go          Requirement     `json:"go_version"`
	DuckDB      Requirement     `json:"duckdb_version"`
	Permissions map[string]bool `json:"permissions"`
	AllMet      bool            `json:"all_met"`
}

// SystemRequirements checks the runtime versions and writable directories.
func (s *Service) SystemRequirements(ctx context.Context) Requirements {
	r := Requirements{
		Go:          Requirement{Required: MinGoVersion, Current: strings.TrimPrefix(runtime.Version(), "go")},
		DuckDB:      Requirement{Required: MinDuckDBVersion},
		Permissions: map[string]bool{},
	}
	r.Go.Met = AtLeast(r.Go.Current, MinGoVersion)
	if err := s.db.Conn().QueryRowContext(ctx, `SELECT version()`).Scan(&r.DuckDB.Current); err != nil {
		r.DuckDB.Current = "unknown"
	}
	r.DuckDB.Met = AtLeast(r.DuckDB.Current, MinDuckDBVersion)
	r.AllMet = r.Go.Met && r.DuckDB.Met
	for label, dir := range s.opts.WritableDirs {
		ok := system.CheckWritable(dir)
		r.Permissions[label+"_writable"] = ok
		r.AllMet = r.AllMet && ok
	}
	return r
}
