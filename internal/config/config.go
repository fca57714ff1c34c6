// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package config loads Inkwell configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config is the complete application configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Site         SiteConfig         `koanf:"site"`
	Paths        PathsConfig        `koanf:"paths"`
	Database     DatabaseConfig     `koanf:"database"`
	Security     SecurityConfig     `koanf:"security"`
	Subscription SubscriptionConfig `koanf:"subscription"`
	Backup       BackupConfig       `koanf:"backup"`
	Updates      UpdatesConfig      `koanf:"updates"`
	Maintenance  MaintenanceConfig  `koanf:"maintenance"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
	BasePath    string        `koanf:"base_path"`   // non-empty when served from a sub-directory
	Debug       bool          `koanf:"debug"`       // disables CSP and enables verbose errors
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the environment is production.
func (s ServerConfig) IsProduction() bool {
	return strings.EqualFold(s.Environment, "production")
}

// SiteConfig holds site identity values used by themes, SEO and mail-outs.
type SiteConfig struct {
	Name         string `koanf:"name"`
	URL          string `koanf:"url"`
	AdminEmail   string `koanf:"admin_email"`
	Version      string `koanf:"version"`
	DefaultTheme string `koanf:"default_theme"`
	Language     string `koanf:"language"`
}

// PathsConfig locates the on-disk directories.
type PathsConfig struct {
	Themes  string `koanf:"themes"`
	Plugins string `koanf:"plugins"`
	Uploads string `koanf:"uploads"`
	Backups string `koanf:"backups"`
	Cache   string `koanf:"cache"`
	Public  string `koanf:"public"`   // sitemap.xml / robots.txt snapshots
	LogFile string `koanf:"log_file"` // optional, read by the system error log viewer
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default
}

// SecurityConfig groups session, login and API protection settings.
type SecurityConfig struct {
	SessionStore     string        `koanf:"session_store"` // memory or badger
	SessionStorePath string        `koanf:"session_store_path"`
	SessionTTL       time.Duration `koanf:"session_ttl"`
	CookieName       string        `koanf:"cookie_name"`
	CookieSecure     bool          `koanf:"cookie_secure"`
	CSRFTTL          time.Duration `koanf:"csrf_ttl"`
	MaxLoginAttempts int           `koanf:"max_login_attempts"`
	LoginTimeout     time.Duration `koanf:"login_timeout"`
	BcryptCost       int           `koanf:"bcrypt_cost"`

	JWTSecret   string        `koanf:"jwt_secret"`
	APITokenTTL time.Duration `koanf:"api_token_ttl"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`

	// AdminPassword seeds the first administrator. A random password is
	// generated and logged once when empty.
	AdminPassword string `koanf:"admin_password"`
}

// SubscriptionConfig configures plan seeding.
type SubscriptionConfig struct {
	SeedDefaultPlans bool `koanf:"seed_default_plans"`
}

// BackupConfig configures scheduled backups and retention.
type BackupConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Interval       time.Duration `koanf:"interval"`
	RetentionCount int           `koanf:"retention_count"`
	RetentionDays  int           `koanf:"retention_days"`
	IncludeUploads bool          `koanf:"include_uploads"`
	PreferredHour  int           `koanf:"preferred_hour"` // local hour for daily or longer intervals
}

// UpdatesConfig configures remote release checks.
type UpdatesConfig struct {
	Enabled       bool          `koanf:"enabled"`
	ReleaseURL    string        `koanf:"release_url"`
	CheckInterval time.Duration `koanf:"check_interval"`
	Timeout       time.Duration `koanf:"timeout"`
}

// MaintenanceConfig configures periodic housekeeping.
type MaintenanceConfig struct {
	Interval             time.Duration `koanf:"interval"`
	FailedLoginRetention time.Duration `koanf:"failed_login_retention"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// String summarizes the configuration without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("server=%s env=%s site=%q db=%s sessions=%s theme=%s",
		c.Server.Addr(), c.Server.Environment, c.Site.Name, c.Database.Path,
		c.Security.SessionStore, c.Site.DefaultTheme)
}
