// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/inkwell/config.yaml",
	"/etc/inkwell/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Site: SiteConfig{
			Name:         "Inkwell",
			URL:          "http://localhost:8080",
			Version:      "2.0.0",
			DefaultTheme: "default",
			Language:     "en",
		},
		Paths: PathsConfig{
			Themes:  "themes",
			Plugins: "plugins",
			Uploads: "uploads",
			Backups: "backups",
			Cache:   "cache",
			Public:  "public",
		},
		Database: DatabaseConfig{
			Path:      "/data/inkwell.duckdb",
			MaxMemory: "1GB",
		},
		Security: SecurityConfig{
			SessionStore:      "badger",
			SessionStorePath:  "/data/sessions",
			SessionTTL:        24 * time.Hour,
			CookieName:        "inkwell_session",
			CookieSecure:      true,
			CSRFTTL:           time.Hour,
			MaxLoginAttempts:  5,
			LoginTimeout:      5 * time.Minute,
			BcryptCost:        12,
			APITokenTTL:       24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
			TrustedProxies:    []string{},
			RateLimitDisabled: false,
		},
		Subscription: SubscriptionConfig{
			SeedDefaultPlans: true,
		},
		Backup: BackupConfig{
			Enabled:        false,
			Interval:       24 * time.Hour,
			RetentionCount: 10,
			RetentionDays:  30,
			IncludeUploads: true,
			PreferredHour:  3,
		},
		Updates: UpdatesConfig{
			Enabled:       false,
			ReleaseURL:    "https://api.github.com/repos/tomtom215/inkwell/releases/latest",
			CheckInterval: 12 * time.Hour,
			Timeout:       10 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			Interval:             time.Hour,
			FailedLoginRetention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional config file and
// environment variables (ENV > file > defaults), then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := FindConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in defaults. Tests and
// tools use it to get a usable Config without touching the environment.
func Defaults() *Config {
	return defaultConfig()
}

// FindConfigFile returns the config file Load would read, or "".
func FindConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Anything not listed is ignored.
var envMappings = map[string]string{
	"http_port":      "server.port",
	"http_host":      "server.host",
	"http_timeout":   "server.timeout",
	"environment":    "server.environment",
	"base_path":      "server.base_path",
	"inkwell_debug":  "server.debug",
	"site_name":      "site.name",
	"site_url":       "site.url",
	"admin_email":    "site.admin_email",
	"default_theme":  "site.default_theme",
	"site_language":  "site.language",
	"theme_path":     "paths.themes",
	"plugin_path":    "paths.plugins",
	"upload_path":    "paths.uploads",
	"backup_path":    "paths.backups",
	"cache_path":     "paths.cache",
	"public_path":    "paths.public",
	"log_file":       "paths.log_file",
	"duckdb_path":    "database.path",
	"duckdb_memory":  "database.max_memory",
	"duckdb_threads": "database.threads",

	"session_store":       "security.session_store",
	"session_store_path":  "security.session_store_path",
	"session_ttl":         "security.session_ttl",
	"cookie_name":         "security.cookie_name",
	"cookie_secure":       "security.cookie_secure",
	"csrf_ttl":            "security.csrf_ttl",
	"max_login_attempts":  "security.max_login_attempts",
	"login_timeout":       "security.login_timeout",
	"bcrypt_cost":         "security.bcrypt_cost",
	"jwt_secret":          "security.jwt_secret",
	"api_token_ttl":       "security.api_token_ttl",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"trusted_proxies":     "security.trusted_proxies",
	"admin_password":      "security.admin_password",

	"seed_default_plans": "subscription.seed_default_plans",

	"backup_enabled":         "backup.enabled",
	"backup_interval":        "backup.interval",
	"backup_retention_count": "backup.retention_count",
	"backup_retention_days":  "backup.retention_days",
	"backup_include_uploads": "backup.include_uploads",
	"backup_preferred_hour":  "backup.preferred_hour",

	"updates_enabled":        "updates.enabled",
	"updates_release_url":    "updates.release_url",
	"updates_check_interval": "updates.check_interval",
	"updates_timeout":        "updates.timeout",

	"maintenance_interval":   "maintenance.interval",
	"failed_login_retention": "maintenance.failed_login_retention",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls fn whenever the file at path changes.
func WatchConfigFile(path string, fn func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err == nil {
			fn()
		}
	})
}
