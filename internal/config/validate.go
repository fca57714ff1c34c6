// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/inkwell/internal/logging"
)

// minJWTSecretLength is enforced in production.
const minJWTSecretLength = 32

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSite(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateSchedules(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("BASE_PATH must start with '/', got %q", c.Server.BasePath)
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSite() error {
	if c.Site.URL == "" {
		return errors.New("SITE_URL is required")
	}
	u, err := url.Parse(c.Site.URL)
	if err != nil {
		return fmt.Errorf("SITE_URL failed to parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("SITE_URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("SITE_URL host is required")
	}
	if c.Site.DefaultTheme == "" {
		return errors.New("DEFAULT_THEME is required")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security
	switch s.SessionStore {
	case "memory":
	case "badger":
		if s.SessionStorePath == "" {
			return errors.New("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or badger, got %q", s.SessionStore)
	}
	if s.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if s.CSRFTTL <= 0 {
		return errors.New("CSRF_TTL must be positive")
	}
	if s.MaxLoginAttempts < 1 {
		return errors.New("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if s.LoginTimeout <= 0 {
		return errors.New("LOGIN_TIMEOUT must be positive")
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", s.BcryptCost)
	}
	if c.Server.IsProduction() {
		if len(s.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minJWTSecretLength)
		}
		if !s.CookieSecure {
			return errors.New("COOKIE_SECURE must be true in production")
		}
	}
	if !s.RateLimitDisabled && (s.RateLimitReqs < 1 || s.RateLimitWindow <= 0) {
		return errors.New("rate limiting requires RATE_LIMIT_REQUESTS >= 1 and a positive RATE_LIMIT_WINDOW")
	}
	return nil
}

func (c *Config) validateSchedules() error {
	if c.Backup.Enabled && c.Backup.Interval <= 0 {
		return errors.New("BACKUP_INTERVAL must be positive when backups are enabled")
	}
	if c.Backup.RetentionCount < 0 || c.Backup.RetentionDays < 0 {
		return errors.New("backup retention values cannot be negative")
	}
	if c.Backup.PreferredHour < 0 || c.Backup.PreferredHour > 23 {
		return errors.New("BACKUP_PREFERRED_HOUR must be between 0 and 23")
	}
	if c.Updates.Enabled {
		if c.Updates.CheckInterval <= 0 || c.Updates.Timeout <= 0 {
			return errors.New("UPDATES_CHECK_INTERVAL and UPDATES_TIMEOUT must be positive")
		}
		if _, err := url.ParseRequestURI(c.Updates.ReleaseURL); err != nil {
			return fmt.Errorf("UPDATES_RELEASE_URL is invalid: %w", err)
		}
	}
	if c.Maintenance.Interval <= 0 {
		return errors.New("MAINTENANCE_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
