// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points CONFIG_PATH at a missing file and moves into an empty dir so
// no config.yaml from the developer machine leaks into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Security.CSRFTTL != time.Hour {
		t.Errorf("CSRFTTL = %v, want 1h", cfg.Security.CSRFTTL)
	}
	if cfg.Security.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.Security.BcryptCost)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOGIN_TIMEOUT", "10m")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Security.SessionStore != "memory" {
		t.Errorf("SessionStore = %q", cfg.Security.SessionStore)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Security.LoginTimeout != 10*time.Minute {
		t.Errorf("LoginTimeout = %v", cfg.Security.LoginTimeout)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "site:\n  name: Docs Hub\n  default_theme: aurora\nserver:\n  port: 7000\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Site.Name != "Docs Hub" || cfg.Site.DefaultTheme != "aurora" {
		t.Errorf("file values not applied: %+v", cfg.Site)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("env should win over file, port = %d", cfg.Server.Port)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"unknown env", func(c *Config) { c.Server.Environment = "qa" }, "ENVIRONMENT"},
		{"base path", func(c *Config) { c.Server.BasePath = "cms" }, "BASE_PATH"},
		{"site url", func(c *Config) { c.Site.URL = "ftp://x" }, "SITE_URL"},
		{"session store", func(c *Config) { c.Security.SessionStore = "redis" }, "SESSION_STORE"},
		{"bcrypt", func(c *Config) { c.Security.BcryptCost = 2 }, "BCRYPT_COST"},
		{"weak jwt in prod", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.JWTSecret = "short"
		}, "JWT_SECRET"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"backup interval", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Interval = 0
		}, "BACKUP_INTERVAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}
