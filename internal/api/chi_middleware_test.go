// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/config"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	sec := &config.SecurityConfig{
		CORSOrigins:      []string{"https://app.example.com"},
		TrustedProxies:   []string{"10.0.0.0/8"},
		RateLimitReqs:    42,
		RateLimitWindow:  30 * time.Second,
		MaxLoginAttempts: 3,
		LoginTimeout:     10 * time.Minute,
	}
	c := ChiMiddlewareConfigFromSecurity(sec)
	if diff := cmp.Diff([]string{"https://app.example.com"}, c.CORSAllowedOrigins); diff != "" {
		t.Errorf("origins (-want +got):\n%s", diff)
	}
	if c.RateLimitRequests != 42 || c.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %d/%s", c.RateLimitRequests, c.RateLimitWindow)
	}
	if c.TokenLimitRequests != 3 || c.TokenLimitWindow != 10*time.Minute {
		t.Errorf("token limit = %d/%s", c.TokenLimitRequests, c.TokenLimitWindow)
	}

	d := ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{})
	if d.RateLimitRequests != 100 || d.TokenLimitRequests != 5 {
		t.Errorf("zero values did not fall back to defaults: %+v", d)
	}
}

func TestTrustedRealIP(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{TrustedProxies: []string{"10.0.0.0/8", "192.0.2.1", "bogus"}})
	h := m.TrustedRealIP()(echoRemoteAddr())

	tests := []struct {
		name   string
		remote string
		want   string
	}{
		{"trusted range", "10.1.2.3:5000", "203.0.113.9"},
		{"trusted single address", "192.0.2.1:5000", "203.0.113.9"},
		{"untrusted peer", "198.51.100.7:5000", "198.51.100.7:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrustedRealIPWithoutProxies(t *testing.T) {
	h := NewChiMiddleware(nil).TrustedRealIP()(echoRemoteAddr())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Body.String(); got != "10.1.2.3:5000" {
		t.Errorf("forwarded header honored without trusted proxies: %q", got)
	}
}

func TestRateLimitToken(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.TokenLimitRequests = 2
	h := NewChiMiddleware(cfg).RateLimitToken()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
		req.RemoteAddr = "192.0.2.50:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	want := []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}
	if diff := cmp.Diff(want, codes); diff != "" {
		t.Errorf("status codes (-want +got):\n%s", diff)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	h := NewChiMiddleware(cfg).RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := range 3 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://app.example.com"}
	h := NewChiMiddleware(cfg).CORS()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for origin, want := range map[string]string{
		"https://app.example.com":  "https://app.example.com",
		"https://evil.example.net": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: allow-origin = %q, want %q", origin, got, want)
		}
	}
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=-1", 20},
		{"limit=abc", 20},
		{"limit=500", 100},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		if got := queryInt(req, "limit", 20, 100); got != tt.want {
			t.Errorf("queryInt(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
