// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Login throttling defaults.
const (
	DefaultMaxAttempts = 5
	DefaultRateWindow  = 300 * time.Second
)

// LoginLimiter is a fixed-window attempt counter keyed by an identifier
// such as "login_<ip>". The first attempt of a window opens it; once the
// window has elapsed the next attempt starts a new one.
type LoginLimiter struct {
	mu      sync.Mutex
	windows map[string]*attemptWindow
	now     func() time.Time
}

type attemptWindow struct {
	attempts int
	first    time.Time
}

// NewLoginLimiter returns an empty limiter.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{windows: make(map[string]*attemptWindow), now: time.Now}
}

// CheckRateLimit records an attempt for identifier and reports whether it is
// allowed. Non-positive arguments select the defaults.
func (l *LoginLimiter) CheckRateLimit(identifier string, maxAttempts int, window time.Duration) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identifier]
	if !ok || now.Sub(w.first) > window {
		l.windows[identifier] = &attemptWindow{attempts: 1, first: now}
		return true
	}
	if w.attempts >= maxAttempts {
		return false
	}
	w.attempts++
	return true
}

// Reset forgets identifier.
func (l *LoginLimiter) Reset(identifier string) {
	l.mu.Lock()
	delete(l.windows, identifier)
	l.mu.Unlock()
}

// Sweep drops windows older than maxAge and returns how many were removed.
func (l *LoginLimiter) Sweep(maxAge time.Duration) int {
	cutoff := l.now().Add(-maxAge)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if w.first.Before(cutoff) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// Throttle is a per-key token bucket for public form endpoints.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type throttleEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewThrottle allows burst requests per key, refilled one every
// window/burst.
func NewThrottle(burst int, window time.Duration) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Throttle{
		limiters: make(map[string]*throttleEntry),
		rate:     rate.Every(window / time.Duration(burst)),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether key may proceed now.
func (t *Throttle) Allow(key string) bool {
	now := t.now()
	t.mu.Lock()
	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(t.rate, t.burst)}
		t.limiters[key] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	t.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// Sweep removes keys idle for longer than idle.
func (t *Throttle) Sweep(idle time.Duration) int {
	cutoff := t.now().Add(-idle)
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, e := range t.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(t.limiters, k)
			n++
		}
	}
	return n
}
