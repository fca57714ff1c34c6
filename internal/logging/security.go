// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is an authentication or request-integrity event worth auditing.
type SecurityEvent struct {
	Event     string
	UserID    string
	Username  string
	SessionID string
	IPAddress string
	UserAgent string
	Path      string
	Success   bool
	Reason    string
}

// SecurityLogger writes SecurityEvents with identifiers masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger returns a SecurityLogger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: WithComponent("security")}
}

// NewSecurityLoggerWithLogger returns a SecurityLogger writing to l.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func NewSecurityLoggerWithLogger(l zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: l.With().Str("component", "security").Logger()}
}

// LogEvent writes ev. Failures are logged at warn level.
func (l *SecurityLogger) LogEvent(ev *SecurityEvent) {
	var e *zerolog.Event
	if ev.Success {
		e = l.logger.Info().Str("status", "success")
	} else {
		e = l.logger.Warn().Str("status", "failed")
	}
	e = e.Str("event", ev.Event)
	if ev.UserID != "" {
		e = e.Str("user_id", ev.UserID)
	}
	if ev.Username != "" {
		e = e.Str("username", MaskUsername(ev.Username))
	}
	if ev.SessionID != "" {
		e = e.Str("session_id", MaskToken(ev.SessionID))
	}
	if ev.IPAddress != "" {
		e = e.Str("ip", ev.IPAddress)
	}
	if ev.UserAgent != "" {
		e = e.Str("user_agent", truncate(ev.UserAgent, 100))
	}
	if ev.Path != "" {
		e = e.Str("path", ev.Path)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Msg("security event")
}

// LogLoginSuccess records a successful login.
func (l *SecurityLogger) LogLoginSuccess(userID, username, sessionID, ip string) {
	l.LogEvent(&SecurityEvent{Event: "login", UserID: userID, Username: username, SessionID: sessionID, IPAddress: ip, Success: true})
}

// LogLoginFailure records a rejected login.
func (l *SecurityLogger) LogLoginFailure(username, ip, reason string) {
	l.LogEvent(&SecurityEvent{Event: "login", Username: username, IPAddress: ip, Reason: reason})
}

// LogLogout records a logout.
func (l *SecurityLogger) LogLogout(userID, sessionID, ip string) {
	l.LogEvent(&SecurityEvent{Event: "logout", UserID: userID, SessionID: sessionID, IPAddress: ip, Success: true})
}

// LogCSRFFailure records a rejected CSRF token.
func (l *SecurityLogger) LogCSRFFailure(action, ip, path string) {
	l.LogEvent(&SecurityEvent{Event: "csrf", IPAddress: ip, Path: path, Reason: "invalid token for " + action})
}

// LogRateLimited records a rate-limited identifier.
func (l *SecurityLogger) LogRateLimited(identifier, ip string) {
	l.LogEvent(&SecurityEvent{Event: "rate_limit", IPAddress: ip, Reason: identifier})
}

// MaskToken keeps the first four characters of a secret.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}

// MaskUsername keeps the first two characters of a username, or of the local
// part of an email address.
func MaskUsername(name string) string {
	if at := strings.IndexByte(name, '@'); at > 0 {
		return maskPrefix(name[:at]) + name[at:]
	}
	return maskPrefix(name)
}

func maskPrefix(s string) string {
	if len(s) <= 2 {
		return "**"
	}
	return s[:2] + strings.Repeat("*", min(len(s)-2, 6))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
