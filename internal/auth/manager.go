// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/security"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "inkwell_session"

// touchInterval limits how often a sliding session is rewritten.
const touchInterval = time.Minute

// SessionIndex mirrors logged-in sessions into SQL. *database.DB
// implements it.
type SessionIndex interface {
	RecordSession(ctx context.Context, s database.SessionRecord) error
	DeleteSessionRecord(ctx context.Context, id string) error
}

// ManagerConfig configures cookies and lifetime.
type ManagerConfig struct {
	CookieName   string
	CookiePath   string
	CookieSecure bool
	TTL          time.Duration
}

// SessionManager loads, saves and rotates sessions.
type SessionManager struct {
	store SessionStore
	index SessionIndex
	cfg   ManagerConfig
}

// NewSessionManager creates a manager. index may be nil.
func NewSessionManager(store SessionStore, index SessionIndex, cfg ManagerConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &SessionManager{store: store, index: index, cfg: cfg}
}

// Store returns the backing store.
func (m *SessionManager) Store() SessionStore {
	return m.store
}

// CookieName returns the session cookie name.
func (m *SessionManager) CookieName() string {
	return m.cfg.CookieName
}

// Load returns the session named by the request cookie, or a fresh
// anonymous one.
func (m *SessionManager) Load(r *http.Request) (sess *Session, incomingID string) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		incomingID = c.Value
	}
	if incomingID != "" {
		s, err := m.store.Get(r.Context(), incomingID)
		switch {
		case err == nil:
			if time.Since(s.LastAccessedAt) > touchInterval {
				s.mu.Lock()
				s.LastAccessedAt = time.Now()
				s.ExpiresAt = s.LastAccessedAt.Add(m.cfg.TTL)
				s.markDirty()
				s.mu.Unlock()
			}
			return s, incomingID
		case !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired):
			logging.Ctx(r.Context()).Error().Err(err).Msg("Session lookup error")
		}
	}
	s := NewSession(m.cfg.TTL)
	s.IPAddress = security.ClientIP(r)
	s.UserAgent = r.UserAgent()
	return s, incomingID
}

// Commit saves the session when it changed.
func (m *SessionManager) Commit(ctx context.Context, sess *Session) error {
	if !sess.Dirty() {
		return nil
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.mu.Lock()
	sess.dirty = false
	rec := database.SessionRecord{
		ID:           sess.ID,
		UserID:       sess.UserID,
		IPAddress:    sess.IPAddress,
		UserAgent:    sess.UserAgent,
		CreatedAt:    sess.CreatedAt,
		LastActivity: sess.LastAccessedAt,
		ExpiresAt:    sess.ExpiresAt,
	}
	sess.mu.Unlock()

	if m.index != nil && rec.UserID != 0 {
		if err := m.index.RecordSession(ctx, rec); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to index session")
		}
	}
	return nil
}

// Regenerate gives sess a new ID and removes the old one from the store.
func (m *SessionManager) Regenerate(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	old := sess.ID
	sess.ID = generateSessionID()
	sess.CreatedAt = time.Now()
	sess.LastAccessedAt = sess.CreatedAt
	sess.ExpiresAt = sess.CreatedAt.Add(m.cfg.TTL)
	sess.markDirty()
	sess.mu.Unlock()
	return m.forget(ctx, old)
}

// Destroy empties sess, gives it a new ID and deletes the stored copy.
// Flash messages survive so the next page can confirm the logout.
func (m *SessionManager) Destroy(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	old := sess.ID
	sess.ID = generateSessionID()
	sess.UserID, sess.Username, sess.Role = 0, "", ""
	sess.Data, sess.CSRF = nil, nil
	sess.CreatedAt = time.Now()
	sess.LastAccessedAt = sess.CreatedAt
	sess.ExpiresAt = sess.CreatedAt.Add(m.cfg.TTL)
	sess.markDirty()
	sess.mu.Unlock()
	return m.forget(ctx, old)
}

// DestroyUserSessions removes every session of userID.
func (m *SessionManager) DestroyUserSessions(ctx context.Context, userID int64) (int, error) {
	sessions, err := m.store.ByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	n, err := m.store.DeleteByUserID(ctx, userID)
	if err != nil {
		return n, err
	}
	if m.index != nil {
		for _, s := range sessions {
			if err := m.index.DeleteSessionRecord(ctx, s.ID); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("Failed to remove session index row")
			}
		}
	}
	return n, nil
}

func (m *SessionManager) forget(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if m.index != nil {
		if err := m.index.DeleteSessionRecord(ctx, id); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to remove session index row")
		}
	}
	return nil
}

// Middleware attaches the session to the request context, sets the cookie
// when the ID changed, and saves the session after the handler returns.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, incomingID := m.Load(r)
		sw := &sessionWriter{ResponseWriter: w, m: m, sess: sess, sentID: incomingID}
		ctx := WithSession(r.Context(), sess)

		next.ServeHTTP(sw, r.WithContext(ctx))

		if !sw.wroteHeader {
			sw.setCookie()
		}
		if err := m.Commit(r.Context(), sess); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to save session")
		}
	})
}

func (m *SessionManager) cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    id,
		Path:     m.cfg.CookiePath,
		MaxAge:   int(m.cfg.TTL.Seconds()),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// sessionWriter sets the session cookie right before the headers go out.
// Fresh sessions that were never written to get no cookie.
type sessionWriter struct {
	http.ResponseWriter
	m           *SessionManager
	sess        *Session
	sentID      string
	wroteHeader bool
}

func (w *sessionWriter) setCookie() {
	w.sess.mu.Lock()
	id := w.sess.ID
	w.sess.mu.Unlock()
	if id != w.sentID && (w.sentID != "" || w.sess.Dirty()) {
		http.SetCookie(w.ResponseWriter, w.m.cookie(id))
		w.sentID = id
	}
}

func (w *sessionWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.setCookie()
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		if !w.wroteHeader {
			w.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Hijack lets the websocket upgrader take over the connection.
func (w *sessionWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.wroteHeader = true
	return h.Hijack()
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
