// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
)

// Flash message types.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// CSRFEntry is a stored CSRF token.
type CSRFEntry struct {
	Token    string    `json:"token"`
	IssuedAt time.Time `json:"issued_at"`
}

// Session is the per-browser state. Exported fields are persisted; use the
// methods to modify it so the change is saved at the end of the request.
type Session struct {
	ID             string               `json:"id"`
	UserID         int64                `json:"user_id,omitempty"`
	Username       string               `json:"username,omitempty"`
	Role           string               `json:"role,omitempty"`
	Data           map[string]string    `json:"data,omitempty"`
	CSRF           map[string]CSRFEntry `json:"csrf,omitempty"`
	Flashes        []Flash              `json:"flashes,omitempty"`
	IPAddress      string               `json:"ip_address,omitempty"`
	UserAgent      string               `json:"user_agent,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	ExpiresAt      time.Time            `json:"expires_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`

	mu    sync.Mutex
	dirty bool
}

// NewSession returns an anonymous session valid for ttl.
func NewSession(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:             generateSessionID(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

func generateSessionID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("auth: crypto/rand failed: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// IsExpired reports whether the session is past its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsAuthenticated reports whether a user is bound to the session.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UserID != 0
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) markDirty() {
	s.dirty = true
}

// Get returns a data value.
func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Data[key]
	return v, ok
}

// Set stores a data value.
func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Data == nil {
		s.Data = make(map[string]string)
	}
	s.Data[key] = value
	s.markDirty()
}

// Delete removes a data value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Data[key]; ok {
		delete(s.Data, key)
		s.markDirty()
	}
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Flashes = append(s.Flashes, Flash{Type: kind, Message: message})
	s.markDirty()
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Flashes) == 0 {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	s.markDirty()
	return out
}

// CSRFToken implements security.TokenBag.
func (s *Session) CSRFToken(action string) (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.CSRF[action]
	return e.Token, e.IssuedAt, ok
}

// SetCSRFToken implements security.TokenBag.
func (s *Session) SetCSRFToken(action, token string, issuedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CSRF == nil {
		s.CSRF = make(map[string]CSRFEntry)
	}
	s.CSRF[action] = CSRFEntry{Token: token, IssuedAt: issuedAt}
	s.markDirty()
}

// DeleteCSRFToken implements security.TokenBag.
func (s *Session) DeleteCSRFToken(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.CSRF[action]; ok {
		delete(s.CSRF, action)
		s.markDirty()
	}
}

func (s *Session) bindUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID, s.Username, s.Role = u.ID, u.Username, u.Role
	s.markDirty()
}

func (s *Session) clearUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserID, s.Username, s.Role = 0, "", ""
	s.markDirty()
}

// clone returns a deep copy without the lock state.
func (s *Session) clone() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Session{
		ID:             s.ID,
		UserID:         s.UserID,
		Username:       s.Username,
		Role:           s.Role,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		LastAccessedAt: s.LastAccessedAt,
	}
	if s.Data != nil {
		c.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			c.Data[k] = v
		}
	}
	if s.CSRF != nil {
		c.CSRF = make(map[string]CSRFEntry, len(s.CSRF))
		for k, v := range s.CSRF {
			c.CSRF[k] = v
		}
	}
	if s.Flashes != nil {
		c.Flashes = append([]Flash(nil), s.Flashes...)
	}
	return c
}

// SessionStore persists sessions.
type SessionStore interface {
	// Get returns ErrSessionNotFound or ErrSessionExpired when the session
	// cannot be used.
	Get(ctx context.Context, id string) (*Session, error)

	// Save inserts or replaces a session.
	Save(ctx context.Context, session *Session) error

	// Delete removes a session. Missing sessions are not an error.
	Delete(ctx context.Context, id string) error

	// DeleteByUserID removes every session of a user.
	DeleteByUserID(ctx context.Context, userID int64) (int, error)

	// ByUserID lists the unexpired sessions of a user.
	ByUserID(ctx context.Context, userID int64) ([]*Session, error)

	// CleanupExpired removes expired sessions.
	CleanupExpired(ctx context.Context) (int, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	Close() error
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*Session)}
}

// Get returns a copy of the stored session.
func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session.clone(), nil
}

// Save stores a copy of session.
func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	stored := session.clone()
	s.mu.Lock()
	s.sessions[stored.ID] = stored
	s.mu.Unlock()
	return nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// DeleteByUserID removes every session of userID.
func (s *MemorySessionStore) DeleteByUserID(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// ByUserID lists unexpired sessions of userID.
func (s *MemorySessionStore) ByUserID(_ context.Context, userID int64) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Session
	for _, session := range s.sessions {
		if session.UserID == userID && !session.IsExpired() {
			out = append(out, session.clone())
		}
	}
	return out, nil
}

// CleanupExpired removes expired sessions.
func (s *MemorySessionStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

// Count returns the number of stored sessions.
func (s *MemorySessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Close is a no-op.
func (s *MemorySessionStore) Close() error { return nil }
