// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"html/template"
	"time"
)

// DefaultCSRFTTL is how long a token stays valid after it was issued.
const DefaultCSRFTTL = time.Hour

// DefaultAction is used when a caller passes an empty action name.
const DefaultAction = "default"

// NonceFieldName is the form field carrying the CSRF token.
const NonceFieldName = "_wpnonce"

// TokenBag stores CSRF tokens for one session, keyed by action.
type TokenBag interface {
	CSRFToken(action string) (token string, issuedAt time.Time, ok bool)
	SetCSRFToken(action, token string, issuedAt time.Time)
	DeleteCSRFToken(action string)
}

// CSRF issues and verifies per-action tokens.
type CSRF struct {
	ttl time.Duration
	now func() time.Time
}

// NewCSRF returns a CSRF manager. A non-positive ttl selects DefaultCSRFTTL.
func NewCSRF(ttl time.Duration) *CSRF {
	if ttl <= 0 {
		ttl = DefaultCSRFTTL
	}
	return &CSRF{ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime.
func (c *CSRF) TTL() time.Duration {
	return c.ttl
}

// GenerateToken creates a fresh token for action, replacing any previous one.
func (c *CSRF) GenerateToken(bag TokenBag, action string) (string, error) {
	if bag == nil {
		return "", fmt.Errorf("csrf: no session")
	}
	token, err := RandomHex(32)
	if err != nil {
		return "", fmt.Errorf("csrf: %w", err)
	}
	bag.SetCSRFToken(actionName(action), token, c.now())
	return token, nil
}

// VerifyToken reports whether token matches the stored token for action.
// Expired tokens are deleted and never match.
func (c *CSRF) VerifyToken(bag TokenBag, token, action string) bool {
	if bag == nil || token == "" {
		return false
	}
	action = actionName(action)
	stored, issued, ok := bag.CSRFToken(action)
	if !ok {
		return false
	}
	if c.now().Sub(issued) > c.ttl {
		bag.DeleteCSRFToken(action)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

// CreateNonce is GenerateToken under the name themes and plugins use.
func (c *CSRF) CreateNonce(bag TokenBag, action string) (string, error) {
	return c.GenerateToken(bag, action)
}

// VerifyNonce is VerifyToken under the name themes and plugins use.
func (c *CSRF) VerifyNonce(bag TokenBag, token, action string) bool {
	return c.VerifyToken(bag, token, action)
}

// NonceField renders a hidden input carrying a fresh token for action.
func (c *CSRF) NonceField(bag TokenBag, action string) (template.HTML, error) {
	token, err := c.GenerateToken(bag, action)
	if err != nil {
		return "", err
	}
	return template.HTML(`<input type="hidden" name="` + NonceFieldName + `" value="` + token + `">`), nil
}

// RandomHex returns n random bytes hex-encoded.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func actionName(action string) string {
	if action == "" {
		return DefaultAction
	}
	return action
}
