// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// FeatureChecker reports plan features. The subscription manager
// implements it; it is attached after construction because subscriptions
// start after auth.
type FeatureChecker interface {
	HasFeature(ctx context.Context, userID int64, feature string) bool
}

// Config holds the login policy.
type Config struct {
	MaxLoginAttempts int
	LoginTimeout     time.Duration
	BcryptCost       int
}

// Credentials is a login request.
type Credentials struct {
	Identifier string // username or email
	Password   string
	IP         string
	UserAgent  string
}

// RegisterInput is a registration request.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	IP          string
}

// Service implements login, registration, logout and capability checks.
type Service struct {
	db       *database.DB
	hooks    *hooks.Registry
	sessions *SessionManager
	limiter  *security.LoginLimiter
	tokens   *TokenIssuer
	secLog   *logging.SecurityLogger
	cfg      Config

	mu       sync.RWMutex
	caps     CapabilityChecker
	features FeatureChecker
}

// NewService wires the auth flows. tokens may be nil when API tokens are
// disabled.
func NewService(db *database.DB, registry *hooks.Registry, sessions *SessionManager, tokens *TokenIssuer, cfg Config) *Service {
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = security.DefaultMaxAttempts
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = security.DefaultRateWindow
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = security.DefaultBcryptCost
	}
	return &Service{
		db:       db,
		hooks:    registry,
		sessions: sessions,
		limiter:  security.NewLoginLimiter(),
		tokens:   tokens,
		secLog:   logging.NewSecurityLogger(),
		cfg:      cfg,
		caps:     DefaultCapabilities,
	}
}

// Sessions returns the session manager.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Limiter returns the login limiter so maintenance can sweep it.
func (s *Service) Limiter() *security.LoginLimiter {
	return s.limiter
}

// SetCapabilityChecker replaces the built-in capability map.
func (s *Service) SetCapabilityChecker(c CapabilityChecker) {
	s.mu.Lock()
	s.caps = c
	s.mu.Unlock()
}

// SetFeatureChecker attaches the plan feature lookup used for API tokens.
func (s *Service) SetFeatureChecker(f FeatureChecker) {
	s.mu.Lock()
	s.features = f
	s.mu.Unlock()
}

// Login authenticates a visitor and binds the user to sess.
func (s *Service) Login(ctx context.Context, sess *Session, c Credentials) (*models.User, error) {
	user, err := s.authenticate(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Regenerate(ctx, sess); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to drop pre-login session")
	}
	sess.bindUser(user)
	sess.mu.Lock()
	sess.IPAddress, sess.UserAgent = c.IP, c.UserAgent
	sess.mu.Unlock()

	s.recordSuccess(ctx, user, c, "login", "User logged in")
	s.secLog.LogLoginSuccess(strconv.FormatInt(user.ID, 10), user.Username, sess.ID, c.IP)
	s.hooks.DoAction(ctx, hooks.UserLogin, user.ID)
	return user, nil
}

// IssueTokenForCredentials authenticates c without a session and returns an
// API token. The login rate limit and failure logging apply as for Login.
func (s *Service) IssueTokenForCredentials(ctx context.Context, c Credentials) (string, time.Time, error) {
	user, err := s.authenticate(ctx, c)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expires, err := s.IssueToken(ctx, user)
	if err != nil {
		return "", time.Time{}, err
	}
	s.recordSuccess(ctx, user, c, "api_token", "API token issued")
	s.secLog.LogLoginSuccess(strconv.FormatInt(user.ID, 10), user.Username, "api-token", c.IP)
	return token, expires, nil
}

func (s *Service) authenticate(ctx context.Context, c Credentials) (*models.User, error) {
	if !s.limiter.CheckRateLimit("login_"+c.IP, s.cfg.MaxLoginAttempts, s.cfg.LoginTimeout) {
		metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
		s.secLog.LogRateLimited("login_"+c.IP, c.IP)
		minutes := int(s.cfg.LoginTimeout.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		return nil, userError(ErrRateLimited,
			fmt.Sprintf("Too many login attempts. Please wait %d minutes.", minutes))
	}

	identifier := security.Sanitize(c.Identifier, security.KindText)
	user, err := s.db.UserByLogin(ctx, identifier)
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("login lookup failed: %w", err)
	}
	if user == nil || !security.VerifyPassword(c.Password, user.PasswordHash) {
		s.recordFailure(ctx, identifier, c, "invalid credentials")
		return nil, userError(ErrInvalidCredentials, "Invalid username or password.")
	}
	if !user.IsActive() {
		metrics.LoginAttempts.WithLabelValues("disabled").Inc()
		s.secLog.LogLoginFailure(identifier, c.IP, "account disabled")
		return nil, userError(ErrAccountDisabled, "Your account is disabled.")
	}
	return user, nil
}

func (s *Service) recordSuccess(ctx context.Context, user *models.User, c Credentials, action, desc string) {
	now := time.Now().UTC()
	if err := s.db.TouchLastLogin(ctx, user.ID, now); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to update last login")
	}
	user.LastLogin = &now
	if err := s.db.RecordLoginAttempt(ctx, user.Username, c.IP, c.UserAgent, true); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record login attempt")
	}
	s.logActivity(ctx, user.ID, action, desc, c.IP, c.UserAgent)
	metrics.LoginAttempts.WithLabelValues("success").Inc()
}

func (s *Service) recordFailure(ctx context.Context, identifier string, c Credentials, reason string) {
	metrics.LoginAttempts.WithLabelValues("invalid").Inc()
	s.secLog.LogLoginFailure(identifier, c.IP, reason)
	if err := s.db.RecordLoginAttempt(ctx, identifier, c.IP, c.UserAgent, false); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to record login attempt")
	}
}

// Register creates an active member account and returns its id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	for _, f := range []struct{ name, value string }{
		{"username", in.Username}, {"email", in.Email}, {"password", in.Password},
	} {
		if strings.TrimSpace(f.value) == "" {
			return 0, userError(ErrMissingField, fmt.Sprintf("Field '%s' is required.", f.name))
		}
	}

	username := security.Sanitize(in.Username, security.KindText)
	email := security.Sanitize(in.Email, security.KindEmail)
	if username == "" {
		return 0, userError(ErrInvalidUsername, "Invalid username.")
	}
	if !security.ValidateEmail(email) {
		return 0, userError(ErrInvalidEmail, "Invalid email address.")
	}

	taken, err := s.db.UsernameExists(ctx, username, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, userError(ErrUsernameTaken, "Username is already taken.")
	}
	taken, err = s.db.EmailExists(ctx, email, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, userError(ErrEmailTaken, "Email address is already registered.")
	}

	hash, err := security.HashPasswordCost(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return 0, err
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  security.Sanitize(display, security.KindText),
		Role:         models.RoleMember,
		Status:       models.StatusActive,
	}
	id, err := s.db.InsertUser(ctx, u)
	if err != nil {
		if database.IsConstraintViolation(err) {
			return 0, userError(ErrUsernameTaken, "Username is already taken.")
		}
		return 0, fmt.Errorf("registration failed: %w", err)
	}

	s.logActivity(ctx, id, "register", "User registered", in.IP, "")
	s.hooks.DoAction(ctx, hooks.UserRegistered, id)
	return id, nil
}

// Logout unbinds the user and rotates the session.
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	userID, oldID, ip := sess.UserID, sess.ID, sess.IPAddress
	sess.mu.Unlock()

	if err := s.sessions.Destroy(ctx, sess); err != nil {
		return err
	}
	if userID != 0 {
		s.logActivity(ctx, userID, "logout", "User logged out", ip, "")
		s.secLog.LogLogout(strconv.FormatInt(userID, 10), oldID, ip)
		s.hooks.DoAction(ctx, hooks.UserLogout, userID)
	}
	return nil
}

// HasCapability reports whether the current user holds capability.
func (s *Service) HasCapability(ctx context.Context, capability string) bool {
	u := UserFromContext(ctx)
	if u == nil {
		return false
	}
	return s.UserCan(u, capability)
}

// UserCan reports whether u holds capability.
func (s *Service) UserCan(u *models.User, capability string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	s.mu.RLock()
	caps := s.caps
	s.mu.RUnlock()
	return caps.Can(u.Role, capability)
}

// IssueToken returns an API token for u. Admins always qualify; other users
// need the api_access plan feature.
func (s *Service) IssueToken(ctx context.Context, u *models.User) (string, time.Time, error) {
	if s.tokens == nil {
		return "", time.Time{}, ErrAPIAccessDenied
	}
	if !u.IsAdmin() {
		s.mu.RLock()
		features := s.features
		s.mu.RUnlock()
		if features == nil || !features.HasFeature(ctx, u.ID, "api_access") {
			return "", time.Time{}, ErrAPIAccessDenied
		}
	}
	return s.tokens.Issue(u)
}

// Middleware wraps next with the session middleware and resolves the
// current user from the session or from a Bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return s.sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if u := s.userFromBearer(r); u != nil {
			ctx = logging.ContextWithUserID(WithUser(ctx, u), u.ID)
		} else if sess := SessionFromContext(ctx); sess != nil && sess.IsAuthenticated() {
			if u := s.sessionUser(ctx, sess); u != nil {
				ctx = logging.ContextWithUserID(WithUser(ctx, u), u.ID)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

// sessionUser loads the bound user. Missing or inactive users are dropped
// from the session.
func (s *Service) sessionUser(ctx context.Context, sess *Session) *models.User {
	sess.mu.Lock()
	id := sess.UserID
	sess.mu.Unlock()

	u, err := s.db.UserByID(ctx, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", id).Msg("Failed to load session user")
		return nil
	}
	if u == nil || !u.IsActive() {
		sess.clearUser()
		return nil
	}
	return u
}

func (s *Service) userFromBearer(r *http.Request) *models.User {
	if s.tokens == nil {
		return nil
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return nil
	}
	claims, err := s.tokens.Parse(strings.TrimPrefix(h, "Bearer "))
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
		return nil
	}
	id, err := claims.UserID()
	if err != nil {
		return nil
	}
	u, err := s.db.UserByID(r.Context(), id)
	if err != nil || !u.IsActive() {
		return nil
	}
	return u
}

func (s *Service) logActivity(ctx context.Context, userID int64, action, desc, ip, ua string) {
	uid := userID
	a := models.Activity{
		UserID:      &uid,
		Action:      action,
		EntityType:  "user",
		EntityID:    &uid,
		Description: desc,
		IPAddress:   ip,
		UserAgent:   ua,
	}
	if err := s.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log activity")
	}
}
