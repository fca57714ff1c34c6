// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

type fixture struct {
	db       *database.DB
	hooks    *hooks.Registry
	sessions *SessionManager
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testinfra.NewDB(t)
	registry := hooks.New()
	sessions := NewSessionManager(NewMemorySessionStore(), db, ManagerConfig{TTL: time.Hour})
	tokens, err := NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(db, registry, sessions, tokens, Config{
		MaxLoginAttempts: 3,
		LoginTimeout:     time.Minute,
		BcryptCost:       bcrypt.MinCost,
	})
	return &fixture{db: db, hooks: registry, sessions: sessions, svc: svc}
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testinfra.CreateUser(t, f.db, "jane", models.RoleMember, "correct-horse")

	var fired []any
	f.hooks.AddAction(hooks.UserLogin, func(_ context.Context, args ...any) { fired = args }, hooks.DefaultPriority)

	sess := NewSession(time.Hour)
	oldID := sess.ID
	u, err := f.svc.Login(ctx, sess, Credentials{Identifier: "jane@example.com", Password: "correct-horse", IP: "192.0.2.1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.ID == oldID {
		t.Error("session id not regenerated")
	}
	if sess.UserID != u.ID || sess.Role != models.RoleMember {
		t.Errorf("session not bound: %+v", sess)
	}
	if len(fired) != 1 || fired[0] != u.ID {
		t.Errorf("user_login args = %v", fired)
	}

	stored, err := f.db.UserByID(ctx, u.ID)
	if err != nil || stored.LastLogin == nil {
		t.Errorf("last_login not set: %+v, %v", stored, err)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, f.db, "bob", models.RoleMember, "secret-pass")

	_, err := f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "bob", Password: "wrong", IP: "192.0.2.9"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	var uerr *UserError
	if !errors.As(err, &uerr) || uerr.Error() == "" {
		t.Errorf("error is not a UserError: %v", err)
	}

	_, err = f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "nobody", Password: "x", IP: "192.0.2.9"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
	n, err := f.db.CountFailedLogins(ctx, time.Now().Add(-time.Hour), "")
	if err != nil || n != 2 {
		t.Errorf("failed logins = %d, %v; want 2", n, err)
	}

	if _, err := f.db.Conn().ExecContext(ctx, `UPDATE users SET status = 'inactive' WHERE id = ?`, u.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "bob", Password: "secret-pass", IP: "192.0.2.10"})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("inactive user: %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testinfra.CreateUser(t, f.db, "carol", models.RoleMember, "pw-pw-pw-pw")

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "carol", Password: "bad", IP: "198.51.100.1"})
	}
	_, err := f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "carol", Password: "pw-pw-pw-pw", IP: "198.51.100.1"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("fourth attempt: %v, want ErrRateLimited", err)
	}
	if _, err := f.svc.Login(ctx, NewSession(time.Hour), Credentials{Identifier: "carol", Password: "pw-pw-pw-pw", IP: "198.51.100.2"}); err != nil {
		t.Fatalf("other ip blocked: %v", err)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var registered int64
	f.hooks.AddAction(hooks.UserRegistered, func(_ context.Context, args ...any) { registered = args[0].(int64) }, hooks.DefaultPriority)

	id, err := f.svc.Register(ctx, RegisterInput{Username: " <b>newbie</b> ", Email: "new@example.com", Password: "longpassword"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if registered != id {
		t.Errorf("user_registered fired with %d, want %d", registered, id)
	}
	u, err := f.db.UserByID(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "newbie" || u.DisplayName != "newbie" || u.Role != models.RoleMember || u.Status != models.StatusActive {
		t.Errorf("registered user = %+v", u)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing email", RegisterInput{Username: "x", Password: "p"}, ErrMissingField},
		{"bad email", RegisterInput{Username: "x1", Email: "nope", Password: "p"}, ErrInvalidEmail},
		{"duplicate username", RegisterInput{Username: "newbie", Email: "other@example.com", Password: "p"}, ErrUsernameTaken},
		{"duplicate email", RegisterInput{Username: "other", Email: "new@example.com", Password: "p"}, ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Register(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Register = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLogoutRotatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testinfra.CreateUser(t, f.db, "dave", models.RoleEditor, "pw-pw-pw-pw")

	sess := NewSession(time.Hour)
	if _, err := f.svc.Login(ctx, sess, Credentials{Identifier: "dave", Password: "pw-pw-pw-pw", IP: "192.0.2.3"}); err != nil {
		t.Fatal(err)
	}
	if err := f.sessions.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}
	loggedInID := sess.ID

	if err := f.svc.Logout(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if sess.IsAuthenticated() || sess.ID == loggedInID {
		t.Errorf("session after logout = %+v", sess)
	}
	if _, err := f.sessions.Store().Get(ctx, loggedInID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("old session still stored: %v", err)
	}
	if f.hooks.DidAction(hooks.UserLogout) != 1 {
		t.Error("user_logout not fired")
	}
}

type planFeatures map[int64]bool

func (p planFeatures) HasFeature(_ context.Context, userID int64, feature string) bool {
	return feature == "api_access" && p[userID]
}

func TestAPITokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testinfra.CreateUser(t, f.db, "root", models.RoleAdmin, "pw-pw-pw-pw")
	member := testinfra.CreateUser(t, f.db, "mia", models.RoleMember, "pw-pw-pw-pw")

	if _, _, err := f.svc.IssueToken(ctx, member); !errors.Is(err, ErrAPIAccessDenied) {
		t.Fatalf("member without plan got token: %v", err)
	}
	f.svc.SetFeatureChecker(planFeatures{member.ID: true})
	tok, _, err := f.svc.IssueToken(ctx, member)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, _, err := f.svc.IssueToken(ctx, admin); err != nil {
		t.Fatalf("admin token: %v", err)
	}

	var seen *models.User
	h := f.svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == nil || seen.ID != member.ID {
		t.Fatalf("bearer user = %+v", seen)
	}

	seen = nil
	req = httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil)
	req.Header.Set("Authorization", "Bearer "+tok+"x")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != nil {
		t.Error("tampered token accepted")
	}
}

func TestIssueTokenForCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testinfra.CreateUser(t, f.db, "root", models.RoleAdmin, "pw-pw-pw-pw")
	testinfra.CreateUser(t, f.db, "mia", models.RoleMember, "pw-pw-pw-pw")

	tok, expires, err := f.svc.IssueTokenForCredentials(ctx, Credentials{Identifier: "root", Password: "pw-pw-pw-pw", IP: "10.0.0.9"})
	if err != nil || tok == "" {
		t.Fatalf("IssueTokenForCredentials: %q, %v", tok, err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expires = %v", expires)
	}

	_, _, err = f.svc.IssueTokenForCredentials(ctx, Credentials{Identifier: "mia", Password: "pw-pw-pw-pw", IP: "10.0.0.9"})
	if !errors.Is(err, ErrAPIAccessDenied) {
		t.Errorf("member without plan: %v", err)
	}

	_, _, err = f.svc.IssueTokenForCredentials(ctx, Credentials{Identifier: "root", Password: "wrong", IP: "10.0.0.9"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password: %v", err)
	}
	failed, err := f.db.CountFailedLogins(ctx, time.Now().Add(-time.Minute), "root")
	if err != nil || failed != 1 {
		t.Errorf("failed logins = %d, %v", failed, err)
	}
}

func TestMiddlewarePersistsOnlyDirtySessions(t *testing.T) {
	f := newFixture(t)
	store := f.sessions.Store()

	quiet := f.svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	quiet.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("untouched session persisted (%d)", n)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie set for an untouched session")
	}

	flashing := f.svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SessionFromContext(r.Context()).AddFlash(FlashInfo, "hello")
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	rec = httptest.NewRecorder()
	flashing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DefaultCookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	var flashes []Flash
	reader := f.svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flashes = SessionFromContext(r.Context()).PopFlashes()
	}))
	req := httptest.NewRequest(http.MethodGet, "/next", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	reader.ServeHTTP(rec, req)
	if len(flashes) != 1 || flashes[0].Message != "hello" {
		t.Errorf("flashes = %+v", flashes)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie re-sent for an existing session")
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()

	created, err := EnsureDefaultAdmin(ctx, db, "", "given-password", bcrypt.MinCost)
	if err != nil || !created {
		t.Fatalf("EnsureDefaultAdmin = %v, %v", created, err)
	}
	created, err = EnsureDefaultAdmin(ctx, db, "", "", bcrypt.MinCost)
	if err != nil || created {
		t.Fatalf("second call = %v, %v", created, err)
	}
	u, err := db.UserByUsername(ctx, DefaultAdminUsername)
	if err != nil || !u.IsAdmin() {
		t.Fatalf("admin = %+v, %v", u, err)
	}
}
