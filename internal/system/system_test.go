// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package system

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	root := t.TempDir()
	p := Paths{
		Uploads: filepath.Join(root, "uploads"),
		Cache:   filepath.Join(root, "cache"),
		Themes:  filepath.Join(root, "themes"),
		Plugins: filepath.Join(root, "plugins"),
		Backups: filepath.Join(root, "backups"),
		Public:  filepath.Join(root, "public"),
		LogFile: filepath.Join(root, "logs", "inkwell.log"),
	}
	for _, d := range []string{p.Uploads, p.Cache, p.Themes, p.Plugins, p.Backups, p.Public, filepath.Dir(p.LogFile)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func exec(t *testing.T, db *database.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Conn().ExecContext(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

type countingCache struct{ cleared int }

func (c *countingCache) Clear() { c.cleared++ }

func TestCheckDatabaseTablesAndStatistics(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	s := New(db, Options{Paths: testPaths(t)})
	testinfra.CreateUser(t, db, "alice", models.RoleMember, "password123")
	exec(t, db, `INSERT INTO pages (slug, title, status) VALUES ('about', 'About', 'published')`)
	if err := db.UpdateOptionJSON(ctx, "active_plugins", []string{"seo", "forms"}); err != nil {
		t.Fatal(err)
	}

	tables := s.CheckDatabaseTables(ctx)
	if len(tables) != len(database.Tables) {
		t.Fatalf("got %d tables, want %d", len(tables), len(database.Tables))
	}
	for _, ts := range tables {
		if ts.Status != "OK" || !ts.Exists {
			t.Errorf("table %s: %+v", ts.Name, ts)
		}
		if ts.Name == "users" && ts.Rows != 1 {
			t.Errorf("users rows = %d", ts.Rows)
		}
	}

	st, err := s.CMSStatistics(ctx)
	if err != nil {
		t.Fatalf("CMSStatistics: %v", err)
	}
	want := CMSStatistics{TotalUsers: 1, ActiveUsers: 1, TotalPages: 1, ActivePlugins: 2}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("statistics (-want +got):\n%s", diff)
	}

	dbs := s.DatabaseStatus(ctx)
	if !dbs.Connected || dbs.Tables != len(database.Tables) || dbs.Version == "" {
		t.Errorf("database status = %+v", dbs)
	}
}

func TestClearCache(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	paths := testPaths(t)
	s := New(db, Options{Paths: paths})
	c := &countingCache{}
	s.RegisterCache("pages", c)

	exec(t, db, `INSERT INTO cache (cache_key, cache_value) VALUES ('a', '1'), ('b', '2')`)
	if err := os.WriteFile(filepath.Join(paths.Cache, "page.html"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := s.ClearCache(ctx)
	if err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if n != 3 {
		t.Errorf("cleared %d, want 3", n)
	}
	if c.cleared != 1 {
		t.Errorf("registered cache cleared %d times", c.cleared)
	}
	if rows, _ := db.TableRowCount(ctx, "cache"); rows != 0 {
		t.Errorf("cache rows = %d", rows)
	}
}

func TestClearOldSessionsAndFailedLogins(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	s := New(db, Options{})
	now := time.Now().UTC()

	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
		rec := database.SessionRecord{ID: string(rune('a' + i)), UserID: 1, CreatedAt: now, LastActivity: now, ExpiresAt: exp}
		if err := db.RecordSession(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.ClearOldSessions(ctx)
	if err != nil || n != 1 {
		t.Errorf("ClearOldSessions = %d, %v", n, err)
	}

	exec(t, db, `INSERT INTO failed_logins (username, ip_address, attempted_at) VALUES ('x', '1.1.1.1', ?), ('y', '1.1.1.1', ?)`,
		now.Add(-48*time.Hour), now)
	n, err = s.ClearOldFailedLogins(ctx)
	if err != nil || n != 1 {
		t.Errorf("ClearOldFailedLogins = %d, %v", n, err)
	}
}

func TestRepairAndOptimizeTables(t *testing.T) {
	db := testinfra.NewDB(t)
	s := New(db, Options{})
	ctx := context.Background()

	for name, fn := range map[string]func(context.Context) ([]TableResult, error){
		"repair":   s.RepairTables,
		"optimize": s.OptimizeTables,
	} {
		res, err := fn(ctx)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for _, r := range res {
			if r.Status != "OK" {
				t.Errorf("%s %s: %+v", name, r.Table, r)
			}
		}
	}
}

func TestSecurityStatus(t *testing.T) {
	db := testinfra.NewDB(t)
	s := New(db, Options{SiteURL: "http://localhost", Debug: true, SessionTTL: time.Hour})
	if err := db.BlockIP(context.Background(), "10.0.0.1", "abuse", time.Time{}); err != nil {
		t.Fatal(err)
	}
	got := s.SecurityStatus(context.Background())
	want := SecurityStatus{
		DebugMode:      "enabled (not recommended)",
		HTTPS:          "disabled (not recommended)",
		CookieSecure:   "disabled (not recommended)",
		CookieHTTPOnly: "enabled",
		SameSite:       "Lax",
		SessionTTL:     "1h0m0s",
		BlockedIPs:     1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("security status (-want +got):\n%s", diff)
	}
}

func TestDirectorySize(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, n := range map[string]int{"a": 10, "sub/b": 30} {
		if err := os.WriteFile(filepath.Join(dir, name), make([]byte, n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := DirectorySize(dir); got != 40 {
		t.Errorf("DirectorySize = %d, want 40", got)
	}
	if got := DirectorySize(filepath.Join(dir, "missing")); got != 0 {
		t.Errorf("missing dir size = %d", got)
	}
}

func TestErrorLogs(t *testing.T) {
	paths := testPaths(t)
	s := New(testinfra.NewDB(t), Options{Paths: paths})

	lines := []string{
		`{"level":"info","time":"2026-01-01T10:00:00Z","message":"started"}`,
		`{"level":"error","time":"2026-01-01T10:01:00Z","error":"disk full","message":"Backup failed"}`,
		`[2026-01-01 10:02:00] WARNING: cache miss storm`,
		`something odd`,
		`{"level":"warn","time":"2026-01-01T10:03:00Z","message":"slow query"}`,
	}
	if err := os.WriteFile(paths.LogFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.ErrorLogs(3)
	if err != nil {
		t.Fatalf("ErrorLogs: %v", err)
	}
	want := []LogEntry{
		{Timestamp: "2026-01-01T10:03:00Z", Type: "WARN", Message: "slow query"},
		{Type: "UNKNOWN", Message: "something odd"},
		{Timestamp: "2026-01-01 10:02:00", Type: "WARNING", Message: "cache miss storm"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries (-want +got):\n%s", diff)
	}

	if err := s.ClearErrorLogs(); err != nil {
		t.Fatalf("ClearErrorLogs: %v", err)
	}
	if got, _ := s.ErrorLogs(10); len(got) != 0 {
		t.Errorf("entries after clear = %v", got)
	}

	s = New(testinfra.NewDB(t), Options{})
	if _, err := s.ErrorLogs(10); !errors.Is(err, ErrNoLogFile) {
		t.Errorf("err = %v, want ErrNoLogFile", err)
	}
}

func TestFullStatus(t *testing.T) {
	db := testinfra.NewDB(t)
	paths := testPaths(t)
	testinfra.CreateUser(t, db, "admin", models.RoleAdmin, "password123")
	st := NewStatus(db, Options{Paths: paths, SiteURL: "https://example.com", CookieSecure: true})

	full := st.FullStatus(context.Background())
	for _, name := range []string{"database", "filesystem", "runtime", "security", "performance"} {
		if _, ok := full[name]; !ok {
			t.Errorf("missing section %s", name)
		}
	}
	if c := full["database"]["tables"]; c.Status != LevelOK {
		t.Errorf("tables check = %+v", c)
	}
	if c := full["filesystem"]["uploads"]; c.Status != LevelOK {
		t.Errorf("uploads check = %+v", c)
	}
	if c := full["security"]["https"]; c.Status != LevelOK {
		t.Errorf("https check = %+v", c)
	}
	if c := full["security"]["default_admin"]; c.Status != LevelWarning || c.Action != ActionRenameAdmin {
		t.Errorf("default admin check = %+v", c)
	}
	if got := full["security"].Worst(); got != LevelWarning {
		t.Errorf("security worst = %s", got)
	}

	if err := os.RemoveAll(paths.Plugins); err != nil {
		t.Fatal(err)
	}
	fs := st.CheckFilesystem(context.Background())
	if c := fs["plugins"]; c.Status != LevelError || c.Action != ActionCreateDirectory {
		t.Errorf("missing plugins check = %+v", c)
	}
}

func TestCleanupOrphans(t *testing.T) {
	db := testinfra.NewDB(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "alice", models.RoleMember, "password123")
	st := NewStatus(db, Options{})

	if err := db.SetUserMeta(ctx, u.ID, "bio", "hi"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUserMeta(ctx, u.ID+100, "bio", "ghost"); err != nil {
		t.Fatal(err)
	}
	exec(t, db, `INSERT INTO page_revisions (page_id, title) VALUES (999, 'gone')`)
	exec(t, db, `INSERT INTO login_attempts (username, ip_address, attempted_at) VALUES ('old', '1.1.1.1', ?)`,
		time.Now().UTC().AddDate(0, 0, -100))

	res, err := st.CleanupOrphans(ctx)
	if err != nil {
		t.Fatalf("CleanupOrphans: %v", err)
	}
	if res.Count != 3 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, ok, _ := db.UserMeta(ctx, u.ID, "bio"); !ok {
		t.Error("live user meta was removed")
	}
}

func TestCleanupTempFilesAndPermissions(t *testing.T) {
	db := testinfra.NewDB(t)
	paths := testPaths(t)
	st := NewStatus(db, Options{Paths: paths})

	old := filepath.Join(paths.Cache, "old.tmp")
	fresh := filepath.Join(paths.Cache, "fresh.tmp")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("data"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	res, err := st.CleanupTempFiles(context.Background(), 0)
	if err != nil {
		t.Fatalf("CleanupTempFiles: %v", err)
	}
	if res.Count != 1 {
		t.Errorf("deleted %d files, want 1", res.Count)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}

	res, err = st.FixPermissions()
	if err != nil {
		t.Fatalf("FixPermissions: %v", err)
	}
	if res.Count < 1 {
		t.Errorf("corrected %d, want at least 1", res.Count)
	}
	fi, err := os.Stat(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o644 {
		t.Errorf("mode = %o, want 644", fi.Mode().Perm())
	}
}

func TestRepairDatabaseAndOverhead(t *testing.T) {
	st := NewStatus(testinfra.NewDB(t), Options{})
	ctx := context.Background()
	if _, err := st.RepairDatabase(ctx); err != nil {
		t.Fatalf("RepairDatabase: %v", err)
	}
	if _, err := st.CleanupOverhead(ctx); err != nil {
		t.Fatalf("CleanupOverhead: %v", err)
	}
}
