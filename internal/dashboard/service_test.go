// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

func newService(t *testing.T, opts Options) (*Service, *database.DB) {
	t.Helper()
	db := testinfra.NewDB(t)
	s := New(db, opts)
	return s, db
}

func exec(t *testing.T, db *database.DB, q string, args ...any) {
	t.Helper()
	if _, err := db.Conn().ExecContext(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func TestUserAndPageStats(t *testing.T) {
	s, db := newService(t, Options{})
	ctx := context.Background()
	testinfra.CreateUser(t, db, "admin", models.RoleAdmin, "password123")
	testinfra.CreateUser(t, db, "m1", models.RoleMember, "password123")
	old := testinfra.CreateUser(t, db, "m2", models.RoleMember, "password123")
	exec(t, db, `UPDATE users SET status = 'inactive', created_at = ? WHERE id = ?`, time.Now().UTC().AddDate(0, -3, 0), old.ID)

	u, err := s.UserStats(ctx)
	if err != nil {
		t.Fatalf("UserStats: %v", err)
	}
	if u.Total != 3 || u.Active != 2 || u.Inactive != 1 || u.NewToday != 2 || u.NewThisMonth != 2 {
		t.Errorf("user stats = %+v", u)
	}
	if diff := cmp.Diff(map[string]int64{"admin": 1, "member": 2}, u.Roles); diff != "" {
		t.Errorf("roles (-want +got):\n%s", diff)
	}
	if u.GrowthRate != 66.67 {
		t.Errorf("growth = %v", u.GrowthRate)
	}

	for i, st := range []string{"published", "published", "draft", "private", "trash"} {
		exec(t, db, `INSERT INTO pages (slug, title, status) VALUES (?, ?, ?)`, "p"+string(rune('a'+i)), "P", st)
	}
	exec(t, db, `INSERT INTO posts (title, slug, status, author_id) VALUES ('x', 'x', 'published', 1)`)
	p, err := s.PageStats(ctx)
	if err != nil {
		t.Fatalf("PageStats: %v", err)
	}
	if diff := cmp.Diff(PageStats{Total: 4, Published: 2, Drafts: 1, Private: 1, Posts: 1}, p); diff != "" {
		t.Errorf("page stats (-want +got):\n%s", diff)
	}
}

func TestMediaStats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]int{"a.png": 10, "b/c.pdf": 20, "b/d.zip": 5, "e.bin": 1, ".media_meta.json": 100}
	for name, size := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, _ := newService(t, Options{UploadsDir: dir})
	m, err := s.MediaStats()
	if err != nil {
		t.Fatalf("MediaStats: %v", err)
	}
	if m.TotalFiles != 4 || m.TotalSize != 36 || m.TotalSizeFormatted != "36 B" {
		t.Errorf("media = %+v", m)
	}
	if m.Types["images"] != 1 || m.Types["documents"] != 1 || m.Types["archives"] != 1 || m.Types["other"] != 1 {
		t.Errorf("types = %v", m.Types)
	}

	missing, _ := newService(t, Options{UploadsDir: filepath.Join(dir, "nope")})
	if m, err := missing.MediaStats(); err != nil || m.TotalFiles != 0 {
		t.Errorf("missing dir = %+v, %v", m, err)
	}
}

func TestSessionAndSecurityStats(t *testing.T) {
	s, db := newService(t, Options{SiteURL: "http://example.com", Debug: true})
	ctx := context.Background()
	now := time.Now().UTC()
	recs := []database.SessionRecord{
		{ID: "a", UserID: 1, UserAgent: "Mozilla/5.0 Chrome/120", CreatedAt: now.Add(-10 * time.Minute), LastActivity: now, ExpiresAt: now.Add(time.Hour)},
		{ID: "b", UserID: 2, UserAgent: "Mozilla/5.0 Firefox/121", CreatedAt: now.Add(-20 * time.Minute), LastActivity: now, ExpiresAt: now.Add(time.Hour)},
		{ID: "c", UserID: 3, UserAgent: "curl", CreatedAt: now.Add(-48 * time.Hour), LastActivity: now.Add(-47 * time.Hour), ExpiresAt: now.Add(-46 * time.Hour)},
	}
	for _, r := range recs {
		if err := db.RecordSession(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	st, err := s.SessionStats(ctx)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if st.Active != 2 || st.Total != 3 {
		t.Errorf("sessions = %+v", st)
	}
	if st.Browsers["Chrome"] != 1 || st.Browsers["Firefox"] != 1 {
		t.Errorf("browsers = %v", st.Browsers)
	}

	for i := 0; i < 11; i++ {
		if err := db.RecordLoginAttempt(ctx, "x", "10.0.0.9", "ua", false); err != nil {
			t.Fatal(err)
		}
	}
	_ = db.RecordLoginAttempt(ctx, "x", "10.0.0.9", "ua", true)
	_ = db.BlockIP(ctx, "10.0.0.9", "brute force", time.Time{})

	sec, err := s.SecurityStats(ctx)
	if err != nil {
		t.Fatalf("SecurityStats: %v", err)
	}
	want := SecurityStats{FailedLogins24h: 11, SuccessfulLogins24h: 1, BlockedIPs: 1, Score: 55, Status: "critical"}
	if diff := cmp.Diff(want, sec); diff != "" {
		t.Errorf("security (-want +got):\n%s", diff)
	}
}

func TestAllStatsAndFeed(t *testing.T) {
	s, db := newService(t, Options{Version: "1.2.3", DiskPath: t.TempDir()})
	ctx := context.Background()
	admin := testinfra.CreateUser(t, db, "admin", models.RoleAdmin, "password123")
	uid := admin.ID
	for _, action := range []string{"login", "page_created", "logout"} {
		if err := db.LogActivity(ctx, models.Activity{UserID: &uid, Action: action}); err != nil {
			t.Fatal(err)
		}
	}

	st := s.AllStats(ctx)
	if st.Users.Total != 1 || st.System.CMSVersion != "1.2.3" || st.System.GoVersion == "" {
		t.Errorf("stats = %+v", st)
	}
	if st.System.DuckDBVersion == "" || st.System.DuckDBVersion == "unknown" {
		t.Errorf("duckdb version = %q", st.System.DuckDBVersion)
	}
	if st.Performance.Goroutines == 0 || st.Performance.DatabaseSize != "0 B" {
		t.Errorf("performance = %+v", st.Performance)
	}

	feed, err := s.ActivityFeed(ctx, 2)
	if err != nil {
		t.Fatalf("ActivityFeed: %v", err)
	}
	if len(feed) != 2 || feed[0].Username != "admin" {
		t.Errorf("feed = %+v", feed)
	}
}
