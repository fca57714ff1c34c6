// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package consent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/testinfra"
	"github.com/tomtom215/inkwell/internal/validation"
)

func TestLibraryIsValid(t *testing.T) {
	lib := Library()
	if len(lib) == 0 {
		t.Fatal("library is empty")
	}
	seen := map[string]bool{}
	for _, svc := range lib {
		if svc.ID == "" || svc.Name == "" || len(svc.Cookies) == 0 {
			t.Errorf("incomplete service %+v", svc)
		}
		if seen[svc.ID] {
			t.Errorf("duplicate service id %s", svc.ID)
		}
		seen[svc.ID] = true
		found := false
		for _, c := range Categories {
			found = found || c == svc.Category
		}
		if !found {
			t.Errorf("service %s has unknown category %q", svc.ID, svc.Category)
		}
	}
}

func TestSettings(t *testing.T) {
	s := New(testinfra.NewDB(t), nil)
	ctx := context.Background()

	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(DefaultSettings(), st); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}

	st.PrimaryColor = "blue"
	var verr *validation.RequestValidationError
	if err := s.SaveSettings(ctx, st); !errors.As(err, &verr) {
		t.Errorf("SaveSettings(bad color) = %v, want validation error", err)
	}

	st = DefaultSettings()
	st.Enabled = true
	st.BannerText = "<b>Cookies</b> ahead"
	st.Position = "top"
	if err := s.SaveSettings(ctx, st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, _ := s.Settings(ctx)
	if !got.Enabled || got.Position != "top" || got.BannerText != "Cookies ahead" {
		t.Errorf("saved settings = %+v", got)
	}
}

func TestActiveServicesForceEssentials(t *testing.T) {
	s := New(testinfra.NewDB(t), nil)
	ctx := context.Background()

	active, err := s.ActiveServices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"site_session", "cloudflare", "recaptcha", "stripe"}
	if diff := cmp.Diff(want, active); diff != "" {
		t.Errorf("default services (-want +got):\n%s", diff)
	}

	saved, err := s.SetActiveServices(ctx, []string{"google_analytics", "no_such_service"})
	if err != nil {
		t.Fatal(err)
	}
	want = []string{"site_session", "cloudflare", "recaptcha", "stripe", "google_analytics"}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Errorf("saved services (-want +got):\n%s", diff)
	}
	active, _ = s.ActiveServices(ctx)
	if diff := cmp.Diff(want, active); diff != "" {
		t.Errorf("reloaded services (-want +got):\n%s", diff)
	}
}

func TestManualCookies(t *testing.T) {
	s := New(testinfra.NewDB(t), nil)
	ctx := context.Background()

	if err := s.AddManualCookie(ctx, Cookie{Name: "  "}); !errors.Is(err, ErrCookieName) {
		t.Errorf("AddManualCookie(empty) = %v", err)
	}
	if err := s.AddManualCookie(ctx, Cookie{Name: "x", Category: "tasty"}); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("AddManualCookie(bad category) = %v", err)
	}
	if err := s.AddManualCookie(ctx, Cookie{Name: "lang", Provider: "Site owner", Duration: "1 year"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddManualCookie(ctx, Cookie{Name: "ab_test", Category: CategoryAnalytics}); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ManualCookies(ctx)
	if len(list) != 2 || list[0].Category != CategoryEssential || list[0].Type != "manual" {
		t.Fatalf("manual list = %+v", list)
	}

	if err := s.DeleteManualCookie(ctx, 5); !errors.Is(err, ErrCookieNotFound) {
		t.Errorf("DeleteManualCookie(5) = %v", err)
	}
	if err := s.DeleteManualCookie(ctx, 0); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ManualCookies(ctx)
	if len(list) != 1 || list[0].Name != "ab_test" {
		t.Errorf("after delete = %+v", list)
	}
}

func TestScanAndBanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "inkwell_session", Value: "abc"})
		_, _ = w.Write([]byte(`<html><head>
			<script async src="https://www.googletagmanager.com/gtag/js?id=G-1"></script>
			</head><body><iframe src="https://www.youtube.com/embed/xyz"></iframe></body></html>`))
	}))
	defer srv.Close()

	s := New(testinfra.NewDB(t), NewScanner(srv.URL, srv.Client()))
	ctx := context.Background()

	if res, err := s.LastScan(ctx); err != nil || res != nil {
		t.Fatalf("LastScan before scan = %+v, %v", res, err)
	}
	res, err := s.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var names []string
	for _, c := range res.Cookies {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"VISITOR_INFO1_LIVE*", "_gtm*", "inkwell_session"}, names); diff != "" {
		t.Errorf("scanned cookies (-want +got):\n%s", diff)
	}
	if res.ScannedAt.IsZero() || res.URL != srv.URL {
		t.Errorf("scan result = %+v", res)
	}

	if err := s.UpdateScanCategory(ctx, "VISITOR_INFO1_LIVE*", CategoryMarketing); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateScanCategory(ctx, "missing", CategoryMarketing); !errors.Is(err, ErrCookieNotFound) {
		t.Errorf("UpdateScanCategory(missing) = %v", err)
	}
	if err := s.AddManualCookie(ctx, Cookie{Name: "inkwell_session", Provider: "Inkwell", Duration: "session"}); err != nil {
		t.Fatal(err)
	}

	b, err := s.Banner(ctx)
	if err != nil {
		t.Fatalf("Banner: %v", err)
	}
	var ids []string
	byID := map[string]BannerCategory{}
	for _, c := range b.Categories {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}
	if diff := cmp.Diff([]string{CategoryEssential, CategoryAnalytics, CategoryMarketing}, ids); diff != "" {
		t.Errorf("banner categories (-want +got):\n%s", diff)
	}
	ess := byID[CategoryEssential]
	if !ess.Required || len(ess.Services) != 4 || len(ess.Cookies) != 1 || ess.Cookies[0].Provider != "Inkwell" {
		t.Errorf("essential category = %+v", ess)
	}
	if mk := byID[CategoryMarketing]; len(mk.Cookies) != 1 || mk.Required {
		t.Errorf("marketing category = %+v", mk)
	}
}

func TestScanFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(testinfra.NewDB(t), NewScanner(srv.URL, srv.Client()))
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatal("Scan succeeded against a failing server")
	}
	if res, _ := s.LastScan(context.Background()); res != nil {
		t.Errorf("failed scan stored %+v", res)
	}
	if _, err := New(testinfra.NewDB(t), nil).Scan(context.Background()); err == nil {
		t.Error("Scan without a scanner succeeded")
	}
}
