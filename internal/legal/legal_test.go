// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package legal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
	"github.com/tomtom215/inkwell/internal/validation"
)

func newService(t *testing.T) (*Service, *content.Manager, *consent.Service) {
	t.Helper()
	db := testinfra.NewDB(t)
	pages := content.NewManager(db, hooks.New())
	cookies := consent.New(db, nil)
	return New(db, pages, cookies, "https://example.com"), pages, cookies
}

var acme = Details{
	Company:  "Acme <b>GmbH</b>",
	Address:  "Main Street 1, Springfield",
	Email:    "legal@acme.example",
	Owner:    "Jane Roe",
	Registry: "HRB 12345",
	VATID:    "DE123456789",
}

func TestSaveDetails(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	bad := acme
	bad.Email = "not-an-email"
	var verr *validation.RequestValidationError
	if err := s.SaveDetails(ctx, bad); !errors.As(err, &verr) {
		t.Errorf("SaveDetails(bad email) = %v, want validation error", err)
	}
	if err := s.SaveDetails(ctx, acme); err != nil {
		t.Fatalf("SaveDetails: %v", err)
	}
	d, err := s.Details(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Company != "Acme GmbH" || d.VATID != "DE123456789" {
		t.Errorf("details = %+v", d)
	}
}

func TestGenerateRequiresDetails(t *testing.T) {
	s, _, _ := newService(t)
	if _, err := s.Generate(context.Background(), 1, Options{Imprint: true}); !errors.Is(err, ErrDetailsMissing) {
		t.Errorf("Generate without details = %v", err)
	}
}

func TestGenerateCreatesThenUpdates(t *testing.T) {
	s, pages, cookies := newService(t)
	ctx := context.Background()
	if err := s.SaveDetails(ctx, acme); err != nil {
		t.Fatal(err)
	}
	if err := cookies.AddManualCookie(ctx, consent.Cookie{Name: "lang", Provider: "Acme", Duration: "1 year"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Generate(ctx, 1, Options{Imprint: true, Privacy: true, Cookies: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("generated %d pages, want 3", len(got))
	}
	for i, slug := range []string{SlugImprint, SlugPrivacy, SlugCookies} {
		if got[i].Slug != slug || !got[i].Created {
			t.Errorf("page %d = %+v, want new %s", i, got[i], slug)
		}
	}

	imprint, err := pages.PageBySlug(ctx, SlugImprint)
	if err != nil {
		t.Fatal(err)
	}
	if imprint.Status != models.ContentPublished || imprint.Format != models.FormatHTML {
		t.Errorf("imprint = %+v", imprint)
	}
	for _, want := range []string{"Acme GmbH", "HRB 12345", "DE123456789", "mailto:legal@acme.example", "Jane Roe"} {
		if !strings.Contains(imprint.Content, want) {
			t.Errorf("imprint lacks %q:\n%s", want, imprint.Content)
		}
	}
	policy, _ := pages.PageBySlug(ctx, SlugCookies)
	if !strings.Contains(policy.Content, "lang") || !strings.Contains(policy.Content, "Cloudflare") {
		t.Errorf("cookie policy lacks banner contents:\n%s", policy.Content)
	}

	d := acme
	d.Phone = "0123 456789"
	if err := s.SaveDetails(ctx, d); err != nil {
		t.Fatal(err)
	}
	again, err := s.Generate(ctx, 1, Options{Imprint: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0].Created || again[0].PageID != imprint.ID {
		t.Errorf("regenerate = %+v, want update of page %d", again, imprint.ID)
	}
	updated, _ := pages.PageBySlug(ctx, SlugImprint)
	if !strings.Contains(updated.Content, "0123 456789") {
		t.Errorf("updated imprint lacks phone:\n%s", updated.Content)
	}
	revs, err := pages.Revisions(ctx, imprint.ID)
	if err != nil || len(revs) == 0 {
		t.Errorf("revisions = %d, %v; want the previous text kept", len(revs), err)
	}
}
