// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/firewall"
	"github.com/tomtom215/inkwell/internal/member"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/privacy"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

type noAccounts struct{ deleted []int64 }

func (a *noAccounts) DeleteUser(_ context.Context, _, id int64, _ bool) error {
	a.deleted = append(a.deleted, id)
	return nil
}

func TestMemberPrivacyRequests(t *testing.T) {
	var svc *privacy.Service
	accounts := &noAccounts{}
	f := newSiteFixture(t, func(s *Site) {
		s.Member = member.New(s.DB, nil, bcrypt.MinCost)
		svc = privacy.New(s.DB, s.Member, accounts, s.Hooks)
		s.Privacy = svc
	})
	ctx := context.Background()
	u := testinfra.CreateUser(t, f.db, "jane", models.RoleMember, "pw-12345678")
	sess := auth.NewSession(time.Hour)

	form := url.Values{"note": {"please"}, security.NonceFieldName: {f.token(t, sess, "member_data")}}
	assertRedirect(t, f.do(http.MethodPost, "/member/data", form, sess, u), "/member/data")
	if fl := flashes(sess); len(fl) != 1 || fl[0].Type != "success" {
		t.Fatalf("submit flashes = %+v", fl)
	}
	form.Set(security.NonceFieldName, f.token(t, sess, "member_data"))
	f.do(http.MethodPost, "/member/data", form, sess, u)
	if fl := flashes(sess); len(fl) != 1 || fl[0].Message != "A request of this type is already pending." {
		t.Errorf("duplicate flashes = %+v", fl)
	}

	if rec := f.do(http.MethodGet, "/member/data", nil, sess, u); rec.Code != http.StatusOK {
		t.Fatalf("data page code = %d", rec.Code)
	}
	data := f.render.last(t).data.(*MemberData).Data.(map[string]any)
	reqs, _ := data["Requests"].([]*privacy.Request)
	if len(reqs) != 1 || reqs[0].Type != privacy.TypeAccess || reqs[0].Note != "please" {
		t.Fatalf("requests = %+v", data["Requests"])
	}

	cancel := url.Values{
		"action": {"cancel_request"}, "id": {"999"},
		security.NonceFieldName: {f.token(t, sess, "member_data")},
	}
	f.do(http.MethodPost, "/member/data", cancel, sess, u)
	if fl := flashes(sess); len(fl) != 1 || fl[0].Type != "error" {
		t.Errorf("cancel of unknown request flashes = %+v", fl)
	}

	del := url.Values{security.NonceFieldName: {f.token(t, sess, "member_delete-account")}}
	assertRedirect(t, f.do(http.MethodPost, "/member/delete-account", del, sess, u), "/")
	list, total, err := svc.Requests(ctx, privacy.StatusPending, 10, 0)
	if err != nil || total != 2 {
		t.Fatalf("pending = %d, %v", total, err)
	}
	if list[0].Type != privacy.TypeDeletion {
		t.Errorf("newest request = %+v, want deletion", list[0])
	}
	if at, _, _ := svc.Requests(ctx, "", 10, 0); len(at) != 2 {
		t.Errorf("all requests = %d", len(at))
	}
}

func TestAdminPrivacyComplete(t *testing.T) {
	var svc *privacy.Service
	f := newSiteFixture(t, func(s *Site) {
		s.Member = member.New(s.DB, nil, bcrypt.MinCost)
		svc = privacy.New(s.DB, s.Member, &noAccounts{}, s.Hooks)
		s.Privacy = svc
	})
	ctx := context.Background()
	admin := testinfra.CreateUser(t, f.db, "root", models.RoleAdmin, "pw-12345678")
	u := testinfra.CreateUser(t, f.db, "jane", models.RoleMember, "pw-12345678")
	req, err := svc.Submit(ctx, u.ID, privacy.TypeAccess, "")
	if err != nil {
		t.Fatal(err)
	}
	sess := auth.NewSession(time.Hour)

	form := url.Values{
		"action": {"complete"}, "id": {strconv.FormatInt(req.ID, 10)},
		security.NonceFieldName: {f.token(t, sess, "admin_privacy")},
	}
	assertRedirect(t, f.do(http.MethodPost, "/admin/privacy", form, sess, admin), "/admin/privacy")
	if fl := flashes(sess); len(fl) != 1 || fl[0].Type != "success" {
		t.Fatalf("complete flashes = %+v", fl)
	}
	done, err := svc.Request(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != privacy.StatusCompleted || done.ProcessedBy == nil || *done.ProcessedBy != admin.ID {
		t.Errorf("request = %+v", done)
	}
	if export, err := done.Export(); err != nil || export == nil || export.Account.Username != "jane" {
		t.Errorf("export = %+v, %v", export, err)
	}

	f.do(http.MethodGet, "/admin/privacy?status=all", nil, sess, admin)
	data := f.render.last(t).data.(*AdminData).Data.(map[string]any)
	if data["Total"].(int64) != 1 || data["Status"] != "all" {
		t.Errorf("list data = %+v", data)
	}
}

func TestAdminFirewallBlock(t *testing.T) {
	var fw *firewall.Service
	f := newSiteFixture(t, func(s *Site) {
		fw = firewall.New(s.DB)
		s.Firewall = fw
	})
	ctx := context.Background()
	admin := testinfra.CreateUser(t, f.db, "root", models.RoleAdmin, "pw-12345678")
	sess := auth.NewSession(time.Hour)

	form := url.Values{
		"action": {"block"}, "ip": {"203.0.113.7"}, "reason": {"spam"}, "minutes": {"0"},
		security.NonceFieldName: {f.token(t, sess, "admin_firewall")},
	}
	assertRedirect(t, f.do(http.MethodPost, "/admin/firewall", form, sess, admin), "/admin/firewall")
	if fl := flashes(sess); len(fl) != 1 || fl[0].Type != "success" {
		t.Fatalf("block flashes = %+v", fl)
	}
	if blocked, err := fw.IsBlocked(ctx, "203.0.113.7"); err != nil || !blocked {
		t.Errorf("IsBlocked = %v, %v", blocked, err)
	}

	form.Set("ip", "not-an-ip")
	form.Set(security.NonceFieldName, f.token(t, sess, "admin_firewall"))
	f.do(http.MethodPost, "/admin/firewall", form, sess, admin)
	if fl := flashes(sess); len(fl) != 1 || fl[0].Type != "error" {
		t.Errorf("invalid ip flashes = %+v", fl)
	}

	settings := url.Values{
		"action": {"save_settings"}, "enabled": {"1"}, "max_attempts": {"3"}, "lockout_minutes": {"15"},
		"log_retention_days": {"7"}, "whitelist": {"10.0.0.0/8\n192.0.2.1"},
		security.NonceFieldName: {f.token(t, sess, "admin_firewall")},
	}
	f.do(http.MethodPost, "/admin/firewall", settings, sess, admin)
	st, err := fw.Settings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Enabled || st.AutoBlock || st.MaxAttempts != 3 || len(st.Whitelist) != 2 {
		t.Errorf("settings = %+v", st)
	}

	if rec := f.do(http.MethodGet, "/admin/firewall", nil, sess, admin); rec.Code != http.StatusOK {
		t.Fatalf("firewall page code = %d", rec.Code)
	}
	data := f.render.last(t).data.(*AdminData).Data.(map[string]any)
	if data["TotalBlocked"].(int64) != 1 {
		t.Errorf("page data = %+v", data)
	}
}

func TestCookieConsentAPI(t *testing.T) {
	f := newSiteFixture(t, func(s *Site) {
		s.Consent = consent.New(s.DB, nil)
	})
	rec := f.do(http.MethodGet, "/api/v1/cookie-consent", nil, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Status string         `json:"status"`
		Data   consent.Banner `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "success" || len(resp.Data.Categories) == 0 || resp.Data.Categories[0].ID != consent.CategoryEssential {
		t.Errorf("banner = %s", rec.Body.String())
	}
}
