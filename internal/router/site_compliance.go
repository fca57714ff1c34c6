// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/legal"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/privacy"
)

func formInt(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(name)))
	if err != nil {
		return def
	}
	return n
}

func formBool(r *http.Request, name string) bool {
	v := r.PostFormValue(name)
	return v == "1" || v == "on" || v == "true"
}

func (h *site) firewallPage() adminPage {
	return adminPage{
		load: func(r *http.Request) (any, error) {
			ctx := r.Context()
			settings, err := h.Firewall.Settings(ctx)
			if err != nil {
				return nil, err
			}
			stats, err := h.Firewall.Stats(ctx)
			if err != nil {
				return nil, err
			}
			blocked, total, err := h.Firewall.Blocked(ctx, queryInt(r, "p", 1), 20)
			if err != nil {
				return nil, err
			}
			failed, err := h.Firewall.RecentFailedLogins(ctx, 50)
			return map[string]any{
				"Settings": settings, "Stats": stats, "Blocked": blocked,
				"TotalBlocked": total, "Failed": failed,
			}, err
		},
		actions: map[string]adminAction{
			"block": func(r *http.Request, u *models.User) (string, error) {
				ip := strings.TrimSpace(r.PostFormValue("ip"))
				d := time.Duration(formInt(r, "minutes", 0)) * time.Minute
				if d < 0 {
					d = 0
				}
				return fmt.Sprintf("IP %s blocked.", ip), h.Firewall.Block(r.Context(), u.ID, ip, r.PostFormValue("reason"), d)
			},
			"unblock": func(r *http.Request, u *models.User) (string, error) {
				ip := r.PostFormValue("ip")
				return fmt.Sprintf("IP %s unblocked.", ip), h.Firewall.Unblock(r.Context(), u.ID, ip)
			},
			"clean_expired": func(r *http.Request, _ *models.User) (string, error) {
				n, err := h.Firewall.CleanExpired(r.Context())
				return fmt.Sprintf("%d expired blocks removed.", n), err
			},
			"clear_logs": func(r *http.Request, _ *models.User) (string, error) {
				n, err := h.Firewall.ClearLogs(r.Context())
				return fmt.Sprintf("%d old login attempts removed.", n), err
			},
			"run_autoblock": func(r *http.Request, _ *models.User) (string, error) {
				n, err := h.Firewall.RunAutoBlock(r.Context())
				return fmt.Sprintf("%d IP addresses blocked.", n), err
			},
			"save_settings": func(r *http.Request, _ *models.User) (string, error) {
				st, err := h.Firewall.Settings(r.Context())
				if err != nil {
					return "", err
				}
				st.Enabled = formBool(r, "enabled")
				st.AutoBlock = formBool(r, "auto_block")
				st.BlockEmptyUA = formBool(r, "block_empty_ua")
				st.MaxAttempts = formInt(r, "max_attempts", st.MaxAttempts)
				st.LockoutMinutes = formInt(r, "lockout_minutes", st.LockoutMinutes)
				st.LogRetentionDays = formInt(r, "log_retention_days", st.LogRetentionDays)
				st.Whitelist = strings.Fields(r.PostFormValue("whitelist"))
				return "Firewall settings saved.", h.Firewall.SaveSettings(r.Context(), st)
			},
		},
	}
}

func (h *site) privacyPage() adminPage {
	return adminPage{
		load: func(r *http.Request) (any, error) {
			status := r.URL.Query().Get("status")
			filter := status
			switch status {
			case "":
				status, filter = privacy.StatusPending, privacy.StatusPending
			case "all":
				filter = ""
			}
			page := queryInt(r, "p", 1)
			list, total, err := h.Privacy.Requests(r.Context(), filter, 20, (page-1)*20)
			return map[string]any{"Requests": list, "Total": total, "Status": status}, err
		},
		actions: map[string]adminAction{
			"complete": func(r *http.Request, u *models.User) (string, error) {
				ctx := r.Context()
				req, err := h.Privacy.Request(ctx, formID(r, "id"))
				if err != nil {
					return "", err
				}
				if req.Type == privacy.TypeDeletion {
					_, err = h.Privacy.CompleteDeletion(ctx, u.ID, req.ID)
					return fmt.Sprintf("Account of %s deleted.", req.Username), err
				}
				_, err = h.Privacy.CompleteAccess(ctx, u.ID, req.ID)
				return fmt.Sprintf("Data export for %s is ready.", req.Username), err
			},
			"reject": func(r *http.Request, u *models.User) (string, error) {
				_, err := h.Privacy.Reject(r.Context(), u.ID, formID(r, "id"), strings.TrimSpace(r.PostFormValue("note")))
				return "Request rejected.", err
			},
		},
	}
}

func (h *site) cookiesPage() adminPage {
	return adminPage{
		load: func(r *http.Request) (any, error) {
			ctx := r.Context()
			settings, err := h.Consent.Settings(ctx)
			if err != nil {
				return nil, err
			}
			active, err := h.Consent.ActiveServices(ctx)
			if err != nil {
				return nil, err
			}
			enabled := make(map[string]bool, len(active))
			for _, id := range active {
				enabled[id] = true
			}
			manual, err := h.Consent.ManualCookies(ctx)
			if err != nil {
				return nil, err
			}
			scan, err := h.Consent.LastScan(ctx)
			return map[string]any{
				"Settings": settings, "Library": consent.Library(), "Active": enabled,
				"Manual": manual, "Scan": scan, "Categories": consent.Categories,
			}, err
		},
		actions: map[string]adminAction{
			"save_settings": func(r *http.Request, _ *models.User) (string, error) {
				st := consent.Settings{
					Enabled:       formBool(r, "enabled"),
					Position:      r.PostFormValue("position"),
					BannerText:    r.PostFormValue("banner_text"),
					AcceptText:    r.PostFormValue("accept_text"),
					EssentialText: r.PostFormValue("essential_text"),
					PolicyURL:     r.PostFormValue("policy_url"),
					PrimaryColor:  r.PostFormValue("primary_color"),
				}
				return "Cookie banner settings saved.", h.Consent.SaveSettings(r.Context(), st)
			},
			"save_services": func(r *http.Request, _ *models.User) (string, error) {
				ids, err := h.Consent.SetActiveServices(r.Context(), r.PostForm["services"])
				return fmt.Sprintf("%d services active.", len(ids)), err
			},
			"add_cookie": func(r *http.Request, _ *models.User) (string, error) {
				return "Cookie added.", h.Consent.AddManualCookie(r.Context(), consent.Cookie{
					Name:     r.PostFormValue("name"),
					Provider: r.PostFormValue("provider"),
					Category: r.PostFormValue("category"),
					Duration: r.PostFormValue("duration"),
				})
			},
			"delete_cookie": func(r *http.Request, _ *models.User) (string, error) {
				return "Cookie removed.", h.Consent.DeleteManualCookie(r.Context(), formInt(r, "index", -1))
			},
			"scan": func(r *http.Request, _ *models.User) (string, error) {
				res, err := h.Consent.Scan(r.Context())
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Scan finished: %d cookies found.", len(res.Cookies)), nil
			},
			"update_category": func(r *http.Request, _ *models.User) (string, error) {
				return "Category updated.", h.Consent.UpdateScanCategory(r.Context(), r.PostFormValue("name"), r.PostFormValue("category"))
			},
		},
	}
}

func (h *site) legalPage() adminPage {
	return adminPage{
		load: func(r *http.Request) (any, error) {
			d, err := h.Legal.Details(r.Context())
			return map[string]any{"Details": d}, err
		},
		actions: map[string]adminAction{
			"save_details": func(r *http.Request, _ *models.User) (string, error) {
				return "Legal details saved.", h.Legal.SaveDetails(r.Context(), legal.Details{
					Company:  r.PostFormValue("company"),
					Address:  r.PostFormValue("address"),
					Email:    r.PostFormValue("email"),
					Phone:    r.PostFormValue("phone"),
					Owner:    r.PostFormValue("owner"),
					Registry: r.PostFormValue("registry"),
					VATID:    r.PostFormValue("vat_id"),
				})
			},
			"generate": func(r *http.Request, u *models.User) (string, error) {
				out, err := h.Legal.Generate(r.Context(), u.ID, legal.Options{
					Imprint: formBool(r, "imprint"),
					Privacy: formBool(r, "privacy"),
					Cookies: formBool(r, "cookies"),
				})
				if err != nil {
					return "", err
				}
				titles := make([]string, len(out))
				for i, g := range out {
					titles[i] = g.Title
				}
				if len(titles) == 0 {
					return "No pages selected.", nil
				}
				return "Generated: " + strings.Join(titles, ", ") + ".", nil
			},
		},
	}
}
