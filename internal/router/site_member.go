// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/member"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/privacy"
)

// MemberData is the template data of every member area page.
type MemberData struct {
	User    *models.User
	Page    string
	Plugins []plugin.MemberPage
	Data    any
}

type memberPage struct {
	load func(ctx context.Context, u *models.User) (any, error)
	// save handles a POST and returns the success message.
	save func(r *http.Request, u *models.User) (string, error)
}

// memberErrors are safe to show to the member verbatim.
var memberErrors = []error{
	member.ErrPasswordFields, member.ErrPasswordMismatch, member.ErrPasswordShort,
	member.ErrWrongPassword, member.ErrInvalidEmail, member.ErrEmailTaken,
	privacy.ErrDuplicateRequest, privacy.ErrRequestNotFound, privacy.ErrNotPending,
}

func (h *site) buildMemberPages() map[string]memberPage {
	m := h.Member
	if m == nil {
		return nil
	}
	return map[string]memberPage{
		"profile": {
			load: func(ctx context.Context, u *models.User) (any, error) { return m.UserMeta(ctx, u.ID) },
			save: func(r *http.Request, u *models.User) (string, error) {
				in := member.ProfileUpdate{Email: strings.TrimSpace(r.PostFormValue("email")), Fields: map[string]string{}}
				for _, f := range member.ProfileFields {
					if vals, ok := r.PostForm[f]; ok && len(vals) > 0 {
						in.Fields[f] = vals[0]
					}
				}
				if in.Email == u.Email {
					in.Email = ""
				}
				return "Profile updated.", m.UpdateProfile(r.Context(), u.ID, in)
			},
		},
		"security": {
			load: func(ctx context.Context, u *models.User) (any, error) { return m.SecurityData(ctx, u.ID) },
			save: func(r *http.Request, u *models.User) (string, error) {
				if r.PostFormValue("action") == "toggle_2fa" {
					enable := r.PostFormValue("enable") == "1"
					return "Two-factor setting saved.", m.Toggle2FA(r.Context(), u.ID, enable)
				}
				return "Password changed.", m.ChangePassword(r.Context(), u.ID,
					r.PostFormValue("current_password"), r.PostFormValue("new_password"), r.PostFormValue("confirm_password"))
			},
		},
		"subscription": {
			load: func(ctx context.Context, u *models.User) (any, error) {
				sub, err := m.UserSubscription(ctx, u.ID)
				if err != nil {
					return nil, err
				}
				plans, err := m.AvailablePackages(ctx)
				return map[string]any{"Subscription": sub, "Plans": plans}, err
			},
		},
		"notifications": {
			load: func(ctx context.Context, u *models.User) (any, error) {
				prefs, err := m.NotificationPreferences(ctx, u.ID)
				if err != nil {
					return nil, err
				}
				recent, err := m.RecentNotifications(ctx, u.ID, 20)
				return map[string]any{"Preferences": prefs, "Recent": recent}, err
			},
			save: func(r *http.Request, u *models.User) (string, error) {
				on := func(k string) bool { return r.PostFormValue(k) != "" }
				p := member.NotificationPreferences{
					EmailNotifications:   on("email_notifications"),
					EmailMarketing:       on("email_marketing"),
					EmailUpdates:         on("email_updates"),
					EmailSecurity:        on("email_security"),
					BrowserNotifications: on("browser_notifications"),
					DesktopNotifications: on("desktop_notifications"),
					MobileNotifications:  on("mobile_notifications"),
					NotifyNewFeatures:    on("notify_new_features"),
					NotifyPromotions:     on("notify_promotions"),
					Frequency:            r.PostFormValue("notification_frequency"),
				}
				return "Notification preferences saved.", m.UpdateNotificationPreferences(r.Context(), u.ID, p)
			},
		},
		"privacy": {
			load: func(ctx context.Context, u *models.User) (any, error) { return m.PrivacySettings(ctx, u.ID) },
			save: func(r *http.Request, u *models.User) (string, error) {
				p := member.PrivacySettings{
					ProfileVisibility: r.PostFormValue("profile_visibility"),
					ShowEmail:         r.PostFormValue("show_email") != "",
					ShowActivity:      r.PostFormValue("show_activity") != "",
				}
				return "Privacy settings saved.", m.UpdatePrivacySettings(r.Context(), u.ID, p)
			},
		},
		"data": {
			load: func(ctx context.Context, u *models.User) (any, error) {
				overview, err := m.DataOverview(ctx, u.ID)
				if err != nil || h.Privacy == nil {
					return map[string]any{"Overview": overview}, err
				}
				requests, err := h.Privacy.UserRequests(ctx, u.ID)
				return map[string]any{"Overview": overview, "Requests": requests}, err
			},
			save: func(r *http.Request, u *models.User) (string, error) {
				if h.Privacy == nil {
					return "", errPrivacyDisabled
				}
				if r.PostFormValue("action") == "cancel_request" {
					return "Request withdrawn.", h.Privacy.Cancel(r.Context(), u.ID, formID(r, "id"))
				}
				_, err := h.Privacy.Submit(r.Context(), u.ID, privacy.TypeAccess, strings.TrimSpace(r.PostFormValue("note")))
				return "Your data access request was submitted.", err
			},
		},
	}
}

var errPrivacyDisabled = errors.New("privacy requests are not available")

func (h *site) memberHome(w http.ResponseWriter, r *http.Request, _ Params) {
	u := auth.UserFromContext(r.Context())
	data := &MemberData{User: u, Plugins: h.memberPlugins()}
	if h.Member != nil {
		d, err := h.Member.MemberDashboardData(r.Context(), u.ID)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load member dashboard")
		}
		data.Data = d
	}
	h.render(w, r, http.StatusOK, "member/dashboard", data)
}

func (h *site) memberPlugins() []plugin.MemberPage {
	if h.Menus == nil {
		return nil
	}
	return h.Menus.MemberPages()
}

func (h *site) memberPage(w http.ResponseWriter, r *http.Request, p Params) {
	ctx := r.Context()
	u := auth.UserFromContext(ctx)
	name := p.Get("page")

	switch {
	case name == "export" && h.Member != nil:
		h.memberExport(w, r, u)
		return
	case name == "delete-account" && h.Member != nil && r.Method == http.MethodPost:
		h.memberDelete(w, r, u)
		return
	}

	page, ok := h.memberPages[name]
	if !ok {
		h.rt.NotFound(w, r)
		return
	}
	if r.Method == http.MethodPost {
		if page.save == nil {
			h.rt.NotFound(w, r)
			return
		}
		if h.verify(r, "member_"+name) {
			msg, err := page.save(r, u)
			if err != nil {
				h.flash(r, "error", memberMessage(ctx, err))
			} else {
				h.flash(r, "success", msg)
			}
		}
		h.rt.Redirect(w, r, "/member/"+name)
		return
	}

	data, err := page.load(ctx, u)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("page", name).Msg("Failed to load member page")
	}
	h.render(w, r, http.StatusOK, "member/"+name, &MemberData{User: u, Page: name, Plugins: h.memberPlugins(), Data: data})
}

func memberMessage(ctx context.Context, err error) string {
	for _, known := range memberErrors {
		if errors.Is(err, known) {
			return strings.ToUpper(err.Error()[:1]) + err.Error()[1:] + "."
		}
	}
	logging.Ctx(ctx).Error().Err(err).Msg("Member update failed")
	return "Something went wrong. Please try again."
}

func (h *site) memberExport(w http.ResponseWriter, r *http.Request, u *models.User) {
	export, err := h.Member.ExportUserData(r.Context(), u.ID)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to export member data")
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="user-data-`+u.Username+`.json"`)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write member export")
	}
}

func (h *site) memberDelete(w http.ResponseWriter, r *http.Request, u *models.User) {
	if !h.verify(r, "member_delete-account") {
		h.rt.Redirect(w, r, "/member/data")
		return
	}
	var err error
	if h.Privacy != nil {
		_, err = h.Privacy.Submit(r.Context(), u.ID, privacy.TypeDeletion, "")
	} else {
		_, err = h.Member.RequestAccountDeletion(r.Context(), u.ID)
	}
	if err != nil {
		h.flash(r, "error", memberMessage(r.Context(), err))
		h.rt.Redirect(w, r, "/member/data")
		return
	}
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		if err := h.Auth.Logout(r.Context(), sess); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Logout after deletion request failed")
		}
	}
	h.rt.Redirect(w, r, "/")
}

func (h *site) memberPlugin(w http.ResponseWriter, r *http.Request, p Params) {
	if h.Menus == nil {
		h.rt.NotFound(w, r)
		return
	}
	page, ok := h.Menus.MemberPage(p.Get("slug"))
	if !ok || page.Handler == nil {
		h.rt.NotFound(w, r)
		return
	}
	out, handled := capture(w, r, page.Handler)
	if handled {
		return
	}
	u := auth.UserFromContext(r.Context())
	h.render(w, r, http.StatusOK, "member/plugin", &MemberData{
		User: u, Page: page.Slug, Plugins: h.memberPlugins(),
		Data: &PluginPageData{Title: page.Title, Content: out},
	})
}
