// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/backup"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/system"
	"github.com/tomtom215/inkwell/internal/users"
)

// AdminData is the template data of every admin page.
type AdminData struct {
	User  *models.User
	Page  string
	Menus []*plugin.MenuPage
	Data  any
}

// PluginPageData wraps the output of a plugin page handler.
type PluginPageData struct {
	Title   string
	Content template.HTML
}

type adminAction func(r *http.Request, u *models.User) (string, error)

type adminPage struct {
	load    func(r *http.Request) (any, error)
	actions map[string]adminAction
}

// SettingsFields are the options editable on the settings page.
var SettingsFields = []string{"site_title", "site_description", "posts_per_page", "registration_enabled"}

func formID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.PostFormValue(name), 10, 64)
	return id
}

func (h *site) buildAdminPages() map[string]adminPage {
	pages := map[string]adminPage{
		"pages": {
			load: func(r *http.Request) (any, error) {
				return h.Content.ListPages(r.Context(), r.URL.Query().Get("status"))
			},
			actions: map[string]adminAction{
				"delete": func(r *http.Request, u *models.User) (string, error) {
					return "Page deleted.", h.Content.DeletePage(r.Context(), formID(r, "id"), u.ID)
				},
			},
		},
		"posts": {
			load: func(r *http.Request) (any, error) {
				q := r.URL.Query()
				posts, total, err := h.Content.Posts(r.Context(), content.PostQuery{
					Status: q.Get("status"), Search: q.Get("q"), Page: queryInt(r, "p", 1), PerPage: 20,
				})
				return map[string]any{"Posts": posts, "Total": total}, err
			},
			actions: map[string]adminAction{
				"delete": func(r *http.Request, u *models.User) (string, error) {
					return "Post deleted.", h.Content.DeletePost(r.Context(), formID(r, "id"), u.ID)
				},
			},
		},
		"settings": {
			load: func(r *http.Request) (any, error) {
				out := make(map[string]string, len(SettingsFields))
				for _, f := range SettingsFields {
					out[f] = h.DB.GetOption(r.Context(), f, "")
				}
				return out, nil
			},
			actions: map[string]adminAction{
				"save": func(r *http.Request, _ *models.User) (string, error) {
					for _, f := range SettingsFields {
						v := strings.TrimSpace(r.PostFormValue(f))
						if f == "registration_enabled" && v == "" {
							v = "0"
						}
						if err := h.DB.UpdateOption(r.Context(), f, v); err != nil {
							return "", err
						}
					}
					return "Settings saved.", nil
				},
			},
		},
	}

	if h.Stats != nil {
		pages["dashboard"] = adminPage{load: func(r *http.Request) (any, error) {
			feed, err := h.Stats.ActivityFeed(r.Context(), 10)
			return map[string]any{"Stats": h.Stats.AllStats(r.Context()), "Activity": feed}, err
		}}
	}
	if h.Users != nil {
		pages["users"] = adminPage{
			load: func(r *http.Request) (any, error) {
				q := r.URL.Query()
				list, total, err := h.Users.Users(r.Context(), users.Query{
					Search: q.Get("q"), Role: q.Get("role"), Status: q.Get("status"),
					OrderBy: q.Get("orderby"), Order: q.Get("order"),
					Limit: 20, Offset: (queryInt(r, "p", 1) - 1) * 20,
				})
				if err != nil {
					return nil, err
				}
				stats, err := h.Users.Statistics(r.Context())
				return map[string]any{"Users": list, "Total": total, "Stats": stats}, err
			},
			actions: map[string]adminAction{
				"bulk": func(r *http.Request, u *models.User) (string, error) {
					var ids []int64
					for _, v := range r.PostForm["ids"] {
						if id, err := strconv.ParseInt(v, 10, 64); err == nil {
							ids = append(ids, id)
						}
					}
					res, err := h.Users.BulkAction(r.Context(), u.ID, r.PostFormValue("bulk_action"), ids, r.PostFormValue("role"))
					if err != nil {
						return "", err
					}
					return fmt.Sprintf("%d users updated, %d failed.", res.Success, res.Failed), nil
				},
			},
		}
	}
	if h.Plugins != nil {
		pages["plugins"] = adminPage{
			load: func(r *http.Request) (any, error) { return h.Plugins.AvailablePlugins(r.Context()) },
			actions: map[string]adminAction{
				"activate": func(r *http.Request, _ *models.User) (string, error) {
					return "Plugin activated.", h.Plugins.ActivatePlugin(r.Context(), r.PostFormValue("slug"))
				},
				"deactivate": func(r *http.Request, _ *models.User) (string, error) {
					return "Plugin deactivated.", h.Plugins.DeactivatePlugin(r.Context(), r.PostFormValue("slug"))
				},
				"delete": func(r *http.Request, _ *models.User) (string, error) {
					return "Plugin deleted.", h.Plugins.DeletePlugin(r.Context(), r.PostFormValue("slug"))
				},
			},
		}
	}
	if h.Themes != nil {
		pages["themes"] = adminPage{
			load: func(*http.Request) (any, error) { return h.Themes.AvailableThemes() },
			actions: map[string]adminAction{
				"activate": func(r *http.Request, _ *models.User) (string, error) {
					return "Theme activated.", h.Themes.SwitchTheme(r.Context(), r.PostFormValue("slug"))
				},
				"delete": func(r *http.Request, _ *models.User) (string, error) {
					return "Theme deleted.", h.Themes.DeleteTheme(r.Context(), r.PostFormValue("slug"))
				},
			},
		}
	}
	if h.Media != nil {
		pages["media"] = adminPage{load: func(r *http.Request) (any, error) {
			items, err := h.Media.Items(r.URL.Query().Get("path"))
			if err != nil {
				return nil, err
			}
			usage, err := h.Media.DiskUsage()
			return map[string]any{"Listing": items, "Usage": usage}, err
		}}
	}
	if h.Visits != nil {
		pages["analytics"] = adminPage{load: func(r *http.Request) (any, error) {
			ctx := r.Context()
			days := queryInt(r, "days", 30)
			visitors, err := h.Visits.VisitorStats(ctx, days)
			if err != nil {
				return nil, err
			}
			top, err := h.Visits.TopPages(ctx, days, 10)
			if err != nil {
				return nil, err
			}
			daily, err := h.Visits.PageViewsByDate(ctx, days)
			return map[string]any{"Days": days, "Visitors": visitors, "TopPages": top, "Daily": daily}, err
		}}
	}
	if h.System != nil {
		pages["system"] = h.systemPage()
	}
	if h.Status != nil {
		pages["status"] = h.statusPage()
	}
	if h.Updates != nil {
		pages["updates"] = adminPage{
			load: func(r *http.Request) (any, error) { return h.Updates.CheckAll(r.Context()), nil },
			actions: map[string]adminAction{
				"refresh": func(*http.Request, *models.User) (string, error) {
					h.Updates.Refresh()
					return "Update information refreshed.", nil
				},
			},
		}
	}
	if h.Backups != nil {
		pages["backups"] = h.backupsPage()
	}
	if h.Plans != nil {
		pages["subscriptions"] = adminPage{
			load: func(r *http.Request) (any, error) {
				plans, err := h.Plans.AllPlansIncludingInactive(r.Context())
				if err != nil {
					return nil, err
				}
				orders, total, err := h.Plans.Orders(r.Context(), queryInt(r, "p", 1), 20)
				return map[string]any{"Plans": plans, "Orders": orders, "TotalOrders": total}, err
			},
			actions: map[string]adminAction{
				"confirm_order": func(r *http.Request, _ *models.User) (string, error) {
					return "Order confirmed and subscription assigned.", h.Plans.ConfirmOrder(r.Context(), formID(r, "id"))
				},
				"cancel_order": func(r *http.Request, _ *models.User) (string, error) {
					return "Order cancelled.", h.Plans.CancelOrder(r.Context(), formID(r, "id"))
				},
			},
		}
	}
	if h.Landing != nil {
		pages["landing"] = adminPage{load: func(r *http.Request) (any, error) { return h.Landing.Page(r.Context()) }}
	}
	if h.Firewall != nil {
		pages["firewall"] = h.firewallPage()
	}
	if h.Privacy != nil {
		pages["privacy"] = h.privacyPage()
	}
	if h.Consent != nil {
		pages["cookies"] = h.cookiesPage()
	}
	if h.Legal != nil {
		pages["legal"] = h.legalPage()
	}
	return pages
}

func (h *site) systemPage() adminPage {
	return adminPage{
		load: func(r *http.Request) (any, error) {
			return map[string]any{"Info": h.System.SystemInfo(r.Context()), "Check": h.System.RunSystemCheck(r.Context())}, nil
		},
		actions: map[string]adminAction{
			"clear_cache": func(r *http.Request, _ *models.User) (string, error) {
				n, err := h.System.ClearCache(r.Context())
				return fmt.Sprintf("Cache cleared (%d entries).", n), err
			},
			"clear_sessions": func(r *http.Request, _ *models.User) (string, error) {
				n, err := h.System.ClearOldSessions(r.Context())
				return fmt.Sprintf("%d expired sessions removed.", n), err
			},
			"optimize": func(r *http.Request, _ *models.User) (string, error) {
				res, err := h.System.OptimizeTables(r.Context())
				return fmt.Sprintf("%d tables optimized.", len(res)), err
			},
			"repair": func(r *http.Request, _ *models.User) (string, error) {
				res, err := h.System.RepairTables(r.Context())
				return fmt.Sprintf("%d tables checked.", len(res)), err
			},
		},
	}
}

func (h *site) statusPage() adminPage {
	repair := func(fn func(ctx context.Context) (*system.RepairResult, error)) adminAction {
		return func(r *http.Request, _ *models.User) (string, error) {
			res, err := fn(r.Context())
			if err != nil {
				return "", err
			}
			return res.Message, nil
		}
	}
	return adminPage{
		load: func(r *http.Request) (any, error) { return h.Status.FullStatus(r.Context()), nil },
		actions: map[string]adminAction{
			"repair_database":  repair(h.Status.RepairDatabase),
			"cleanup_overhead": repair(h.Status.CleanupOverhead),
			"cleanup_orphans":  repair(h.Status.CleanupOrphans),
			"cleanup_temp": repair(func(ctx context.Context) (*system.RepairResult, error) {
				return h.Status.CleanupTempFiles(ctx, 24*time.Hour)
			}),
			"fix_permissions": repair(func(context.Context) (*system.RepairResult, error) {
				return h.Status.FixPermissions()
			}),
		},
	}
}

func (h *site) backupsPage() adminPage {
	created := func(b *backup.Backup, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Backup %s created (%s).", b.Filename, humanize.IBytes(uint64(b.Size))), nil
	}
	return adminPage{
		load: func(r *http.Request) (any, error) {
			files, err := h.Backups.ListBackups()
			if err != nil {
				return nil, err
			}
			history, err := h.Backups.BackupHistory(r.Context(), backup.DefaultHistoryLimit)
			if err != nil {
				return nil, err
			}
			stats, err := h.Backups.Stats()
			return map[string]any{"Files": files, "History": history, "Stats": stats}, err
		},
		actions: map[string]adminAction{
			"create_full": func(r *http.Request, _ *models.User) (string, error) {
				return created(h.Backups.CreateFullBackup(r.Context()))
			},
			"create_database": func(r *http.Request, _ *models.User) (string, error) {
				return created(h.Backups.CreateDatabaseBackup(r.Context()))
			},
			"delete": func(r *http.Request, _ *models.User) (string, error) {
				return "Backup deleted.", h.Backups.DeleteBackup(r.Context(), r.PostFormValue("name"))
			},
			"restore": func(r *http.Request, _ *models.User) (string, error) {
				res, err := h.Backups.Restore(r.Context(), r.PostFormValue("name"), backup.RestoreOptions{
					Files: r.PostFormValue("restore_files") != "",
				})
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Restored %d tables from %s.", len(res.Tables), res.Backup), nil
			},
		},
	}
}

func (h *site) adminMenus() []*plugin.MenuPage {
	if h.Menus == nil {
		return nil
	}
	return h.Menus.Menus()
}

func (h *site) admin(w http.ResponseWriter, r *http.Request, p Params) {
	ctx := r.Context()
	u := auth.UserFromContext(ctx)
	name := p.Get("page")
	if name == "" {
		name = "dashboard"
	}
	if h.Menus != nil && h.Hooks != nil {
		h.Menus.Rebuild(ctx, h.Hooks)
	}
	page, ok := h.adminPages[name]
	if !ok {
		h.rt.NotFound(w, r)
		return
	}

	if r.Method == http.MethodPost {
		target := "/admin/" + name
		if name == "dashboard" {
			target = "/admin"
		}
		if h.verify(r, "admin_"+name) {
			action, ok := page.actions[r.PostFormValue("action")]
			if !ok {
				h.flash(r, "error", "Unknown action.")
			} else if msg, err := action(r, u); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("page", name).Str("action", r.PostFormValue("action")).Msg("Admin action failed")
				h.flash(r, "error", userMessage(err, err.Error()))
			} else {
				h.flash(r, "success", msg)
			}
		}
		h.rt.Redirect(w, r, target)
		return
	}

	var data any
	if page.load != nil {
		var err error
		if data, err = page.load(r); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("page", name).Msg("Failed to load admin page")
		}
	}
	h.render(w, r, http.StatusOK, "admin/"+name, &AdminData{User: u, Page: name, Menus: h.adminMenus(), Data: data})
}

func (h *site) adminPlugin(w http.ResponseWriter, r *http.Request, p Params) {
	if h.Menus == nil || h.Hooks == nil {
		h.rt.NotFound(w, r)
		return
	}
	h.Menus.Rebuild(r.Context(), h.Hooks)
	page, ok := h.Menus.Resolve(p.Get("plugin"), p.Get("page"))
	if !ok || page.Handler == nil {
		h.rt.NotFound(w, r)
		return
	}
	if page.Capability != "" && !h.Auth.HasCapability(r.Context(), page.Capability) {
		http.Error(w, "You do not have permission to access this page.", http.StatusForbidden)
		return
	}
	out, handled := capture(w, r, page.Handler)
	if handled {
		return
	}
	h.render(w, r, http.StatusOK, "admin/plugin", &AdminData{
		User: auth.UserFromContext(r.Context()), Page: page.Slug, Menus: h.adminMenus(),
		Data: &PluginPageData{Title: page.PageTitle, Content: out},
	})
}

// captureWriter buffers a plugin handler's output so it can be wrapped in
// the surrounding layout.
type captureWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) Header() http.Header { return c.header }

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.buf.Write(b)
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
}

// capture runs handler and returns its body as trusted markup. Responses
// that are not plain 200 HTML (redirects, errors, downloads, JSON) are
// forwarded to w unchanged and reported as handled.
func capture(w http.ResponseWriter, r *http.Request, handler http.HandlerFunc) (template.HTML, bool) {
	c := &captureWriter{header: make(http.Header)}
	handler(c, r)
	if c.status == 0 {
		c.status = http.StatusOK
	}
	ct := c.header.Get("Content-Type")
	if c.status == http.StatusOK && (ct == "" || strings.HasPrefix(ct, "text/html")) {
		return template.HTML(c.buf.String()), false
	}
	for k, v := range c.header {
		w.Header()[k] = v
	}
	w.WriteHeader(c.status)
	_, _ = w.Write(c.buf.Bytes())
	return "", true
}
