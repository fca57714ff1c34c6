// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/tomtom215/inkwell/internal/hooks"
)

// DefaultMenuPosition places pages without an explicit position last.
const DefaultMenuPosition = 100

// MenuPage is an admin page contributed by a plugin.
type MenuPage struct {
	PageTitle  string           `json:"page_title"`
	MenuTitle  string           `json:"menu_title"`
	Capability string           `json:"capability"`
	Slug       string           `json:"slug"`
	Parent     string           `json:"parent,omitempty"`
	Icon       string           `json:"icon,omitempty"`
	Position   int              `json:"position"`
	Hidden     bool             `json:"hidden,omitempty"`
	Children   []*MenuPage      `json:"children,omitempty"`
	Handler    http.HandlerFunc `json:"-"`
}

// MemberPage is a member-area page contributed by a plugin.
type MemberPage struct {
	Slug    string           `json:"slug"`
	Title   string           `json:"title"`
	Handler http.HandlerFunc `json:"-"`
}

// MenuRegistry collects plugin admin and member pages. Admin pages are
// rebuilt from the cms_admin_menu action; member pages live until their
// plugin is deactivated.
type MenuRegistry struct {
	mu       sync.RWMutex
	pages    map[string]*MenuPage
	children map[string][]*MenuPage
	members  map[string]*MemberPage
}

// NewMenuRegistry returns an empty registry.
func NewMenuRegistry() *MenuRegistry {
	return &MenuRegistry{
		pages:    make(map[string]*MenuPage),
		children: make(map[string][]*MenuPage),
		members:  make(map[string]*MemberPage),
	}
}

// AddMenuPage adds or replaces a top-level admin page. A position of 0
// means DefaultMenuPosition.
func (r *MenuRegistry) AddMenuPage(pageTitle, menuTitle, capability, slug string, handler http.HandlerFunc, icon string, position int, hidden bool) {
	if position == 0 {
		position = DefaultMenuPosition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[slug] = &MenuPage{
		PageTitle: pageTitle, MenuTitle: menuTitle, Capability: capability, Slug: slug,
		Icon: icon, Position: position, Hidden: hidden, Handler: handler,
	}
}

// AddSubmenuPage adds a child page under parent. The parent may be added
// later.
func (r *MenuRegistry) AddSubmenuPage(parent, pageTitle, menuTitle, capability, slug string, handler http.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.children[parent]
	for i, c := range list {
		if c.Slug == slug {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	r.children[parent] = append(list, &MenuPage{
		PageTitle: pageTitle, MenuTitle: menuTitle, Capability: capability,
		Slug: slug, Parent: parent, Handler: handler,
	})
}

// Reset drops every admin page.
func (r *MenuRegistry) Reset() {
	r.mu.Lock()
	r.pages = make(map[string]*MenuPage)
	r.children = make(map[string][]*MenuPage)
	r.mu.Unlock()
}

// Rebuild resets the admin pages and fires cms_admin_menu with the
// registry as argument.
func (r *MenuRegistry) Rebuild(ctx context.Context, registry *hooks.Registry) {
	r.Reset()
	if registry != nil {
		registry.DoAction(ctx, hooks.AdminMenu, r)
	}
}

func (r *MenuRegistry) withChildren(p *MenuPage) *MenuPage {
	cp := *p
	cp.Children = nil
	for _, c := range r.children[p.Slug] {
		child := *c
		cp.Children = append(cp.Children, &child)
	}
	return &cp
}

// Menus returns the visible top-level pages with their children, ordered
// by position then menu title.
func (r *MenuRegistry) Menus() []*MenuPage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MenuPage, 0, len(r.pages))
	for _, p := range r.pages {
		if p.Hidden {
			continue
		}
		out = append(out, r.withChildren(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].MenuTitle < out[j].MenuTitle
	})
	return out
}

// Resolve finds the page for /admin/plugins/<plugin>/<page>. When plugin
// and page are equal and the parent has no children the parent itself is
// returned; otherwise the child named page under parent plugin. Hidden
// pages resolve.
func (r *MenuRegistry) Resolve(plugin, page string) (*MenuPage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parent, ok := r.pages[plugin]
	if !ok {
		return nil, false
	}
	kids := r.children[plugin]
	if plugin == page && len(kids) == 0 {
		return r.withChildren(parent), true
	}
	for _, c := range kids {
		if c.Slug == page {
			child := *c
			return &child, true
		}
	}
	if plugin == page {
		return r.withChildren(parent), true
	}
	return nil, false
}

// AddMemberPage adds or replaces the member page for a plugin slug.
func (r *MenuRegistry) AddMemberPage(slug, title string, handler http.HandlerFunc) {
	r.mu.Lock()
	r.members[slug] = &MemberPage{Slug: slug, Title: title, Handler: handler}
	r.mu.Unlock()
}

// RemoveMemberPages drops the member page of a plugin.
func (r *MenuRegistry) RemoveMemberPages(slug string) {
	r.mu.Lock()
	delete(r.members, slug)
	r.mu.Unlock()
}

// MemberPage returns the member page registered for slug.
func (r *MenuRegistry) MemberPage(slug string) (*MemberPage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[slug]
	return p, ok
}

// MemberPages lists member pages by title.
func (r *MenuRegistry) MemberPages() []MemberPage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberPage, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}
