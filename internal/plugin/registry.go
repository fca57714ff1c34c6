// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Plugin is a compiled-in extension.
type Plugin interface {
	Slug() string
	Manifest() Manifest
	Init(ctx context.Context, host *Host) error
}

// Deactivator is implemented by plugins that release resources when they
// are deactivated.
type Deactivator interface {
	Deactivate(ctx context.Context) error
}

// Registry holds plugins by slug.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

var defaultRegistry = NewRegistry()

// Register adds p to the process-wide registry. It panics if p is nil or
// its slug is already taken.
func Register(p Plugin) {
	defaultRegistry.Register(p)
}

// Default returns the process-wide registry used by Register.
func Default() *Registry {
	return defaultRegistry
}

// Register adds p. It panics if p is nil or its slug is already taken.
func (r *Registry) Register(p Plugin) {
	if p == nil {
		panic("plugin: Register plugin is nil")
	}
	slug := p.Slug()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.plugins[slug]; dup {
		panic(fmt.Sprintf("plugin: Register called twice for %s", slug))
	}
	r.plugins[slug] = p
}

// Lookup returns the plugin registered under slug.
func (r *Registry) Lookup(slug string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[slug]
	return p, ok
}

// Slugs returns every registered slug, sorted.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for slug := range r.plugins {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
