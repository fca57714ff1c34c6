// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package hooks is the action/filter registry plugins and themes use to
// extend Inkwell.
//
// Actions run side-effecting callbacks; filters thread a value through their
// callbacks and return the result. Callbacks run in ascending priority and,
// within one priority, in registration order.
//
//	id := reg.AddAction(hooks.UserRegistered, func(ctx context.Context, args ...any) {
//		userID := args[0].(int64)
//		...
//	}, hooks.DefaultPriority)
//	reg.RemoveAction(hooks.UserRegistered, id)
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
)

// DefaultPriority is used when callers have no ordering preference.
const DefaultPriority = 10

// Action is a side-effecting callback.
type Action func(ctx context.Context, args ...any)

// Filter transforms value and returns the result.
type Filter func(ctx context.Context, value any, args ...any) any

// HandleID identifies one registered callback for removal.
type HandleID uint64

type entry struct {
	id       HandleID
	priority int
	seq      uint64
	action   Action
	filter   Filter
}

// Registry holds actions and filters. The zero value is not usable; call New.
type Registry struct {
	mu      sync.RWMutex
	actions map[string][]entry
	filters map[string][]entry
	fired   map[string]int
	nextID  atomic.Uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		actions: make(map[string][]entry),
		filters: make(map[string][]entry),
		fired:   make(map[string]int),
	}
}

// AddAction registers fn for tag.
func (r *Registry) AddAction(tag string, fn Action, priority int) HandleID {
	id := HandleID(r.nextID.Add(1))
	r.mu.Lock()
	r.actions[tag] = insertSorted(r.actions[tag], entry{id: id, priority: priority, seq: uint64(id), action: fn})
	r.mu.Unlock()
	return id
}

// AddFilter registers fn for tag.
func (r *Registry) AddFilter(tag string, fn Filter, priority int) HandleID {
	id := HandleID(r.nextID.Add(1))
	r.mu.Lock()
	r.filters[tag] = insertSorted(r.filters[tag], entry{id: id, priority: priority, seq: uint64(id), filter: fn})
	r.mu.Unlock()
	return id
}

// insertSorted returns a new slice ordered by (priority, seq). Lists are
// copy-on-write because dispatch iterates snapshots without the lock.
func insertSorted(list []entry, e entry) []entry {
	i := sort.Search(len(list), func(i int) bool {
		if list[i].priority != e.priority {
			return list[i].priority > e.priority
		}
		return list[i].seq > e.seq
	})
	next := make([]entry, 0, len(list)+1)
	next = append(next, list[:i]...)
	next = append(next, e)
	next = append(next, list[i:]...)
	return next
}

// RemoveAction unregisters the action with id. It reports whether it existed.
func (r *Registry) RemoveAction(tag string, id HandleID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return remove(r.actions, tag, id)
}

// RemoveFilter unregisters the filter with id. It reports whether it existed.
func (r *Registry) RemoveFilter(tag string, id HandleID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return remove(r.filters, tag, id)
}

func remove(m map[string][]entry, tag string, id HandleID) bool {
	list := m[tag]
	for i, e := range list {
		if e.id != id {
			continue
		}
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(m, tag)
		} else {
			m[tag] = next
		}
		return true
	}
	return false
}

// DoAction runs every action registered for tag. Unknown tags are a no-op.
func (r *Registry) DoAction(ctx context.Context, tag string, args ...any) {
	r.mu.Lock()
	r.fired[tag]++
	snapshot := r.actions[tag]
	r.mu.Unlock()

	metrics.HookDispatches.WithLabelValues("action").Inc()
	for _, e := range snapshot {
		r.runAction(ctx, tag, e, args)
	}
}

// ApplyFilters threads value through every filter registered for tag and
// returns the result. Unknown tags return value unchanged.
func (r *Registry) ApplyFilters(ctx context.Context, tag string, value any, args ...any) any {
	r.mu.RLock()
	snapshot := r.filters[tag]
	r.mu.RUnlock()

	metrics.HookDispatches.WithLabelValues("filter").Inc()
	for _, e := range snapshot {
		value = r.runFilter(ctx, tag, e, value, args)
	}
	return value
}

func (r *Registry) runAction(ctx context.Context, tag string, e entry, args []any) {
	defer recoverCallback(tag)
	e.action(ctx, args...)
}

// runFilter returns the input value when the callback panics.
func (r *Registry) runFilter(ctx context.Context, tag string, e entry, value any, args []any) (out any) {
	out = value
	defer recoverCallback(tag)
	return e.filter(ctx, value, args...)
}

func recoverCallback(tag string) {
	if rec := recover(); rec != nil {
		metrics.HookPanics.WithLabelValues(tag).Inc()
		logging.Error().
			Str("hook", tag).
			Str("panic", fmt.Sprint(rec)).
			Msg("Hook callback panicked")
	}
}

// Apply runs the filters for tag and returns the result as T. When a filter
// returns a value of another type the original value is kept.
func Apply[T any](ctx context.Context, r *Registry, tag string, value T, args ...any) T {
	out := r.ApplyFilters(ctx, tag, value, args...)
	if v, ok := out.(T); ok {
		return v
	}
	logging.Warn().Str("hook", tag).Msgf("Filter returned %T, keeping %T", out, value)
	return value
}

// ApplyFiltersString is Apply for strings.
func (r *Registry) ApplyFiltersString(ctx context.Context, tag, value string, args ...any) string {
	return Apply(ctx, r, tag, value, args...)
}

// HasAction reports whether any action is registered for tag.
func (r *Registry) HasAction(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions[tag]) > 0
}

// HasFilter reports whether any filter is registered for tag.
func (r *Registry) HasFilter(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filters[tag]) > 0
}

// DidAction returns how many times tag has been fired.
func (r *Registry) DidAction(tag string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fired[tag]
}

// Tags returns the sorted set of tags with at least one callback.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.actions)+len(r.filters))
	for t := range r.actions {
		seen[t] = struct{}{}
	}
	for t := range r.filters {
		seen[t] = struct{}{}
	}
	r.mu.RUnlock()

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
