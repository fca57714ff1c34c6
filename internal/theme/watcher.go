// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last template
// change before reparsing.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reparses the active theme's templates when they change on disk.
// It implements suture.Service.
type Watcher struct {
	m        *Manager
	debounce time.Duration
	reloaded chan struct{}
}

// NewWatcher creates a watcher for m. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(m *Manager, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{m: m, debounce: debounce, reloaded: make(chan struct{}, 1)}
}

// Reloaded receives a value after each successful reparse.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

func (w *Watcher) String() string { return "theme-watcher" }

// Serve watches every directory below the themes root until ctx ends.
func (w *Watcher) Serve(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create theme watcher: %w", err)
	}
	defer func() {
		if err := fw.Close(); err != nil {
			w.m.log.Warn().Err(err).Msg("Failed to close theme watcher")
		}
	}()

	if err := w.addTree(fw, w.m.Dir()); err != nil {
		return err
	}
	w.m.log.Info().Str("dir", w.m.Dir()).Msg("Watching themes for template changes")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if err := w.addTree(fw, ev.Name); err != nil {
					w.m.log.Debug().Err(err).Str("path", ev.Name).Msg("Not watching new path")
				}
			}
			if w.relevant(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.m.log.Warn().Err(err).Msg("Theme watcher error")

		case <-timer.C:
			if err := w.m.Reload(); err != nil {
				w.m.log.Error().Err(err).Str("theme", w.m.ActiveTheme()).Msg("Template reload failed, keeping previous templates")
				continue
			}
			w.m.log.Info().Str("theme", w.m.ActiveTheme()).Msg("Templates reloaded")
			select {
			case w.reloaded <- struct{}{}:
			default:
			}
		}
	}
}

// relevant reports whether ev touches an .html file of the active theme.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if filepath.Ext(ev.Name) != ".html" {
		return false
	}
	active := w.m.ThemePath() + string(filepath.Separator)
	return strings.HasPrefix(filepath.Clean(ev.Name), active)
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
