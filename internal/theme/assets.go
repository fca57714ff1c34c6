// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

var assetExtensions = map[string]bool{
	".css": true, ".js": true, ".png": true, ".jpg": true, ".jpeg": true,
	".gif": true, ".svg": true, ".webp": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".map": true,
}

// AssetHandler serves static files of any installed theme. Mount it with
// the prefix stripped, so request paths look like /<theme>/css/style.css.
// Templates and manifests are never served.
func (m *Manager) AssetHandler() http.Handler {
	files := http.FileServer(http.Dir(m.cfg.Dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if !assetExtensions[strings.ToLower(filepath.Ext(clean))] || strings.Contains(clean, "/.") {
			http.NotFound(w, r)
			return
		}
		r.URL.Path = clean
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
