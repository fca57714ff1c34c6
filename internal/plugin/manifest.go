// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile describes a plugin folder on disk.
const ManifestFile = "plugin.yaml"

// Manifest is a plugin's metadata. Requires lists plugin slugs that must
// be active first.
type Manifest struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Version     string   `yaml:"version" json:"version"`
	Author      string   `yaml:"author" json:"author,omitempty"`
	UpdateURL   string   `yaml:"update_url" json:"update_url,omitempty"`
	Requires    []string `yaml:"requires" json:"requires,omitempty"`
}

// Info is a plugin as listed in the admin area. Available is false for
// folders whose plugin is not compiled into this binary.
type Info struct {
	Manifest
	Slug      string `json:"slug"`
	Active    bool   `json:"active"`
	Available bool   `json:"available"`
}

// ReadManifest parses dir/plugin.yaml.
func ReadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid %s in %s: %w", ManifestFile, filepath.Base(dir), err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	return &m, nil
}
