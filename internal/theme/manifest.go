// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the theme metadata file.
const ManifestFile = "theme.yaml"

// Manifest is the parsed theme.yaml.
type Manifest struct {
	Name          string                    `yaml:"name" json:"name"`
	Description   string                    `yaml:"description" json:"description,omitempty"`
	Version       string                    `yaml:"version" json:"version"`
	Author        string                    `yaml:"author" json:"author,omitempty"`
	UpdateURL     string                    `yaml:"update_url" json:"update_url,omitempty"`
	Tags          []string                  `yaml:"tags" json:"tags,omitempty"`
	Supports      []string                  `yaml:"supports" json:"supports,omitempty"`
	MenuLocations []MenuLocation            `yaml:"menu_locations" json:"menu_locations,omitempty"`
	Customizer    map[string]OptionCategory `yaml:"customizer" json:"customizer,omitempty"`
}

// OptionCategory groups customizer settings, for example "colors".
type OptionCategory struct {
	Label    string             `yaml:"label" json:"label"`
	Settings map[string]Setting `yaml:"settings" json:"settings"`
}

// Setting describes one customizer field.
type Setting struct {
	Type    string   `yaml:"type" json:"type"`
	Label   string   `yaml:"label" json:"label"`
	Default any      `yaml:"default" json:"default,omitempty"`
	Choices []string `yaml:"choices" json:"choices,omitempty"`
}

// DefaultString returns the default as a string; nil becomes "".
func (s Setting) DefaultString() string {
	if s.Default == nil {
		return ""
	}
	return fmt.Sprint(s.Default)
}

// Info is a theme as listed in the admin area.
type Info struct {
	Manifest
	Folder string `json:"folder"`
	Active bool   `json:"active"`
}

var styleHeader = regexp.MustCompile(`(?i)^\s*(?:/\*+|\*)?\s*(Theme Name|Description|Version|Author)\s*:\s*(.+)$`)

// ReadManifest loads the manifest of the theme in dir. Themes without a
// theme.yaml fall back to the comment header of style.css. It returns
// ErrThemeNotFound when neither exists.
func ReadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	switch {
	case err == nil:
		var m Manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid %s in %s: %w", ManifestFile, filepath.Base(dir), err)
		}
		if m.Name == "" {
			m.Name = filepath.Base(dir)
		}
		return &m, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to read theme manifest: %w", err)
	}

	css, err := os.ReadFile(filepath.Join(dir, "style.css"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrThemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read style.css: %w", err)
	}
	return parseStyleHeader(css, filepath.Base(dir)), nil
}

func parseStyleHeader(css []byte, folder string) *Manifest {
	m := &Manifest{Name: folder}
	sc := bufio.NewScanner(bytes.NewReader(css))
	for lines := 0; sc.Scan() && lines < 40; lines++ {
		match := styleHeader.FindStringSubmatch(sc.Text())
		if match == nil {
			continue
		}
		v := strings.TrimRight(strings.TrimSuffix(strings.TrimSpace(match[2]), "*/"), "* \t")
		switch strings.ToLower(match[1]) {
		case "theme name":
			m.Name = v
		case "description":
			m.Description = v
		case "version":
			m.Version = v
		case "author":
			m.Author = v
		}
	}
	return m
}
