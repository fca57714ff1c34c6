// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package update

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/mod/semver"
)

// canonical turns "1.2", "v1.2.0" or "go1.24.1" into a semver string.
// Invalid versions return "".
func canonical(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "go")
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// Newer reports whether candidate is a later version than current.
// Unparseable versions are never newer.
func Newer(candidate, current string) bool {
	a, b := canonical(candidate), canonical(current)
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return semver.Compare(a, b) > 0
}

// AtLeast reports whether have satisfies the minimum want.
func AtLeast(have, want string) bool {
	a, b := canonical(have), canonical(want)
	return a != "" && b != "" && semver.Compare(a, b) >= 0
}

var bullet = regexp.MustCompile(`^[-*]\s+(.+)`)

// ParseChangelog returns the bullet items of Markdown release notes.
func ParseChangelog(body string) []string {
	out := []string{}
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if m := bullet.FindStringSubmatch(strings.TrimSpace(sc.Text())); m != nil {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

// Changelog decodes either Markdown text or a list of strings.
type Changelog []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Changelog) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*c = ParseChangelog(text)
	return nil
}
