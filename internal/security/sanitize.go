// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"

	"github.com/tomtom215/inkwell/internal/validation"
)

// Sanitize kinds accepted by Sanitize.
const (
	KindText     = "text"
	KindEmail    = "email"
	KindURL      = "url"
	KindInt      = "int"
	KindHTML     = "html"
	KindUsername = "username"
)

const (
	emailExtra = "!#$%&'*+-=?^_`{|}~@.[]"
	urlExtra   = "$-_.+!*'(),{}|\\^~[]`<>#%\";/?:@&="
)

var ugcPolicy = bluemonday.UGCPolicy()

// Sanitize filters input according to kind. Unknown kinds are treated as
// text.
func Sanitize(input, kind string) string {
	switch kind {
	case KindEmail:
		return keep(input, func(r rune) bool { return isASCIIAlnum(r) || strings.ContainsRune(emailExtra, r) })
	case KindURL:
		return keep(input, func(r rune) bool { return isASCIIAlnum(r) || strings.ContainsRune(urlExtra, r) })
	case KindInt:
		return keep(input, func(r rune) bool { return (r >= '0' && r <= '9') || r == '+' || r == '-' })
	case KindHTML:
		return Escape(input)
	case KindUsername:
		return keep(input, func(r rune) bool { return isASCIIAlnum(r) || r == '_' })
	default:
		return StripTags(strings.TrimSpace(input))
	}
}

// Escape HTML-escapes s, including both quote characters.
func Escape(s string) string {
	return html.EscapeString(s)
}

// StripTags removes HTML tags and comments from s. Text is kept as
// written, character references included. Script and style bodies are
// dropped.
func StripTags(s string) string {
	z := nethtml.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return b.String()
		case nethtml.TextToken:
			if skip == 0 {
				b.Write(z.Raw())
			}
		case nethtml.StartTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) {
				skip++
			}
		case nethtml.EndTagToken:
			if name, _ := z.TagName(); isRawTextElement(name) && skip > 0 {
				skip--
			}
		}
	}
}

func isRawTextElement(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// SanitizeHTML keeps the markup allowed in user-authored content and drops
// scripts, event handlers and unsafe URLs.
func SanitizeHTML(s string) string {
	return ugcPolicy.Sanitize(s)
}

// ValidateEmail reports whether s is a syntactically valid email address.
func ValidateEmail(s string) bool {
	return s != "" && validation.Var(s, "email") == nil
}

// ValidateURL reports whether s is an absolute URL with a scheme and host.
func ValidateURL(s string) bool {
	if s == "" || validation.Var(s, "url") != nil {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func keep(s string, allowed func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
