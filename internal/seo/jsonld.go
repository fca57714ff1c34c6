// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package seo

import (
	"html/template"
	"strings"

	"github.com/goccy/go-json"
)

// Script wraps a schema in a JSON-LD script tag. "</" inside string values
// is escaped so a value cannot close the tag.
func Script(schema map[string]any) template.HTML {
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return ""
	}
	body := strings.ReplaceAll(string(b), "</", `<\/`)
	return template.HTML("<script type=\"application/ld+json\">\n" + body + "\n</script>") //nolint:gosec // JSON-encoded
}

// Organization returns an Organization schema.
func Organization(name, url, logoURL, description, email string, sameAs []string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
		"url":      url,
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	if description != "" {
		m["description"] = description
	}
	if email != "" {
		m["email"] = email
	}
	if sameAs == nil {
		sameAs = []string{}
	}
	m["sameAs"] = sameAs
	return m
}

// WebSite returns a WebSite schema with a SearchAction on /search.
func WebSite(name, url string) map[string]any {
	return map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
		"url":      url,
		"potentialAction": map[string]any{
			"@type":       "SearchAction",
			"target":      url + "/search?q={search_term_string}",
			"query-input": "required name=search_term_string",
		},
	}
}

// WebPage returns a WebPage schema that is part of the site.
func WebPage(title, description, url, language, siteName, siteURL string) map[string]any {
	return map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebPage",
		"name":        title,
		"description": description,
		"url":         url,
		"inLanguage":  language,
		"isPartOf": map[string]any{
			"@type": "WebSite",
			"name":  siteName,
			"url":   siteURL,
		},
	}
}
