// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package consent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// maxScanBody caps the HTML read by a scan.
const maxScanBody = 2 << 20

// signature maps a script or embed URL fragment to the cookie it implies.
type signature struct {
	match    string
	cookie   string
	source   string
	category string
	provider string
}

var signatures = []signature{
	{"google-analytics.com", "_ga*", "Google Analytics", CategoryAnalytics, "Google LLC"},
	{"googletagmanager.com", "_gtm*", "Google Tag Manager", CategoryAnalytics, "Google LLC"},
	{"facebook.com/tr", "_fbp*", "Meta Pixel", CategoryMarketing, "Meta Platforms Inc."},
	{"connect.facebook.net", "_fbp*", "Meta Pixel", CategoryMarketing, "Meta Platforms Inc."},
	{"youtube.com/embed", "VISITOR_INFO1_LIVE*", "YouTube", CategoryFunctional, "Google LLC"},
	{"doubleclick.net", "IDE*", "Google Ads", CategoryMarketing, "Google LLC"},
	{"matomo", "_pk_id*", "Matomo", CategoryAnalytics, "Matomo.org"},
}

// Scanner fetches a page and reports the cookies it sets or implies.
type Scanner struct {
	url    string
	client *http.Client
}

// NewScanner scans url. A nil client uses a ten second timeout.
func NewScanner(url string, client *http.Client) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Scanner{url: url, client: client}
}

// Scan fetches the page once. Cookies set by the response are first
// party and essential; cookies implied by known script URLs in the body
// are third party.
func (sc *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("User-Agent", "Inkwell-CookieScanner/1.0")
	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", sc.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", sc.url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScanBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sc.url, err)
	}

	found := map[string]Cookie{}
	for _, c := range resp.Cookies() {
		found[c.Name] = Cookie{
			Name: c.Name, Provider: "Site owner", Category: CategoryEssential,
			Type: "first_party", Source: "Set-Cookie",
		}
	}
	html := strings.ToLower(string(body))
	for _, sig := range signatures {
		if _, ok := found[sig.cookie]; ok || !strings.Contains(html, sig.match) {
			continue
		}
		found[sig.cookie] = Cookie{
			Name: sig.cookie, Provider: sig.provider, Category: sig.category,
			Type: "third_party", Source: sig.source,
		}
	}

	res := &ScanResult{URL: sc.url, Cookies: make([]Cookie, 0, len(found))}
	for _, c := range found {
		res.Cookies = append(res.Cookies, c)
	}
	sort.Slice(res.Cookies, func(i, j int) bool { return res.Cookies[i].Name < res.Cookies[j].Name })
	return res, nil
}
