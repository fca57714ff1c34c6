// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package seo

import (
	"context"
	"encoding/xml"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
)

// settingPrefix prefixes every SEO option name.
const settingPrefix = "seo_"

// Config describes the site.
type Config struct {
	SiteName   string
	SiteURL    string
	AdminEmail string
	Language   string
	// PublicDir receives sitemap.xml and robots.txt from SaveSitemap and
	// SaveRobotsTxt.
	PublicDir string
}

// Service is the SEO service.
type Service struct {
	db  *database.DB
	cfg Config
	now func() time.Time
}

// New creates the service.
func New(db *database.DB, cfg Config) *Service {
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &Service{db: db, cfg: cfg, now: time.Now}
}

// Setting reads seo_<key>.
func (s *Service) Setting(ctx context.Context, key, def string) string {
	return s.db.GetOption(ctx, settingPrefix+key, def)
}

// OrganizationSchema renders the site Organization JSON-LD.
func (s *Service) OrganizationSchema(ctx context.Context) template.HTML {
	var sameAs []string
	if tw := strings.TrimLeft(s.Setting(ctx, "twitter_site", ""), "@"); tw != "" {
		sameAs = append(sameAs, "https://twitter.com/"+tw)
	}
	email := s.cfg.AdminEmail
	if email == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(s.cfg.SiteURL, "https://"), "http://")
		email = "info@" + strings.SplitN(host, "/", 2)[0]
	}
	return Script(Organization(s.cfg.SiteName, s.cfg.SiteURL, s.cfg.SiteURL+"/assets/images/logo.png",
		s.Setting(ctx, "meta_description", ""), email, sameAs))
}

// WebSiteSchema renders the WebSite JSON-LD with the search action.
func (s *Service) WebSiteSchema() template.HTML {
	return Script(WebSite(s.cfg.SiteName, s.cfg.SiteURL))
}

// WebPageSchema renders the WebPage JSON-LD of one page.
func (s *Service) WebPageSchema(title, description, url string) template.HTML {
	return Script(WebPage(title, description, url, s.cfg.Language, s.cfg.SiteName, s.cfg.SiteURL))
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	Priority   string `xml:"priority"`
	ChangeFreq string `xml:"changefreq"`
}

// Sitemap renders sitemap.xml: the home page, published pages and
// published posts.
func (s *Service) Sitemap(ctx context.Context) ([]byte, error) {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{
		Loc: s.cfg.SiteURL + "/", LastMod: s.now().UTC().Format(time.DateOnly), Priority: "1.0", ChangeFreq: "daily",
	})

	pages, err := s.published(ctx, `SELECT slug, COALESCE(updated_at, created_at) FROM pages
		WHERE status = ? AND slug <> 'home' ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.cfg.SiteURL + "/" + p.slug, LastMod: p.lastMod, Priority: "0.8", ChangeFreq: "weekly"})
	}
	posts, err := s.published(ctx, `SELECT slug, COALESCE(updated_at, created_at) FROM posts
		WHERE status = ? ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.cfg.SiteURL + "/blog/" + p.slug, LastMod: p.lastMod, Priority: "0.6", ChangeFreq: "monthly"})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

type sitemapRow struct {
	slug    string
	lastMod string
}

func (s *Service) published(ctx context.Context, query string) ([]sitemapRow, error) {
	rows, err := s.db.Conn().QueryContext(ctx, query, models.ContentPublished)
	if err != nil {
		return nil, fmt.Errorf("failed to list sitemap entries: %w", err)
	}
	defer database.CloseRows(rows)
	var out []sitemapRow
	for rows.Next() {
		var (
			r  sitemapRow
			ts time.Time
		)
		if err := rows.Scan(&r.slug, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan sitemap entry: %w", err)
		}
		r.lastMod = ts.UTC().Format(time.DateOnly)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RobotsTxt returns the custom robots.txt when one is stored, otherwise the
// default that keeps crawlers out of admin, member and API paths.
func (s *Service) RobotsTxt(ctx context.Context) string {
	if custom := s.Setting(ctx, "robots_txt_content", ""); strings.TrimSpace(custom) != "" {
		return custom
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# robots.txt for %s\n\n", s.cfg.SiteName)
	b.WriteString("User-agent: *\nAllow: /\n")
	for _, p := range []string{"/admin/", "/member/", "/api/"} {
		b.WriteString("Disallow: " + p + "\n")
	}
	b.WriteString("\nSitemap: " + s.cfg.SiteURL + "/sitemap.xml\n")
	return b.String()
}

// SaveSitemap writes sitemap.xml into the public directory.
func (s *Service) SaveSitemap(ctx context.Context) error {
	data, err := s.Sitemap(ctx)
	if err != nil {
		return err
	}
	return s.writePublic("sitemap.xml", data)
}

// SaveRobotsTxt writes robots.txt into the public directory.
func (s *Service) SaveRobotsTxt(ctx context.Context) error {
	return s.writePublic("robots.txt", []byte(s.RobotsTxt(ctx)))
}

func (s *Service) writePublic(name string, data []byte) error {
	if s.cfg.PublicDir == "" {
		return fmt.Errorf("no public directory configured")
	}
	if err := os.MkdirAll(s.cfg.PublicDir, 0o750); err != nil {
		return fmt.Errorf("failed to create public directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cfg.PublicDir, name), data, 0o644); err != nil { //nolint:gosec // public file
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// CustomHeaderCode returns the raw header code configured by an admin.
func (s *Service) CustomHeaderCode(ctx context.Context) template.HTML {
	return template.HTML(s.Setting(ctx, "custom_header_code", "")) //nolint:gosec // admin-authored markup
}

var trackingID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (s *Service) analyticsID(ctx context.Context, key string) string {
	id := strings.TrimSpace(s.Setting(ctx, "analytics_"+key, ""))
	if !trackingID.MatchString(id) {
		return ""
	}
	return id
}

func (s *Service) analyticsOn(ctx context.Context, key string) bool {
	return s.db.GetOptionBool(ctx, settingPrefix+"analytics_"+key, false)
}

func (s *Service) excluded(ctx context.Context, u *models.User) bool {
	return u.IsAdmin() && s.analyticsOn(ctx, "exclude_admins")
}
