// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package consent

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/validation"
)

// Cookie categories, in banner order.
const (
	CategoryEssential  = "essential"
	CategoryFunctional = "functional"
	CategoryAnalytics  = "analytics"
	CategoryMarketing  = "marketing"
)

// Categories lists every category in banner order.
var Categories = []string{CategoryEssential, CategoryFunctional, CategoryAnalytics, CategoryMarketing}

// Option names.
const (
	optSettings = "cookie_consent_settings"
	optActive   = "cookie_active_services"
	optManual   = "cookie_manual_list"
	optScan     = "cookie_scan_result"
)

var (
	ErrUnknownCategory = errors.New("unknown cookie category")
	ErrCookieName      = errors.New("cookie name is required")
	ErrCookieNotFound  = errors.New("cookie not found")
)

//go:embed library.yaml
var libraryYAML []byte

// ServiceInfo describes a third-party service and the cookies it sets.
type ServiceInfo struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Provider    string   `yaml:"provider" json:"provider"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	Cookies     []string `yaml:"cookies" json:"cookies"`
	PrivacyURL  string   `yaml:"privacy_url" json:"privacy_url,omitempty"`
}

var (
	libraryOnce sync.Once
	library     []ServiceInfo
)

// Library returns the known services.
func Library() []ServiceInfo {
	libraryOnce.Do(func() {
		if err := yaml.Unmarshal(libraryYAML, &library); err != nil {
			panic(fmt.Sprintf("consent: invalid embedded service library: %v", err))
		}
	})
	return slices.Clone(library)
}

func libraryService(id string) (ServiceInfo, bool) {
	for _, svc := range Library() {
		if svc.ID == id {
			return svc, true
		}
	}
	return ServiceInfo{}, false
}

// Cookie is a cookie listed by hand or found by a scan.
type Cookie struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Category string `json:"category"`
	Duration string `json:"duration,omitempty"`
	Type     string `json:"type"` // manual, first_party, third_party
	Source   string `json:"source,omitempty"`
}

// ScanResult is the outcome of the last Scan.
type ScanResult struct {
	ScannedAt time.Time `json:"scanned_at"`
	URL       string    `json:"url"`
	Cookies   []Cookie  `json:"cookies"`
}

// Settings control the consent banner.
type Settings struct {
	Enabled       bool   `json:"enabled"`
	Position      string `json:"position" validate:"oneof=bottom top bottom-left bottom-right"`
	BannerText    string `json:"banner_text" validate:"max=2000"`
	AcceptText    string `json:"accept_text" validate:"required,max=60"`
	EssentialText string `json:"essential_text" validate:"required,max=60"`
	PolicyURL     string `json:"policy_url" validate:"max=500"`
	PrimaryColor  string `json:"primary_color" validate:"hexcolor"`
}

// DefaultSettings apply until settings are saved.
func DefaultSettings() Settings {
	return Settings{
		Position:      "bottom",
		BannerText:    "We use cookies to run this site and, with your consent, to measure and improve it.",
		AcceptText:    "Accept all",
		EssentialText: "Essential only",
		PolicyURL:     "/cookie-policy",
		PrimaryColor:  "#3b82f6",
	}
}

// Service manages the consent banner configuration.
type Service struct {
	db      *database.DB
	scanner *Scanner
	now     func() time.Time
}

// New creates the service. scanner may be nil to disable scans.
func New(db *database.DB, scanner *Scanner) *Service {
	return &Service{db: db, scanner: scanner, now: time.Now}
}

// Settings loads the saved settings over the defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	st := DefaultSettings()
	if _, err := s.db.GetOptionJSON(ctx, optSettings, &st); err != nil {
		return DefaultSettings(), err
	}
	return st, nil
}

// SaveSettings validates and stores st. Texts are stripped of markup.
func (s *Service) SaveSettings(ctx context.Context, st Settings) error {
	st.BannerText = security.Sanitize(st.BannerText, security.KindText)
	st.AcceptText = security.Sanitize(st.AcceptText, security.KindText)
	st.EssentialText = security.Sanitize(st.EssentialText, security.KindText)
	st.PolicyURL = security.Sanitize(st.PolicyURL, security.KindURL)
	if verr := validation.ValidateStruct(st); verr != nil {
		return verr
	}
	return s.db.UpdateOptionJSON(ctx, optSettings, st)
}

// ActiveServices returns the ids of the services shown in the banner.
// Essential services are always included.
func (s *Service) ActiveServices(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := s.db.GetOptionJSON(ctx, optActive, &ids); err != nil {
		return nil, err
	}
	return normalizeServices(ids), nil
}

// SetActiveServices stores ids. Unknown ids are dropped and essential
// services are added.
func (s *Service) SetActiveServices(ctx context.Context, ids []string) ([]string, error) {
	ids = normalizeServices(ids)
	return ids, s.db.UpdateOptionJSON(ctx, optActive, ids)
}

func normalizeServices(ids []string) []string {
	out := []string{}
	for _, svc := range Library() {
		if svc.Category == CategoryEssential || slices.Contains(ids, svc.ID) {
			out = append(out, svc.ID)
		}
	}
	return out
}

// ManualCookies returns the hand-maintained cookie list.
func (s *Service) ManualCookies(ctx context.Context) ([]Cookie, error) {
	var list []Cookie
	_, err := s.db.GetOptionJSON(ctx, optManual, &list)
	return list, err
}

// AddManualCookie appends c to the manual list. An empty category means
// essential.
func (s *Service) AddManualCookie(ctx context.Context, c Cookie) error {
	c.Name = strings.TrimSpace(security.Sanitize(c.Name, security.KindText))
	c.Provider = strings.TrimSpace(security.Sanitize(c.Provider, security.KindText))
	c.Duration = strings.TrimSpace(security.Sanitize(c.Duration, security.KindText))
	if c.Name == "" {
		return ErrCookieName
	}
	if c.Category == "" {
		c.Category = CategoryEssential
	}
	if !slices.Contains(Categories, c.Category) {
		return ErrUnknownCategory
	}
	c.Type, c.Source = "manual", ""
	list, err := s.ManualCookies(ctx)
	if err != nil {
		return err
	}
	return s.db.UpdateOptionJSON(ctx, optManual, append(list, c))
}

// DeleteManualCookie removes the entry at index.
func (s *Service) DeleteManualCookie(ctx context.Context, index int) error {
	list, err := s.ManualCookies(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return ErrCookieNotFound
	}
	return s.db.UpdateOptionJSON(ctx, optManual, slices.Delete(list, index, index+1))
}

// LastScan returns the stored scan result, or nil before the first scan.
func (s *Service) LastScan(ctx context.Context) (*ScanResult, error) {
	var res ScanResult
	ok, err := s.db.GetOptionJSON(ctx, optScan, &res)
	if err != nil || !ok {
		return nil, err
	}
	return &res, nil
}

// Scan fetches the site with the scanner and stores the result.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	if s.scanner == nil {
		return nil, errors.New("cookie scanner is not configured")
	}
	res, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	res.ScannedAt = s.now().UTC()
	if err := s.db.UpdateOptionJSON(ctx, optScan, res); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateScanCategory changes the category of a scanned cookie.
func (s *Service) UpdateScanCategory(ctx context.Context, name, category string) error {
	if !slices.Contains(Categories, category) {
		return ErrUnknownCategory
	}
	res, err := s.LastScan(ctx)
	if err != nil {
		return err
	}
	if res == nil {
		return ErrCookieNotFound
	}
	i := slices.IndexFunc(res.Cookies, func(c Cookie) bool { return c.Name == name })
	if i < 0 {
		return ErrCookieNotFound
	}
	res.Cookies[i].Category = category
	return s.db.UpdateOptionJSON(ctx, optScan, res)
}

// BannerCategory groups the services and cookies of one category.
type BannerCategory struct {
	ID       string        `json:"id"`
	Required bool          `json:"required"`
	Services []ServiceInfo `json:"services"`
	Cookies  []Cookie      `json:"cookies"`
}

// Banner is the public banner configuration.
type Banner struct {
	Settings   Settings         `json:"settings"`
	Categories []BannerCategory `json:"categories"`
}

// Banner assembles the banner: active services, manual cookies and
// scanned cookies grouped by category. Empty categories other than
// essential are left out.
func (s *Service) Banner(ctx context.Context) (*Banner, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.ActiveServices(ctx)
	if err != nil {
		return nil, err
	}
	cookies, err := s.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	b := &Banner{Settings: st}
	for _, cat := range Categories {
		bc := BannerCategory{ID: cat, Required: cat == CategoryEssential, Services: []ServiceInfo{}, Cookies: []Cookie{}}
		for _, id := range active {
			if svc, ok := libraryService(id); ok && svc.Category == cat {
				bc.Services = append(bc.Services, svc)
			}
		}
		for _, c := range cookies {
			if c.Category == cat {
				bc.Cookies = append(bc.Cookies, c)
			}
		}
		if cat == CategoryEssential || len(bc.Services) > 0 || len(bc.Cookies) > 0 {
			b.Categories = append(b.Categories, bc)
		}
	}
	return b, nil
}

// Cookies merges the manual list with the last scan. Manual entries win
// on equal names.
func (s *Service) Cookies(ctx context.Context) ([]Cookie, error) {
	manual, err := s.ManualCookies(ctx)
	if err != nil {
		return nil, err
	}
	scan, err := s.LastScan(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(manual)
	if scan != nil {
		for _, c := range scan.Cookies {
			if !slices.ContainsFunc(out, func(m Cookie) bool { return m.Name == c.Name }) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
