// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package legal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/validation"
)

const detailsOption = "legal_details"

// Page slugs.
const (
	SlugImprint = "imprint"
	SlugPrivacy = "privacy-policy"
	SlugCookies = "cookie-policy"
)

// ErrDetailsMissing is returned when generating pages before the company
// name and email are saved.
var ErrDetailsMissing = errors.New("company name and email are required")

// Details identify the site operator.
type Details struct {
	Company  string `json:"company" validate:"max=200"`
	Address  string `json:"address" validate:"max=1000"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Phone    string `json:"phone" validate:"max=50"`
	Owner    string `json:"owner" validate:"max=200"`
	Registry string `json:"registry" validate:"max=200"`
	VATID    string `json:"vat_id" validate:"max=50"`
}

// Pages is the part of the content manager used for generated pages.
type Pages interface {
	PageBySlug(ctx context.Context, slug string) (*models.Page, error)
	CreatePage(ctx context.Context, in content.PageInput) (*models.Page, error)
	UpdatePage(ctx context.Context, id int64, u content.PageUpdate) (*models.Page, error)
}

// CookieSource provides the cookie banner contents for the cookie policy.
type CookieSource interface {
	Banner(ctx context.Context) (*consent.Banner, error)
}

// Generated reports one generated page.
type Generated struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	PageID  int64  `json:"page_id"`
	Created bool   `json:"created"`
}

// Options select the pages to generate.
type Options struct {
	Imprint bool
	Privacy bool
	Cookies bool
}

// Service stores the operator details and generates the pages.
type Service struct {
	db      *database.DB
	pages   Pages
	cookies CookieSource
	siteURL string
	now     func() time.Time
}

// New creates the service. cookies may be nil, which skips the cookie
// policy.
func New(db *database.DB, pages Pages, cookies CookieSource, siteURL string) *Service {
	return &Service{db: db, pages: pages, cookies: cookies, siteURL: siteURL, now: time.Now}
}

// Details loads the saved operator details.
func (s *Service) Details(ctx context.Context) (Details, error) {
	var d Details
	_, err := s.db.GetOptionJSON(ctx, detailsOption, &d)
	return d, err
}

// SaveDetails validates and stores d. Values are stripped of markup.
func (s *Service) SaveDetails(ctx context.Context, d Details) error {
	for _, f := range []*string{&d.Company, &d.Address, &d.Phone, &d.Owner, &d.Registry, &d.VATID} {
		*f = security.Sanitize(*f, security.KindText)
	}
	d.Email = security.Sanitize(d.Email, security.KindEmail)
	if verr := validation.ValidateStruct(d); verr != nil {
		return verr
	}
	return s.db.UpdateOptionJSON(ctx, detailsOption, d)
}

type pageData struct {
	Details    Details
	SiteURL    string
	Updated    string
	Categories []consent.BannerCategory
}

// Generate writes the selected pages as published HTML pages.
func (s *Service) Generate(ctx context.Context, actorID int64, opts Options) ([]Generated, error) {
	d, err := s.Details(ctx)
	if err != nil {
		return nil, err
	}
	if d.Company == "" || d.Email == "" {
		return nil, ErrDetailsMissing
	}
	data := pageData{Details: d, SiteURL: s.siteURL, Updated: s.now().Format("January 2, 2006")}

	type job struct {
		slug, title string
		tmpl        *template.Template
	}
	var jobs []job
	if opts.Imprint {
		jobs = append(jobs, job{SlugImprint, "Imprint", imprintTmpl})
	}
	if opts.Privacy {
		jobs = append(jobs, job{SlugPrivacy, "Privacy Policy", privacyTmpl})
	}
	if opts.Cookies && s.cookies != nil {
		banner, err := s.cookies.Banner(ctx)
		if err != nil {
			return nil, err
		}
		data.Categories = banner.Categories
		jobs = append(jobs, job{SlugCookies, "Cookie Policy", cookiesTmpl})
	}

	out := make([]Generated, 0, len(jobs))
	for _, j := range jobs {
		var buf bytes.Buffer
		if err := j.tmpl.Execute(&buf, data); err != nil {
			return out, fmt.Errorf("failed to render %s: %w", j.slug, err)
		}
		g, err := s.upsert(ctx, actorID, j.slug, j.title, buf.String())
		if err != nil {
			return out, err
		}
		out = append(out, g)
	}
	logging.Ctx(ctx).Info().Int("pages", len(out)).Msg("Legal pages generated")
	return out, nil
}

func (s *Service) upsert(ctx context.Context, actorID int64, slug, title, body string) (Generated, error) {
	format, status := models.FormatHTML, models.ContentPublished
	existing, err := s.pages.PageBySlug(ctx, slug)
	switch {
	case err == nil:
		p, err := s.pages.UpdatePage(ctx, existing.ID, content.PageUpdate{
			Title: &title, Content: &body, Format: &format, Status: &status, EditorID: actorID,
		})
		if err != nil {
			return Generated{}, err
		}
		return Generated{Slug: p.Slug, Title: p.Title, PageID: p.ID}, nil
	case errors.Is(err, content.ErrPageNotFound):
		p, err := s.pages.CreatePage(ctx, content.PageInput{
			Title: title, Content: body, Format: format, Status: status, AuthorID: actorID,
		})
		if err != nil {
			return Generated{}, err
		}
		return Generated{Slug: p.Slug, Title: p.Title, PageID: p.ID, Created: true}, nil
	default:
		return Generated{}, err
	}
}

var imprintTmpl = template.Must(template.New("imprint").Parse(`<h2>Information according to applicable law</h2>
<p><strong>{{.Details.Company}}</strong>{{with .Details.Address}}<br>{{.}}{{end}}</p>
{{with .Details.Owner}}<h3>Represented by</h3>
<p>{{.}}</p>
{{end}}<h3>Contact</h3>
<p>Email: <a href="mailto:{{.Details.Email}}">{{.Details.Email}}</a>{{with .Details.Phone}}<br>Phone: {{.}}{{end}}</p>
{{with .Details.Registry}}<h3>Register entry</h3>
<p>{{.}}</p>
{{end}}{{with .Details.VATID}}<h3>VAT ID</h3>
<p>{{.}}</p>
{{end}}<p><em>Last updated: {{.Updated}}</em></p>
`))

var privacyTmpl = template.Must(template.New("privacy").Parse(`<h2>Privacy Policy</h2>
<p>This policy explains how {{.Details.Company}} processes personal data on {{if .SiteURL}}{{.SiteURL}}{{else}}this website{{end}}.</p>
<h3>Controller</h3>
<p>{{.Details.Company}}{{with .Details.Address}}<br>{{.}}{{end}}<br>Email: <a href="mailto:{{.Details.Email}}">{{.Details.Email}}</a></p>
<h3>Data we process</h3>
<ul>
<li>Server logs with IP address, time and requested page, kept for security.</li>
<li>Account data you provide when registering: username, email and profile fields.</li>
<li>Login attempts, kept to protect accounts against abuse.</li>
<li>Page views, used for aggregate statistics.</li>
</ul>
<h3>Your rights</h3>
<p>You may request a copy of your data or the deletion of your account from the member area at any time, or contact us at <a href="mailto:{{.Details.Email}}">{{.Details.Email}}</a>.</p>
<p><em>Last updated: {{.Updated}}</em></p>
`))

var cookiesTmpl = template.Must(template.New("cookies").Parse(`<h2>Cookie Policy</h2>
<p>This page lists the cookies used on this website, grouped by purpose.</p>
{{range .Categories}}<h3>{{.ID}}{{if .Required}} (always active){{end}}</h3>
{{if .Services}}<ul>
{{range .Services}}<li><strong>{{.Name}}</strong> ({{.Provider}}): {{.Description}}{{with .PrivacyURL}} <a href="{{.}}">Privacy policy</a>{{end}}</li>
{{end}}</ul>
{{end}}{{if .Cookies}}<table>
<tr><th>Cookie</th><th>Provider</th><th>Duration</th></tr>
{{range .Cookies}}<tr><td>{{.Name}}</td><td>{{.Provider}}</td><td>{{.Duration}}</td></tr>
{{end}}</table>
{{end}}{{end}}<p>Questions: <a href="mailto:{{.Details.Email}}">{{.Details.Email}}</a></p>
<p><em>Last updated: {{.Updated}}</em></p>
`))
