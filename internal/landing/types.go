// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package landing

import "strconv"

// Section types stored in landing_sections.type.
const (
	TypeHeader          = "header"
	TypeFeature         = "feature"
	TypeFooter          = "footer"
	TypeContent         = "content"
	TypeSettings        = "settings"
	TypeDesign          = "design"
	TypePluginOverrides = "plugin_overrides"
)

// Areas a plugin can take over.
var Areas = []string{"header", "content", "footer"}

// Colors are the landing page palette. They are stored with the header.
type Colors struct {
	HeroGradientStart string `json:"hero_gradient_start" validate:"hexcolor"`
	HeroGradientEnd   string `json:"hero_gradient_end" validate:"hexcolor"`
	HeroBorder        string `json:"hero_border" validate:"hexcolor"`
	HeroText          string `json:"hero_text" validate:"hexcolor"`
	FeaturesBg        string `json:"features_bg" validate:"hexcolor"`
	FeatureCardBg     string `json:"feature_card_bg" validate:"hexcolor"`
	FeatureCardHover  string `json:"feature_card_hover" validate:"hexcolor"`
	PrimaryButton     string `json:"primary_button" validate:"hexcolor"`
}

// Button is a call-to-action link in the header.
type Button struct {
	Text string `json:"text" validate:"required,max=60"`
	URL  string `json:"url" validate:"required"`
}

// Header is the hero section.
type Header struct {
	ID           int64    `json:"id,omitempty"`
	Title        string   `json:"title" validate:"max=200"`
	Subtitle     string   `json:"subtitle" validate:"max=200"`
	Description  string   `json:"description" validate:"max=2000"`
	LogoPosition string   `json:"logo_position" validate:"oneof=top left right"`
	Layout       string   `json:"header_layout" validate:"oneof=standard centered split"`
	Buttons      []Button `json:"header_buttons" validate:"max=4,dive"`
	GithubURL    string   `json:"github_url" validate:"omitempty,url"`
	GithubText   string   `json:"github_text"`
	GitlabURL    string   `json:"gitlab_url" validate:"omitempty,url"`
	GitlabText   string   `json:"gitlab_text"`
	Version      string   `json:"version"`
	Logo         string   `json:"logo"`
	Colors       Colors   `json:"colors"`
}

// Feature is one feature card.
type Feature struct {
	ID          int64  `json:"id,omitempty"`
	Icon        string `json:"icon" validate:"max=16"`
	Title       string `json:"title" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	SortOrder   int    `json:"sort_order"`
}

// Footer is the landing page footer.
type Footer struct {
	ID         int64  `json:"id,omitempty"`
	Content    string `json:"content"`
	Copyright  string `json:"copyright"`
	ShowFooter bool   `json:"show_footer"`
}

// Content kinds for ContentSettings.Type.
const (
	ContentFeatures = "features"
	ContentText     = "text"
	ContentPosts    = "posts"
)

// ContentSettings chooses what fills the middle of the page.
type ContentSettings struct {
	ID         int64  `json:"id,omitempty"`
	Type       string `json:"content_type" validate:"oneof=features text posts"`
	Text       string `json:"content_text"`
	PostsCount int    `json:"posts_count"`
}

// Settings toggle sections and name the page slug.
type Settings struct {
	ID                int64  `json:"id,omitempty"`
	ShowHeader        bool   `json:"show_header"`
	ShowContent       bool   `json:"show_content"`
	ShowFooterSection bool   `json:"show_footer_section"`
	LandingSlug       string `json:"landing_slug" validate:"omitempty,slug"`
	MaintenanceMode   bool   `json:"maintenance_mode"`
}

// Design holds shape, layout and spacing tokens.
type Design struct {
	ID                 int64  `json:"id,omitempty"`
	CardBorderRadius   int    `json:"card_border_radius"`
	ButtonBorderRadius int    `json:"button_border_radius"`
	CardIconLayout     string `json:"card_icon_layout" validate:"oneof=top left"`
	CardBorderColor    string `json:"card_border_color" validate:"hexcolor"`
	CardBorderWidth    string `json:"card_border_width"`
	CardShadow         string `json:"card_shadow" validate:"oneof=none sm md lg"`
	FeatureColumns     string `json:"feature_columns" validate:"oneof=auto 2 3 4"`
	HeroPadding        string `json:"hero_padding" validate:"oneof=sm md lg"`
	FeaturePadding     string `json:"feature_padding" validate:"oneof=sm md lg"`
	FooterBg           string `json:"footer_bg" validate:"hexcolor"`
	FooterTextColor    string `json:"footer_text_color" validate:"hexcolor"`
	ContentSectionBg   string `json:"content_section_bg" validate:"hexcolor"`
}

// PluginOverrides maps an area to the plugin rendering it. An empty id
// means the built-in section.
type PluginOverrides struct {
	ID             int64                     `json:"id,omitempty"`
	Header         string                    `json:"header"`
	Content        string                    `json:"content"`
	Footer         string                    `json:"footer"`
	PluginSettings map[string]map[string]any `json:"plugin_settings"`
}

// Plugin is a landing page renderer offered through the
// landing_page_plugins filter.
type Plugin struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Author      string   `json:"author,omitempty"`
	Targets     []string `json:"targets"`
}

// Page is everything a theme needs to render the landing page.
type Page struct {
	Header    Header          `json:"header"`
	Features  []Feature       `json:"features"`
	Content   ContentSettings `json:"content"`
	Footer    Footer          `json:"footer"`
	Settings  Settings        `json:"settings"`
	Design    Design          `json:"design"`
	Overrides PluginOverrides `json:"overrides"`
}

// DefaultColors returns the stock palette.
func DefaultColors() Colors {
	return Colors{
		HeroGradientStart: "#1e293b",
		HeroGradientEnd:   "#0f172a",
		HeroBorder:        "#3b82f6",
		HeroText:          "#ffffff",
		FeaturesBg:        "#f8fafc",
		FeatureCardBg:     "#ffffff",
		FeatureCardHover:  "#3b82f6",
		PrimaryButton:     "#3b82f6",
	}
}

// DefaultHeader returns the stock hero section.
func DefaultHeader() Header {
	return Header{
		Title:        "Inkwell",
		Subtitle:     "Content management and membership",
		Description:  "A fast, secure and extensible CMS for professional websites.",
		LogoPosition: "top",
		Layout:       "standard",
		Buttons:      []Button{},
		GithubText:   "GitHub project",
		GitlabText:   "GitLab project",
		Version:      "2.0.0",
		Colors:       DefaultColors(),
	}
}

// DefaultFeatures returns the stock feature cards.
func DefaultFeatures() []Feature {
	cards := [][3]string{
		{"🚀", "Fast", "Optimized for quick page loads"},
		{"🔒", "Secure", "Modern security defaults and hashing"},
		{"📱", "Responsive", "Looks right on every device"},
		{"🎨", "Customizable", "Flexible theme system"},
		{"🔌", "Extensible", "Plugins for everything else"},
		{"📊", "Analytics", "Built-in statistics and monitoring"},
		{"👥", "Multi-user", "Role based user management"},
		{"🌐", "SEO ready", "Sitemaps, robots.txt and meta tags"},
		{"⚡", "REST API", "JSON API for integrations"},
		{"💾", "Backups", "Scheduled database and file backups"},
		{"🔄", "Updates", "Release checks for core, plugins and themes"},
		{"📝", "Editor", "Markdown and HTML content"},
	}
	out := make([]Feature, len(cards))
	for i, c := range cards {
		out[i] = Feature{Icon: c[0], Title: c[1], Description: c[2], SortOrder: i + 1}
	}
	return out
}

// DefaultFooter returns the stock footer.
func DefaultFooter(year int) Footer {
	return Footer{
		Content:    "<p>Contact us for more information.</p>",
		Copyright:  "© " + strconv.Itoa(year) + " Inkwell",
		ShowFooter: true,
	}
}

// DefaultContentSettings shows the feature grid.
func DefaultContentSettings() ContentSettings {
	return ContentSettings{Type: ContentFeatures, PostsCount: 5}
}

// DefaultSettings shows every section.
func DefaultSettings() Settings {
	return Settings{ShowHeader: true, ShowContent: true, ShowFooterSection: true}
}

// DefaultDesign returns the stock design tokens.
func DefaultDesign() Design {
	return Design{
		CardBorderRadius:   12,
		ButtonBorderRadius: 8,
		CardIconLayout:     "top",
		CardBorderColor:    "#e2e8f0",
		CardBorderWidth:    "1px",
		CardShadow:         "sm",
		FeatureColumns:     "auto",
		HeroPadding:        "md",
		FeaturePadding:     "md",
		FooterBg:           "#1e293b",
		FooterTextColor:    "#94a3b8",
		ContentSectionBg:   "#ffffff",
	}
}
