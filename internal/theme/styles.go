// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// siteStyleOptions maps site options onto CSS custom properties.
var siteStyleOptions = []struct {
	option, variable, unit string
}{
	{"color_primary", "--primary-color", ""},
	{"color_secondary", "--secondary-color", ""},
	{"color_bg", "--background-color", ""},
	{"color_text", "--text-color", ""},
	{"font_family", "--font-family", ""},
	{"font_size", "--font-size-base", "px"},
}

// CustomStyles returns the :root block built from the site style options
// followed by the customizer CSS. Values are escaped.
func (m *Manager) CustomStyles(ctx context.Context) string {
	var b strings.Builder
	var vars []string
	for _, s := range siteStyleOptions {
		v := cssValue(m.db.GetOption(ctx, s.option, ""))
		if v == "" {
			continue
		}
		vars = append(vars, fmt.Sprintf("    %s: %s%s;\n", s.variable, v, s.unit))
	}
	if len(vars) > 0 {
		b.WriteString(":root {\n")
		for _, v := range vars {
			b.WriteString(v)
		}
		b.WriteString("}\n")
	}
	b.WriteString(m.customizer.GenerateCSS(ctx))
	return b.String()
}

var fontStacks = map[string]string{
	"inter":      "'Inter', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"roboto":     "'Roboto', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"open-sans":  "'Open Sans', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"lato":       "'Lato', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"montserrat": "'Montserrat', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"poppins":    "'Poppins', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
	"raleway":    "'Raleway', -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif",
}

// FontStack returns the CSS font-family list for a font key. Unknown keys
// get the Inter stack.
func FontStack(font string) string {
	if s, ok := fontStacks[font]; ok {
		return s
	}
	return fontStacks["inter"]
}

type cssVar struct {
	key  string
	vars []string
	unit string
}

var (
	colorVars = []cssVar{
		{"primary_color", []string{"--primary-color"}, ""},
		{"secondary_color", []string{"--secondary-color", "--primary-hover"}, ""},
		{"accent_color", []string{"--accent-color"}, ""},
		{"text_color", []string{"--text-color", "--text-primary"}, ""},
		{"bg_color", []string{"--background-color", "--bg-secondary", "--light-bg"}, ""},
		{"link_color", []string{"--link-color"}, ""},
		{"link_hover_color", []string{"--link-hover-color"}, ""},
		{"muted_color", []string{"--muted-color"}, ""},
		{"border_color", []string{"--border-color"}, ""},
		{"success_color", []string{"--success-color"}, ""},
		{"error_color", []string{"--error-color"}, ""},
	}
	headerVars = []cssVar{
		{"header_bg_color", []string{"--header-bg", "--header-bg-color"}, ""},
		{"header_text_color", []string{"--header-text", "--header-text-color"}, ""},
		{"header_height", []string{"--header-height"}, "px"},
		{"logo_max_height", []string{"--logo-max-height"}, "px"},
	}
	footerVars = []cssVar{
		{"footer_bg_color", []string{"--footer-bg", "--footer-bg-color"}, ""},
		{"footer_text_color", []string{"--footer-text", "--footer-text-color"}, ""},
		{"footer_link_color", []string{"--footer-link", "--footer-link-color"}, ""},
	}
	buttonVars = []cssVar{
		{"button_border_radius", []string{"--button-border-radius"}, "px"},
		{"button_padding_x", []string{"--button-padding-x"}, "rem"},
		{"button_padding_y", []string{"--button-padding-y"}, "rem"},
		{"button_font_weight", []string{"--button-font-weight"}, ""},
		{"button_transform", []string{"--button-text-transform"}, ""},
	}
)

func writeVars(b *strings.Builder, comment string, values map[string]string, defs []cssVar) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "    /* %s */\n", comment)
	for _, d := range defs {
		v := cssValue(values[d.key])
		if v == "" {
			continue
		}
		for _, name := range d.vars {
			fmt.Fprintf(b, "    %s: %s%s;\n", name, v, d.unit)
		}
	}
	b.WriteString("\n")
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// GenerateCSS renders the site-wide settings as CSS custom properties and
// the element rules that use them, followed by advanced.custom_css.
func (c *Customizer) GenerateCSS(ctx context.Context) string {
	colors := c.stored("colors")
	header := c.stored("header")
	footer := c.stored("footer")
	typo := c.stored("typography")
	layout := c.stored("layout")
	buttons := c.stored("buttons")

	var b strings.Builder
	b.WriteString("/* Theme Customizations */\n:root {\n")
	writeVars(&b, "Colors", colors, colorVars)
	writeVars(&b, "Header", header, headerVars)
	writeVars(&b, "Footer", footer, footerVars)

	baseFont := typo["font_family_base"]
	headingFont := typo["font_family_heading"]
	if len(typo) > 0 {
		b.WriteString("    /* Typography */\n")
		if baseFont != "" && baseFont != "system" {
			stack := FontStack(baseFont)
			fmt.Fprintf(&b, "    --font-body: %s;\n    --font-menu: %s;\n    --font-family-base: %s;\n", stack, stack, stack)
		}
		if headingFont != "" && headingFont != "system" {
			stack := FontStack(headingFont)
			fmt.Fprintf(&b, "    --font-heading: %s;\n    --font-family-heading: %s;\n", stack, stack)
		}
		if v := cssValue(typo["font_size_base"]); v != "" {
			fmt.Fprintf(&b, "    --font-size-base: %spx;\n", v)
		}
		if v := cssValue(typo["line_height_base"]); v != "" {
			fmt.Fprintf(&b, "    --line-height-base: %s;\n", v)
		}
		if v := cssValue(typo["font_weight_heading"]); v != "" {
			fmt.Fprintf(&b, "    --font-weight-heading: %s;\n", v)
		}
		b.WriteString("\n")
	}

	if len(layout) > 0 {
		b.WriteString("    /* Layout */\n")
		if v := cssValue(layout["container_width"]); v != "" {
			fmt.Fprintf(&b, "    --container-max-width: %spx;\n    --container-width: %spx;\n", v, v)
		}
		if v := cssValue(layout["content_padding"]); v != "" {
			fmt.Fprintf(&b, "    --container-padding: %srem;\n    --content-padding: %srem;\n", v, v)
		}
		if r, err := strconv.Atoi(strings.TrimSpace(layout["border_radius"])); err == nil && r > 0 {
			fmt.Fprintf(&b, "    --border-radius: %dpx;\n    --radius-sm: %dpx;\n    --radius-md: %dpx;\n    --radius-lg: %dpx;\n",
				r, max(2, r/2), r, r*2)
		}
		if v := cssValue(layout["section_spacing"]); v != "" {
			fmt.Fprintf(&b, "    --section-spacing: %srem;\n", v)
		}
		b.WriteString("\n")
	}
	writeVars(&b, "Buttons", buttons, buttonVars)
	b.WriteString("}\n\n")

	if baseFont != "" && baseFont != "system" {
		b.WriteString("body {\n    font-family: var(--font-body);\n")
		if typo["font_size_base"] != "" {
			b.WriteString("    font-size: var(--font-size-base, 16px);\n")
		}
		if typo["line_height_base"] != "" {
			b.WriteString("    line-height: var(--line-height-base, 1.6);\n")
		}
		b.WriteString("}\n\n")
	}
	if headingFont != "" && headingFont != "system" {
		b.WriteString("h1, h2, h3, h4, h5, h6 {\n    font-family: var(--font-heading, inherit);\n")
		if typo["font_weight_heading"] != "" {
			b.WriteString("    font-weight: var(--font-weight-heading, 700);\n")
		}
		b.WriteString("}\n\n")
	}
	if layout["container_width"] != "" {
		b.WriteString(".container {\n    max-width: var(--container-max-width, 1200px);\n")
		if layout["content_padding"] != "" {
			b.WriteString("    padding-left: var(--container-padding, 2rem);\n    padding-right: var(--container-padding, 2rem);\n")
		}
		b.WriteString("}\n\n")
	}
	if truthy(layout["enable_sticky_header"]) {
		b.WriteString(".site-header {\n    position: sticky;\n    top: 0;\n    z-index: 1000;\n}\n\n")
	}
	if header["header_bg_color"] != "" {
		b.WriteString(".site-header {\n    background: var(--header-bg);\n")
		if header["header_text_color"] != "" {
			b.WriteString("    color: var(--header-text);\n")
		}
		if header["header_height"] != "" {
			b.WriteString("    min-height: var(--header-height);\n")
		}
		if truthy(header["show_header_shadow"]) {
			b.WriteString("    box-shadow: 0 2px 8px rgba(0,0,0,0.15);\n")
		}
		b.WriteString("}\n\n")
		if header["header_text_color"] != "" {
			b.WriteString(".main-nav a, .site-header .nav a {\n    color: var(--header-text);\n}\n\n")
		}
	}
	if header["logo_max_height"] != "" {
		b.WriteString(".site-logo img, .site-logo svg {\n    max-height: var(--logo-max-height, 48px);\n}\n\n")
	}
	if footer["footer_bg_color"] != "" {
		b.WriteString(".site-footer {\n    background: var(--footer-bg);\n")
		if footer["footer_text_color"] != "" {
			b.WriteString("    color: var(--footer-text);\n")
		}
		b.WriteString("}\n\n")
		if footer["footer_link_color"] != "" {
			b.WriteString(".site-footer a {\n    color: var(--footer-link);\n}\n\n")
		}
	}
	if buttons["button_border_radius"] != "" || buttons["button_padding_x"] != "" {
		b.WriteString(".btn, button.btn, a.btn {\n")
		if buttons["button_border_radius"] != "" {
			b.WriteString("    border-radius: var(--button-border-radius);\n")
		}
		if buttons["button_padding_x"] != "" && buttons["button_padding_y"] != "" {
			b.WriteString("    padding: var(--button-padding-y) var(--button-padding-x);\n")
		}
		if buttons["button_font_weight"] != "" {
			b.WriteString("    font-weight: var(--button-font-weight);\n")
		}
		if buttons["button_transform"] != "" {
			b.WriteString("    text-transform: var(--button-text-transform);\n")
		}
		b.WriteString("}\n\n")
	}

	if custom := c.Get(ctx, "advanced", "custom_css", ""); strings.TrimSpace(custom) != "" {
		b.WriteString("/* Custom CSS */\n")
		b.WriteString(strings.ReplaceAll(custom, "</", "<\\/"))
		b.WriteString("\n")
	}
	return b.String()
}

// stored returns the site-wide values saved for a category, without
// manifest defaults.
func (c *Customizer) stored(category string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values[category]))
	for k, v := range c.values[category] {
		out[k] = v
	}
	return out
}

// cssValue drops characters that could end a declaration or the style
// element.
func cssValue(v string) string {
	v = strings.TrimSpace(v)
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == ';', r == '{', r == '}', r == '<', r == '>', r == '\\', r == '"':
			return -1
		}
		return r
	}, v)
}
