// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package seo

import (
	"context"
	"html/template"
	"net/url"
	"strings"

	"github.com/tomtom215/inkwell/internal/models"
)

// AnalyticsHeadCode returns the tracking scripts that belong in <head>:
// Matomo, GA4, Tag Manager, Meta Pixel and custom head code, in that order.
// Admins get nothing when seo_analytics_exclude_admins is set.
func (s *Service) AnalyticsHeadCode(ctx context.Context, u *models.User) template.HTML {
	if s.excluded(ctx, u) {
		return ""
	}
	dnt := s.analyticsOn(ctx, "respect_dnt")
	anon := s.analyticsOn(ctx, "anonymize_ip")
	var b strings.Builder

	if s.analyticsOn(ctx, "matomo_enabled") {
		if custom := strings.TrimSpace(s.Setting(ctx, "analytics_matomo_code", "")); custom != "" {
			b.WriteString("\n" + custom + "\n")
		} else if base := matomoURL(s.Setting(ctx, "analytics_matomo_url", "")); base != "" {
			site := s.analyticsID(ctx, "matomo_site_id")
			if site == "" {
				site = "1"
			}
			b.WriteString("\n<!-- Matomo -->\n<script>\n  var _paq = window._paq = window._paq || [];")
			if dnt {
				b.WriteString("\n  _paq.push(['setDoNotTrack', true]);")
			}
			if anon {
				b.WriteString("\n  _paq.push(['disableCookies']);")
			}
			b.WriteString("\n  _paq.push(['trackPageView']);\n  _paq.push(['enableLinkTracking']);\n  (function() {\n    var u=\"" + base + "\";\n" +
				"    _paq.push(['setTrackerUrl', u+'matomo.php']);\n    _paq.push(['setSiteId', '" + site + "']);\n" +
				"    var d=document, g=d.createElement('script'), s=d.getElementsByTagName('script')[0];\n" +
				"    g.async=true; g.src=u+'matomo.js'; s.parentNode.insertBefore(g,s);\n  })();\n</script>\n")
		}
	}

	if id := s.analyticsID(ctx, "ga4_id"); id != "" && s.analyticsOn(ctx, "ga4_enabled") {
		opts := "{}"
		if anon {
			opts = "{ 'anonymize_ip': true }"
		}
		b.WriteString("\n<!-- Google Analytics 4 -->\n<script async src=\"https://www.googletagmanager.com/gtag/js?id=" + id + "\"></script>\n<script>")
		if dnt {
			b.WriteString("\n  if (navigator.doNotTrack === '1') { window['ga-disable-" + id + "'] = true; }")
		}
		b.WriteString("\n  window.dataLayer = window.dataLayer || [];\n  function gtag(){dataLayer.push(arguments);}\n" +
			"  gtag('js', new Date());\n  gtag('config', '" + id + "', " + opts + ");\n</script>\n")
	}

	if id := s.analyticsID(ctx, "gtm_id"); id != "" && s.analyticsOn(ctx, "gtm_enabled") {
		guard := ""
		if dnt {
			guard = "if (navigator.doNotTrack === '1') { return; }"
		}
		b.WriteString("\n<!-- Google Tag Manager -->\n<script>(function(w,d,s,l,i){" + guard +
			"w[l]=w[l]||[];w[l].push({'gtm.start':new Date().getTime(),event:'gtm.js'});" +
			"var f=d.getElementsByTagName(s)[0],j=d.createElement(s),dl=l!='dataLayer'?'&l='+l:'';" +
			"j.async=true;j.src='https://www.googletagmanager.com/gtm.js?id='+i+dl;f.parentNode.insertBefore(j,f);" +
			"})(window,document,'script','dataLayer','" + id + "');</script>\n")
	}

	if id := s.analyticsID(ctx, "fb_pixel_id"); id != "" && s.analyticsOn(ctx, "fb_pixel_enabled") {
		b.WriteString("\n<!-- Meta Pixel -->\n<script>\n!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?" +
			"n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;n.push=n;n.loaded=!0;n.version='2.0';" +
			"n.queue=[];t=b.createElement(e);t.async=!0;t.src=v;s=b.getElementsByTagName(e)[0];" +
			"s.parentNode.insertBefore(t,s)}(window,document,'script','https://connect.facebook.net/en_US/fbevents.js');\n" +
			"fbq('init', '" + id + "');\nfbq('track', 'PageView');\n</script>\n")
	}

	if custom := strings.TrimSpace(s.Setting(ctx, "analytics_custom_head", "")); custom != "" {
		b.WriteString("\n" + custom + "\n")
	}
	return template.HTML(b.String()) //nolint:gosec // ids are validated, custom code is admin-authored
}

// AnalyticsBodyCode returns the markup that follows <body>: the Tag Manager
// noscript frame and custom body code.
func (s *Service) AnalyticsBodyCode(ctx context.Context, u *models.User) template.HTML {
	if s.excluded(ctx, u) {
		return ""
	}
	var b strings.Builder
	if id := s.analyticsID(ctx, "gtm_id"); id != "" && s.analyticsOn(ctx, "gtm_enabled") {
		b.WriteString("\n<noscript><iframe src=\"https://www.googletagmanager.com/ns.html?id=" + id +
			"\" height=\"0\" width=\"0\" style=\"display:none;visibility:hidden\"></iframe></noscript>\n")
	}
	if custom := strings.TrimSpace(s.Setting(ctx, "analytics_custom_body", "")); custom != "" {
		b.WriteString("\n" + custom + "\n")
	}
	return template.HTML(b.String()) //nolint:gosec // ids are validated, custom code is admin-authored
}

// matomoURL returns the tracker base URL with a trailing slash, or "" when
// the setting is not an http(s) URL.
func matomoURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return strings.TrimRight(u.String(), "/") + "/"
}
