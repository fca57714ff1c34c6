// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package hooks

// Lifecycle
const (
	CMSInit        = "cms_init"
	CMSBeforeRoute = "cms_before_route"
	RegisterRoutes = "register_routes"
	CMSAfterRoute  = "cms_after_route"
)

// Plugins
const (
	PluginLoaded       = "plugin_loaded"
	PluginsLoaded      = "plugins_loaded"
	PluginActivated    = "plugin_activated"
	PluginDeactivated  = "plugin_deactivated"
	PluginBeforeDelete = "plugin_before_delete"
	PluginDeleted      = "plugin_deleted"
	AdminMenu          = "cms_admin_menu"
)

// Themes and rendering
const (
	ThemeLoaded           = "theme_loaded"
	TemplateName          = "template_name" // filter
	BeforeRender          = "before_render"
	AfterRender           = "after_render"
	BeforeHeader          = "before_header"
	AfterHeader           = "after_header"
	BeforeFooter          = "before_footer"
	AfterFooter           = "after_footer"
	Head                  = "head"                    // filter over the extra <head> markup
	RegisterMenuLocations = "register_menu_locations" // filter
	TheContent            = "the_content"             // filter
	LandingPagePlugins    = "landing_page_plugins"    // filter over []landing.Plugin
)

// Users, content and subscriptions
const (
	UserRegistered       = "user_registered"
	UserLogin            = "user_login"
	UserLogout           = "user_logout"
	SubscriptionAssigned = "subscription_assigned"
	PageSaved            = "page_saved"
	PostPublished        = "post_published"
	BackupCompleted      = "backup_completed"
	BackupRestored       = "backup_restored"

	PrivacyRequestSubmitted = "privacy_request_submitted" // (*privacy.Request)
	PrivacyRequestProcessed = "privacy_request_processed" // (*privacy.Request)
)
