// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package plugin manages compiled-in plugins.

Plugins are Go packages that register themselves from an init function,
the way database/sql drivers do:

	func init() {
		plugin.Register(&eventsPlugin{})
	}

The binary imports each plugin package for its side effects. Which
registered plugins run is decided at runtime by the active_plugins option:
LoadPlugins initializes every active plugin, fires plugin_loaded for each
and plugins_loaded once at the end.

Each plugin receives its own Host. Hooks added through the Host are
removed again when the plugin is deactivated, so deactivation takes
effect without a restart.

The MenuRegistry collects admin pages that plugins add when the
cms_admin_menu action fires, and member-area pages.
*/
package plugin
