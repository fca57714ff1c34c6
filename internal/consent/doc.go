// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package consent configures the cookie consent banner.

The banner lists cookies by category (essential, functional, analytics,
marketing). Its content comes from three sources:

  - services picked from the embedded library (library.yaml); essential
    services are always active
  - a hand-maintained cookie list
  - the last scan of the site, which records cookies set by the home page
    and cookies implied by known third-party scripts

Banner returns the assembled configuration served to visitors. Everything
is stored in cookie_* options.
*/
package consent
