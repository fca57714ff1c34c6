// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package legal generates the imprint, privacy policy and cookie policy
// pages from the operator details stored in the legal_details option.
// Generated pages are ordinary published pages: regenerating updates the
// page with the same slug, which keeps the previous text as a revision.
package legal
