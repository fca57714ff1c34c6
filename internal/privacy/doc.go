// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package privacy tracks data access and account deletion requests.
//
// Members submit requests from the member area; admins complete or reject
// them. Completing an access request stores the member's data export on
// the request. A deletion request deactivates the account at once and
// schedules its removal; the account is removed when an admin completes
// the request or, at the latest, by PurgeDueDeletions once the grace
// period has passed. Rejecting a deletion request reactivates the account.
package privacy
