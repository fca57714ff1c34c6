// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import "errors"

var (
	// ErrPlanNotFound is returned when a plan id or slug does not exist.
	ErrPlanNotFound = errors.New("subscription plan not found")

	// ErrNoPlan is returned when no plan at all can be resolved for a user.
	ErrNoPlan = errors.New("no subscription plan available")

	// ErrNoActiveSubscription is returned by CancelSubscription when the
	// user has nothing to cancel.
	ErrNoActiveSubscription = errors.New("no active subscription")

	// ErrInvalidCycle is returned for an unknown billing cycle.
	ErrInvalidCycle = errors.New("invalid billing cycle")

	// ErrInvalidPlan is returned when a plan fails validation.
	ErrInvalidPlan = errors.New("invalid subscription plan")

	// ErrGroupNotFound is returned when a group does not exist.
	ErrGroupNotFound = errors.New("user group not found")

	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotPending is returned when confirming or cancelling an order
	// that is no longer pending.
	ErrOrderNotPending = errors.New("order is not pending")
)
