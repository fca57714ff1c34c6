// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package models

import "time"

// Billing cycles.
const (
	CycleMonthly  = "monthly"
	CycleYearly   = "yearly"
	CycleLifetime = "lifetime"
)

// Subscription statuses.
const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
	SubscriptionTrial     = "trial"
	SubscriptionSuspended = "suspended"
)

// Order statuses.
const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
	OrderRefunded  = "refunded"
)

// Resource types that plans limit.
var PlanResources = []string{"experts", "companies", "events", "speakers", "storage_mb"}

// Plugin slugs that plans can gate.
var PlanPlugins = []string{"experts", "companies", "events", "speakers"}

// Premium feature names.
var PlanFeatures = []string{
	"analytics", "advanced_search", "api_access", "custom_branding",
	"priority_support", "export_data", "integrations", "custom_domains",
}

// Plan is a row of subscription_plans. Limits, plugin flags and features are
// keyed by their short name (limit_experts is Limits["experts"]).
// A limit of -1 means unlimited, 0 means disabled.
type Plan struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Description  string          `json:"description,omitempty"`
	PriceMonthly float64         `json:"price_monthly"`
	PriceYearly  float64         `json:"price_yearly"`
	Limits       map[string]int  `json:"limits"`
	Plugins      map[string]bool `json:"plugins"`
	Features     map[string]bool `json:"features"`
	IsActive     bool            `json:"is_active"`
	SortOrder    int             `json:"sort_order"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Limit returns the limit for resource, or 0 when the plan does not know it.
func (p *Plan) Limit(resource string) int {
	if p == nil {
		return 0
	}
	return p.Limits[resource]
}

// Subscription sources in resolution order.
const (
	SourceExplicit = "explicit"
	SourceGroup    = "group"
	SourceFree     = "free"
)

// UserSubscription is the effective plan of a user together with where it
// came from. ID, Status and the dates are zero for group and free sources.
type UserSubscription struct {
	ID              int64      `json:"id,omitempty"`
	UserID          int64      `json:"user_id"`
	Plan            *Plan      `json:"plan"`
	Source          string     `json:"source"`
	Status          string     `json:"status,omitempty"`
	BillingCycle    string     `json:"billing_cycle,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	GroupName       string     `json:"group_name,omitempty"`
}

// Group is a row of user_groups.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	PlanID      *int64    `json:"plan_id,omitempty"`
	IsActive    bool      `json:"is_active"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order is a row of the orders table.
type Order struct {
	ID            int64     `json:"id"`
	OrderNumber   string    `json:"order_number"`
	UserID        *int64    `json:"user_id,omitempty"`
	PlanID        int64     `json:"plan_id"`
	Status        string    `json:"status"`
	TotalAmount   float64   `json:"total_amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	BillingCycle  string    `json:"billing_cycle"`
	Forename      string    `json:"forename"`
	Lastname      string    `json:"lastname"`
	Company       string    `json:"company,omitempty"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Street        string    `json:"street,omitempty"`
	Zip           string    `json:"zip,omitempty"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
