// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
	"github.com/tomtom215/inkwell/internal/validation"
)

func newTestManager(t *testing.T) (*Manager, *database.DB, *hooks.Registry) {
	t.Helper()
	db := testinfra.NewDB(t)
	registry := hooks.New()
	m := NewManager(db, registry, cache.New(time.Minute))
	if _, err := m.SeedDefaultPlans(context.Background()); err != nil {
		t.Fatalf("SeedDefaultPlans: %v", err)
	}
	return m, db, registry
}

func mustPlan(t *testing.T, m *Manager, slug string) *models.Plan {
	t.Helper()
	p, err := m.PlanBySlug(context.Background(), slug)
	if err != nil {
		t.Fatalf("PlanBySlug(%s): %v", slug, err)
	}
	return p
}

func TestSeedDefaultPlans(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	added, err := m.SeedDefaultPlans(ctx)
	if err != nil || added != 0 {
		t.Fatalf("second seed added %d, err %v", added, err)
	}
	plans, err := m.AllPlans(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var slugs []string
	for _, p := range plans {
		slugs = append(slugs, p.Slug)
	}
	if got := strings.Join(slugs, ","); got != "free,basic,professional,business,premium,enterprise" {
		t.Errorf("plan order = %s", got)
	}

	ent := mustPlan(t, m, "enterprise")
	if ent.Limit("experts") != -1 || ent.Limit("storage_mb") != 200000 || ent.PriceMonthly != 499.99 {
		t.Errorf("enterprise plan = %+v", ent)
	}
	free := mustPlan(t, m, "free")
	if free.Plugins["companies"] || !free.Plugins["experts"] || free.Features["api_access"] {
		t.Errorf("free plan flags = %+v %+v", free.Plugins, free.Features)
	}
}

func TestResolutionChain(t *testing.T) {
	m, db, registry := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "jane", models.RoleMember, "pw")

	sub, err := m.UserSubscription(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Source != models.SourceFree || sub.Plan.Slug != "free" {
		t.Fatalf("initial subscription = %s/%s", sub.Source, sub.Plan.Slug)
	}

	basic := mustPlan(t, m, "basic")
	business := mustPlan(t, m, "business")
	for _, g := range []*models.Group{
		{Name: "Partners", PlanID: &basic.ID, IsActive: true},
		{Name: "Sponsors", PlanID: &business.ID, IsActive: true},
	} {
		if _, err := m.CreateGroup(ctx, g); err != nil {
			t.Fatal(err)
		}
		if err := m.AddGroupMember(ctx, g.ID, u.ID); err != nil {
			t.Fatal(err)
		}
	}
	sub, _ = m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceGroup || sub.Plan.Slug != "business" || sub.GroupName != "Sponsors" {
		t.Fatalf("group subscription = %s/%s/%s", sub.Source, sub.Plan.Slug, sub.GroupName)
	}

	var assigned []any
	registry.AddAction(hooks.SubscriptionAssigned, func(_ context.Context, args ...any) { assigned = args }, hooks.DefaultPriority)

	pro := mustPlan(t, m, "professional")
	if _, err := m.AssignSubscription(ctx, u.ID, pro.ID, models.CycleYearly); err != nil {
		t.Fatalf("AssignSubscription: %v", err)
	}
	if len(assigned) != 2 || assigned[0] != u.ID || assigned[1] != pro.ID {
		t.Errorf("subscription_assigned args = %v", assigned)
	}
	sub, _ = m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceExplicit || sub.Plan.Slug != "professional" {
		t.Fatalf("explicit subscription = %s/%s", sub.Source, sub.Plan.Slug)
	}
	if sub.EndDate == nil || sub.EndDate.Sub(*sub.StartDate) < 364*24*time.Hour {
		t.Errorf("yearly end date = %v", sub.EndDate)
	}

	if err := m.CancelSubscription(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.CancelSubscription(ctx, u.ID); !errors.Is(err, ErrNoActiveSubscription) {
		t.Errorf("second cancel = %v", err)
	}
	sub, _ = m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceGroup {
		t.Errorf("after cancel source = %s, want group", sub.Source)
	}

	history, err := m.History(ctx, u.ID)
	if err != nil || len(history) != 1 || history[0].Status != models.SubscriptionCancelled {
		t.Errorf("History = %+v, %v", history, err)
	}
}

func TestAssignReplacesActiveSubscription(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "sam", models.RoleMember, "pw")

	basic := mustPlan(t, m, "basic")
	premium := mustPlan(t, m, "premium")
	if _, err := m.AssignSubscription(ctx, u.ID, basic.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AssignSubscription(ctx, u.ID, premium.ID, models.CycleLifetime); err != nil {
		t.Fatal(err)
	}
	active, err := m.ActiveSubscriptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].PlanName != "Premium" || active[0].EndDate != nil {
		t.Errorf("active subscriptions = %+v", active)
	}

	if _, err := m.AssignSubscription(ctx, u.ID, premium.ID, "weekly"); !errors.Is(err, ErrInvalidCycle) {
		t.Errorf("weekly cycle = %v", err)
	}
	if _, err := m.AssignSubscription(ctx, u.ID, 9999, ""); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("unknown plan = %v", err)
	}
}

func TestExpireSubscriptions(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "eve", models.RoleMember, "pw")

	if _, err := m.AssignSubscription(ctx, u.ID, mustPlan(t, m, "basic").ID, models.CycleMonthly); err != nil {
		t.Fatal(err)
	}
	n, err := m.ExpireSubscriptions(ctx, time.Now().AddDate(0, 2, 0))
	if err != nil || n != 1 {
		t.Fatalf("ExpireSubscriptions = %d, %v", n, err)
	}
	sub, _ := m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceFree {
		t.Errorf("source after expiry = %s", sub.Source)
	}
}

func TestCheckLimitAndUsage(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "lim", models.RoleMember, "pw")

	if !m.CheckLimit(ctx, u.ID, "experts") {
		t.Fatal("free plan should allow the first expert")
	}
	if n, err := m.IncrementUsage(ctx, u.ID, "experts"); err != nil || n != 1 {
		t.Fatalf("IncrementUsage = %d, %v", n, err)
	}
	if m.CheckLimit(ctx, u.ID, "experts") {
		t.Error("limit of 1 reached but still allowed")
	}
	if m.CheckLimit(ctx, u.ID, "unknown_resource") {
		t.Error("unknown resource is allowed")
	}

	for i := 0; i < 3; i++ {
		if _, err := m.DecrementUsage(ctx, u.ID, "experts"); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := m.CurrentUsage(ctx, u.ID, "experts"); n != 0 {
		t.Errorf("usage went to %d", n)
	}
	if n, _ := m.DecrementUsage(ctx, u.ID, "events"); n != 0 {
		t.Errorf("decrement of a new counter = %d", n)
	}

	if err := m.UpdateUsage(ctx, u.ID, "events", 4); err != nil {
		t.Fatal(err)
	}
	usage, err := m.Usage(ctx, u.ID)
	if err != nil || usage["events"] != 4 {
		t.Errorf("Usage = %v, %v", usage, err)
	}

	disabled := &models.Plan{Name: "No Events", Limits: map[string]int{"events": 0}, IsActive: true, SortOrder: 99}
	if _, err := m.CreatePlan(ctx, disabled); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AssignSubscription(ctx, u.ID, disabled.ID, ""); err != nil {
		t.Fatal(err)
	}
	if m.CheckLimit(ctx, u.ID, "events") {
		t.Error("limit 0 must disable the resource")
	}
	if !m.CheckLimit(ctx, u.ID, "speakers") {
		t.Error("default limit -1 must be unlimited")
	}
}

func TestPluginAndFeatureFlags(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "flags", models.RoleMember, "pw")

	if !m.CanAccessPlugin(ctx, u.ID, "experts") || m.CanAccessPlugin(ctx, u.ID, "companies") {
		t.Error("free plan plugin flags wrong")
	}
	if m.HasFeature(ctx, u.ID, "api_access") {
		t.Error("free plan has api access")
	}
	if _, err := m.AssignSubscription(ctx, u.ID, mustPlan(t, m, "professional").ID, ""); err != nil {
		t.Fatal(err)
	}
	if !m.HasFeature(ctx, u.ID, "api-access") {
		t.Error("dashed feature name not normalised")
	}
	if m.HasFeature(ctx, u.ID, "priority_support") {
		t.Error("professional plan has priority support")
	}
}

func TestNoPlans(t *testing.T) {
	db := testinfra.NewDB(t)
	m := NewManager(db, nil, nil)
	if _, err := m.UserSubscription(context.Background(), 1); !errors.Is(err, ErrNoPlan) {
		t.Errorf("UserSubscription = %v, want ErrNoPlan", err)
	}
	if m.CheckLimit(context.Background(), 1, "experts") {
		t.Error("CheckLimit without plans must deny")
	}
}

func TestPlanCRUD(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.CreatePlan(ctx, &models.Plan{Name: " "}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("empty name = %v", err)
	}
	if _, err := m.CreatePlan(ctx, &models.Plan{Name: "Free"}); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("duplicate slug = %v", err)
	}

	p := &models.Plan{Name: "Team Plan", PriceMonthly: 19, IsActive: true, SortOrder: 10}
	if _, err := m.CreatePlan(ctx, p); err != nil {
		t.Fatal(err)
	}
	if p.Slug != "team-plan" {
		t.Errorf("derived slug = %q", p.Slug)
	}
	p.PriceMonthly = 25
	p.Features = map[string]bool{"analytics": true}
	if err := m.UpdatePlan(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Plan(ctx, p.ID)
	if got.PriceMonthly != 25 || !got.Features["analytics"] || got.Limit("storage_mb") != 1000 {
		t.Errorf("updated plan = %+v", got)
	}

	u := testinfra.CreateUser(t, db, "team", models.RoleMember, "pw")
	if _, err := m.AssignSubscription(ctx, u.ID, p.ID, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.DeletePlan(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.DeletePlan(ctx, p.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("second delete = %v", err)
	}
	sub, _ := m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceFree {
		t.Errorf("subscription survived plan deletion: %s", sub.Source)
	}
}

func TestGroups(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "grp", models.RoleMember, "pw")

	g := &models.Group{Name: "Staff Team", IsActive: true}
	if _, err := m.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	if err := m.AddGroupMember(ctx, g.ID, u.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.AddGroupMember(ctx, g.ID, u.ID); err != nil {
		t.Fatalf("re-adding member: %v", err)
	}
	if err := m.AddGroupMember(ctx, 999, u.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("unknown group = %v", err)
	}

	groups, err := m.Groups(ctx)
	if err != nil || len(groups) != 1 || groups[0].MemberCount != 1 || groups[0].Slug != "staff-team" {
		t.Fatalf("Groups = %+v, %v", groups, err)
	}

	// A group without a plan does not change the resolution.
	sub, _ := m.UserSubscription(ctx, u.ID)
	if sub.Source != models.SourceFree {
		t.Fatalf("source = %s", sub.Source)
	}
	premium := mustPlan(t, m, "premium")
	g.PlanID = &premium.ID
	if err := m.UpdateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	if sub, _ = m.UserSubscription(ctx, u.ID); sub.Plan.Slug != "premium" {
		t.Errorf("group plan not applied after update: %s", sub.Plan.Slug)
	}

	if err := m.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if ids, _ := m.UserGroups(ctx, u.ID); len(ids) != 0 {
		t.Errorf("memberships left after delete: %v", ids)
	}
	if sub, _ = m.UserSubscription(ctx, u.ID); sub.Source != models.SourceFree {
		t.Errorf("source after group delete = %s", sub.Source)
	}
}

func TestOrders(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	u := testinfra.CreateUser(t, db, "buyer", models.RoleMember, "pw")
	basic := mustPlan(t, m, "basic")

	_, err := m.CreateOrder(ctx, u.ID, OrderInput{PlanID: basic.ID, Forename: "A", Lastname: "B"})
	var verr *validation.RequestValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("missing email = %v", err)
	}

	o, err := m.CreateOrder(ctx, u.ID, OrderInput{
		PlanID: basic.ID, BillingCycle: models.CycleYearly,
		Forename: "Ada", Lastname: "Lovelace", Email: "ada@example.com",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if !strings.HasPrefix(o.OrderNumber, "ORD-"+time.Now().UTC().Format("2006")+"-") {
		t.Errorf("order number = %s", o.OrderNumber)
	}
	if o.TotalAmount != basic.PriceYearly || o.Status != models.OrderPending {
		t.Errorf("order = %+v", o)
	}

	if err := m.ConfirmOrder(ctx, o.ID); err != nil {
		t.Fatalf("ConfirmOrder: %v", err)
	}
	if err := m.ConfirmOrder(ctx, o.ID); !errors.Is(err, ErrOrderNotPending) {
		t.Errorf("second confirm = %v", err)
	}
	sub, _ := m.UserSubscription(ctx, u.ID)
	if sub.Plan.ID != basic.ID || sub.BillingCycle != models.CycleYearly {
		t.Errorf("subscription after confirm = %s/%s", sub.Plan.Slug, sub.BillingCycle)
	}

	orders, total, err := m.Orders(ctx, 1, 10)
	if err != nil || total != 1 || orders[0].PlanName != "Basic" || orders[0].Username != "buyer" {
		t.Errorf("Orders = %+v, %d, %v", orders, total, err)
	}
	if err := m.CancelOrder(ctx, 12345); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("cancel unknown = %v", err)
	}
}

func TestGate(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	g := NewGate(m)
	member := testinfra.CreateUser(t, db, "gm", models.RoleMember, "pw")
	admin := testinfra.CreateUser(t, db, "ga", models.RoleAdmin, "pw")

	if !g.UserCanAccessPlugin(ctx, nil, "companies") {
		t.Error("guests must see plugin pages")
	}
	if g.UserCanAccessPlugin(ctx, member, "companies") {
		t.Error("free member can access companies")
	}
	if !g.UserCanAccessPlugin(ctx, admin, "companies") || !g.UserCanCreateResource(ctx, admin, "experts") {
		t.Error("admin blocked")
	}
	if g.UserCanCreateResource(ctx, nil, "experts") {
		t.Error("guest can create resources")
	}
	if !g.UserHasFeature(ctx, admin, "custom_domains") || g.UserHasFeature(ctx, nil, "analytics") {
		t.Error("feature bypass rules wrong")
	}

	if err := m.UpdateUsage(ctx, member.ID, "events", 4); err != nil {
		t.Fatal(err)
	}
	w := g.LimitWarning(ctx, member, "events")
	if w.Level != WarningNear || w.Remaining != 1 || w.Percent != 80 {
		t.Errorf("LimitWarning = %+v", w)
	}
}

func TestWarning(t *testing.T) {
	tests := []struct {
		limit, usage int
		want         string
	}{
		{-1, 1000, WarningNone},
		{0, 0, WarningDisabled},
		{10, 2, WarningNone},
		{10, 8, WarningNear},
		{10, 10, WarningReached},
		{10, 12, WarningReached},
	}
	for _, tt := range tests {
		if got := Warning(tt.limit, tt.usage).Level; got != tt.want {
			t.Errorf("Warning(%d, %d) = %s, want %s", tt.limit, tt.usage, got, tt.want)
		}
	}
}
