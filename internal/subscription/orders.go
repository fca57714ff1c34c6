// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/validation"
)

// DefaultOrderNumberFormat is used when the order_number_format option is
// unset. {Y}, {m} and {d} expand to the order date, {ID} to a ULID.
const DefaultOrderNumberFormat = "ORD-{Y}-{ID}"

// DefaultCurrency is the currency of new orders.
const DefaultCurrency = "EUR"

// OrderInput is the checkout form of the public order page.
type OrderInput struct {
	PlanID        int64  `json:"plan_id" validate:"required,gt=0"`
	BillingCycle  string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=bank_transfer invoice paypal"`
	Forename      string `json:"forename" validate:"required,max=100"`
	Lastname      string `json:"lastname" validate:"required,max=100"`
	Company       string `json:"company" validate:"max=200"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Street        string `json:"street" validate:"max=200"`
	Zip           string `json:"zip" validate:"max=20"`
	City          string `json:"city" validate:"max=100"`
	Country       string `json:"country" validate:"max=100"`
}

// OrderRecord is an order joined with user and plan names.
type OrderRecord struct {
	models.Order
	Username string `json:"username,omitempty"`
	PlanName string `json:"plan_name"`
}

func (m *Manager) orderNumber(ctx context.Context, now time.Time) string {
	format := m.db.GetOption(ctx, "order_number_format", DefaultOrderNumberFormat)
	if !strings.Contains(format, "{ID}") {
		format += "-{ID}"
	}
	return strings.NewReplacer(
		"{Y}", now.Format("2006"),
		"{m}", now.Format("01"),
		"{d}", now.Format("02"),
		"{ID}", ulid.Make().String(),
	).Replace(format)
}

// CreateOrder records a pending order of userID for the plan in in.
// Lifetime plans cannot be ordered.
func (m *Manager) CreateOrder(ctx context.Context, userID int64, in OrderInput) (*models.Order, error) {
	if verr := validation.ValidateStruct(&in); verr != nil {
		return nil, verr
	}
	if in.BillingCycle == "" {
		in.BillingCycle = models.CycleMonthly
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = "bank_transfer"
	}
	plan, err := m.Plan(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	total := plan.PriceMonthly
	if in.BillingCycle == models.CycleYearly {
		total = plan.PriceYearly
	}
	now := m.now().UTC()
	o := &models.Order{
		OrderNumber:   m.orderNumber(ctx, now),
		UserID:        &userID,
		PlanID:        plan.ID,
		Status:        models.OrderPending,
		TotalAmount:   total,
		Currency:      DefaultCurrency,
		PaymentMethod: in.PaymentMethod,
		BillingCycle:  in.BillingCycle,
		Forename:      in.Forename,
		Lastname:      in.Lastname,
		Company:       in.Company,
		Email:         in.Email,
		Phone:         in.Phone,
		Street:        in.Street,
		Zip:           in.Zip,
		City:          in.City,
		Country:       in.Country,
		CreatedAt:     now,
	}
	err = m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO orders (order_number, user_id, plan_id, status, total_amount, currency, payment_method, billing_cycle,
			forename, lastname, company, email, phone, street, zip, city, country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		o.OrderNumber, userID, o.PlanID, o.Status, o.TotalAmount, o.Currency, o.PaymentMethod, o.BillingCycle,
		o.Forename, o.Lastname, o.Company, o.Email, o.Phone, o.Street, o.Zip, o.City, o.Country, now, now).Scan(&o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	m.logActivity(ctx, userID, "order_created", "Order "+o.OrderNumber+" created", o.ID)
	logging.Ctx(ctx).Info().Str("order", o.OrderNumber).Int64("plan_id", plan.ID).Msg("Order created")
	return o, nil
}

const orderColumns = `o.id, o.order_number, o.user_id, o.plan_id, COALESCE(o.status, ''), o.total_amount,
	COALESCE(o.currency, ''), COALESCE(o.payment_method, ''), COALESCE(o.billing_cycle, ''),
	COALESCE(o.forename, ''), COALESCE(o.lastname, ''), COALESCE(o.company, ''), COALESCE(o.email, ''),
	COALESCE(o.phone, ''), COALESCE(o.street, ''), COALESCE(o.zip, ''), COALESCE(o.city, ''),
	COALESCE(o.country, ''), o.created_at, COALESCE(u.username, ''), COALESCE(sp.name, '')`

const orderJoins = ` FROM orders o
	LEFT JOIN users u ON u.id = o.user_id
	LEFT JOIN subscription_plans sp ON sp.id = o.plan_id `

func scanOrder(s database.RowScanner) (*OrderRecord, error) {
	var (
		r      OrderRecord
		userID sql.NullInt64
	)
	err := s.Scan(&r.ID, &r.OrderNumber, &userID, &r.PlanID, &r.Status, &r.TotalAmount,
		&r.Currency, &r.PaymentMethod, &r.BillingCycle, &r.Forename, &r.Lastname, &r.Company, &r.Email,
		&r.Phone, &r.Street, &r.Zip, &r.City, &r.Country, &r.CreatedAt, &r.Username, &r.PlanName)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		r.UserID = &userID.Int64
	}
	return &r, nil
}

// Order loads one order.
func (m *Manager) Order(ctx context.Context, id int64) (*OrderRecord, error) {
	r, err := scanOrder(m.db.Conn().QueryRowContext(ctx, `SELECT `+orderColumns+orderJoins+`WHERE o.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", id, err)
	}
	return r, nil
}

// Orders returns one page of orders, newest first, with the total count.
func (m *Manager) Orders(ctx context.Context, page, perPage int) ([]*OrderRecord, int64, error) {
	if perPage <= 0 {
		perPage = 20
	}
	if page < 1 {
		page = 1
	}
	var total int64
	if err := m.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	rows, err := m.db.Conn().QueryContext(ctx,
		`SELECT `+orderColumns+orderJoins+`ORDER BY o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer database.CloseRows(rows)

	var out []*OrderRecord
	for rows.Next() {
		r, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func (m *Manager) setOrderStatus(ctx context.Context, id int64, status string) error {
	res, err := m.db.Conn().ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotPending
	}
	return nil
}

// ConfirmOrder marks a pending order confirmed and assigns its plan to the
// ordering user.
func (m *Manager) ConfirmOrder(ctx context.Context, id int64) error {
	o, err := m.Order(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != models.OrderPending {
		return ErrOrderNotPending
	}
	if err := m.setOrderStatus(ctx, id, models.OrderConfirmed); err != nil {
		return err
	}
	if o.UserID == nil {
		return nil
	}
	if _, err := m.AssignSubscription(ctx, *o.UserID, o.PlanID, o.BillingCycle); err != nil {
		return fmt.Errorf("order %s confirmed but subscription failed: %w", o.OrderNumber, err)
	}
	return nil
}

// CancelOrder marks a pending order cancelled.
func (m *Manager) CancelOrder(ctx context.Context, id int64) error {
	if _, err := m.Order(ctx, id); err != nil {
		return err
	}
	return m.setOrderStatus(ctx, id, models.OrderCancelled)
}
