// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/subscription"
	"github.com/tomtom215/inkwell/internal/validation"
)

// OrderData is the template data of the order page.
type OrderData struct {
	Plans    []*models.Plan
	Selected int64
	Values   map[string]string
}

var orderFields = []string{"forename", "lastname", "company", "email", "phone", "street", "zip", "city", "country"}

func (h *site) orderForm(w http.ResponseWriter, r *http.Request, _ Params) {
	plans, err := h.Plans.AllPlans(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to load plans for order page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := &OrderData{Plans: plans, Selected: int64(queryInt(r, "plan", 0)), Values: map[string]string{}}
	if u := auth.UserFromContext(r.Context()); u != nil {
		data.Values["email"] = u.Email
	}
	h.render(w, r, http.StatusOK, "order", data)
}

func (h *site) order(w http.ResponseWriter, r *http.Request, _ Params) {
	if !h.verify(r, "order") {
		h.rt.Redirect(w, r, "/order")
		return
	}
	u := auth.UserFromContext(r.Context())
	in := subscription.OrderInput{
		PlanID:        formID(r, "plan_id"),
		BillingCycle:  r.PostFormValue("billing_cycle"),
		PaymentMethod: r.PostFormValue("payment_method"),
	}
	vals := make(map[string]string, len(orderFields))
	for _, f := range orderFields {
		vals[f] = strings.TrimSpace(r.PostFormValue(f))
	}
	in.Forename, in.Lastname, in.Company = vals["forename"], vals["lastname"], vals["company"]
	in.Email, in.Phone, in.Street = vals["email"], vals["phone"], vals["street"]
	in.Zip, in.City, in.Country = vals["zip"], vals["city"], vals["country"]

	o, err := h.Plans.CreateOrder(r.Context(), u.ID, in)
	if err != nil {
		var verr *validation.RequestValidationError
		switch {
		case errors.As(err, &verr):
			h.flash(r, "error", verr.Error())
		case errors.Is(err, subscription.ErrPlanNotFound):
			h.flash(r, "error", "The selected plan is not available.")
		default:
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create order")
			h.flash(r, "error", "Your order could not be placed. Please try again.")
		}
		h.rt.Redirect(w, r, "/order")
		return
	}
	h.flash(r, "success", "Thank you. Your order "+o.OrderNumber+" has been received and will be confirmed shortly.")
	h.rt.Redirect(w, r, "/member/subscription")
}
