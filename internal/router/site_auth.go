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
	"github.com/tomtom215/inkwell/internal/security"
)

// FormData is the template data of the login and register forms.
type FormData struct {
	Values map[string]string
}

func (h *site) loginForm(w http.ResponseWriter, r *http.Request, _ Params) {
	if auth.IsLoggedIn(r.Context()) {
		h.rt.Redirect(w, r, "/member")
		return
	}
	h.render(w, r, http.StatusOK, "login", &FormData{})
}

func (h *site) login(w http.ResponseWriter, r *http.Request, _ Params) {
	if !h.verify(r, "login") {
		h.rt.Redirect(w, r, "/login")
		return
	}
	sess := auth.SessionFromContext(r.Context())
	_, err := h.Auth.Login(r.Context(), sess, auth.Credentials{
		Identifier: strings.TrimSpace(r.PostFormValue("username")),
		Password:   r.PostFormValue("password"),
		IP:         security.ClientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.flash(r, "error", userMessage(err, "Login failed. Please try again."))
		h.rt.Redirect(w, r, "/login")
		return
	}
	h.rt.Redirect(w, r, "/member")
}

func (h *site) registerForm(w http.ResponseWriter, r *http.Request, _ Params) {
	if auth.IsLoggedIn(r.Context()) {
		h.rt.Redirect(w, r, "/member")
		return
	}
	h.render(w, r, http.StatusOK, "register", &FormData{})
}

func (h *site) register(w http.ResponseWriter, r *http.Request, _ Params) {
	if !h.verify(r, "register") {
		h.rt.Redirect(w, r, "/register")
		return
	}
	if !h.DB.GetOptionBool(r.Context(), "registration_enabled", true) {
		h.flash(r, "error", "Registration is currently disabled.")
		h.rt.Redirect(w, r, "/register")
		return
	}
	if r.PostFormValue("password") != r.PostFormValue("password_confirm") && r.PostFormValue("password_confirm") != "" {
		h.flash(r, "error", "Passwords do not match.")
		h.rt.Redirect(w, r, "/register")
		return
	}
	_, err := h.Auth.Register(r.Context(), auth.RegisterInput{
		Username:    r.PostFormValue("username"),
		Email:       r.PostFormValue("email"),
		Password:    r.PostFormValue("password"),
		DisplayName: r.PostFormValue("display_name"),
		IP:          security.ClientIP(r),
	})
	if err != nil {
		var ue *auth.UserError
		if !errors.As(err, &ue) {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Registration failed")
		}
		h.flash(r, "error", userMessage(err, "Registration failed. Please try again."))
		h.rt.Redirect(w, r, "/register")
		return
	}
	h.flash(r, "success", "Registration successful. You can now log in.")
	h.rt.Redirect(w, r, "/login")
}

func (h *site) logout(w http.ResponseWriter, r *http.Request, _ Params) {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		if err := h.Auth.Logout(r.Context(), sess); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Logout failed")
		}
	}
	h.rt.Redirect(w, r, "/")
}
