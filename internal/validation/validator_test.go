// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package validation

import (
	"strings"
	"testing"
)

type userRequest struct {
	Username string `json:"username" validate:"required,min=3,max=60,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,role"`
	Status   string `json:"status" validate:"omitempty,user_status"`
}

type pageRequest struct {
	Title  string `json:"title" validate:"required,max=200"`
	Slug   string `json:"slug" validate:"omitempty,slug"`
	Status string `json:"status" validate:"omitempty,content_status"`
	Limit  int    `json:"limit" validate:"min=0,max=100"`
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	inputs := []any{
		&userRequest{Username: "jane_doe", Email: "jane@example.com", Password: "longenough", Role: "editor", Status: "active"},
		&userRequest{Username: "bob", Email: "bob@example.com", Password: "12345678"},
		&pageRequest{Title: "About", Slug: "about-us", Status: "published", Limit: 10},
		&pageRequest{Title: "Draft"},
	}
	for _, in := range inputs {
		if err := ValidateStruct(in); err != nil {
			t.Errorf("ValidateStruct(%+v) = %v, want nil", in, err)
		}
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantField string
		wantTag   string
	}{
		{"missing username", &userRequest{Email: "a@b.co", Password: "12345678"}, "username", "required"},
		{"short username", &userRequest{Username: "ab", Email: "a@b.co", Password: "12345678"}, "username", "min"},
		{"bad username chars", &userRequest{Username: "jane.doe", Email: "a@b.co", Password: "12345678"}, "username", "username"},
		{"bad email", &userRequest{Username: "jane", Email: "nope", Password: "12345678"}, "email", "email"},
		{"short password", &userRequest{Username: "jane", Email: "a@b.co", Password: "short"}, "password", "min"},
		{"unknown role", &userRequest{Username: "jane", Email: "a@b.co", Password: "12345678", Role: "root"}, "role", "role"},
		{"unknown status", &userRequest{Username: "jane", Email: "a@b.co", Password: "12345678", Status: "gone"}, "status", "user_status"},
		{"bad slug", &pageRequest{Title: "x", Slug: "Not A Slug"}, "slug", "slug"},
		{"bad content status", &pageRequest{Title: "x", Status: "live"}, "status", "content_status"},
		{"limit too high", &pageRequest{Title: "x", Limit: 101}, "limit", "max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			errs := err.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%v), want 1", len(errs), err)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("got %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestToAPIError_Single(t *testing.T) {
	err := ValidateStruct(&userRequest{Username: "jane", Email: "a@b.co", Password: "short"})
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if apiErr.Message != "password must be at least 8 characters" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if _, ok := apiErr.Details["value"]; ok {
		t.Error("password value echoed in details")
	}
}

func TestToAPIError_Multiple(t *testing.T) {
	err := ValidateStruct(&userRequest{})
	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]any)
	if !ok || len(fields) != 3 {
		t.Fatalf("fields = %#v, want 3 entries", apiErr.Details["fields"])
	}
	if !strings.Contains(apiErr.Message, "username is required") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestVar(t *testing.T) {
	if Var("x@y.io", "email") != nil {
		t.Error("valid email rejected")
	}
	if Var("not a url", "url") == nil {
		t.Error("invalid url accepted")
	}
}
