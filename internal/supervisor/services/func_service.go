// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import "context"

// FuncService gives a bare Serve function a name.
type FuncService struct {
	name  string
	serve func(ctx context.Context) error
}

// NewFuncService wraps serve under name.
func NewFuncService(name string, serve func(ctx context.Context) error) *FuncService {
	return &FuncService{name: name, serve: serve}
}

// Serve implements suture.Service.
func (f *FuncService) Serve(ctx context.Context) error {
	return f.serve(ctx)
}

// String implements fmt.Stringer.
func (f *FuncService) String() string {
	return f.name
}
