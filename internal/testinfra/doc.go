// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package testinfra provides shared fixtures for package tests: an
// in-memory DuckDB database with the full schema, seeded users and a quiet
// logger. It is imported only from _test.go files.
package testinfra
