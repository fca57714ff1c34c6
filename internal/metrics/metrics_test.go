// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/blog/{slug}", "200"))
	RecordAPIRequest("GET", "/blog/{slug}", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/blog/{slug}", "200"))
	if after-before != 1 {
		t.Errorf("request counter moved by %v, want 1", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("gauge = %v after inc, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("gauge = %v after dec, want %v", got, before)
	}
}

func TestRecordBackupAndMaintenance(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		result string
	}{
		{"success", nil, "success"},
		{"failure", errors.New("disk full"), "failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.ToFloat64(BackupRuns.WithLabelValues("full", tt.result))
			RecordBackup("full", time.Second, tt.err)
			if got := testutil.ToFloat64(BackupRuns.WithLabelValues("full", tt.result)); got != b+1 {
				t.Errorf("backup %s counter = %v, want %v", tt.result, got, b+1)
			}

			m := testutil.ToFloat64(MaintenanceRuns.WithLabelValues("sessions", tt.result))
			RecordMaintenance("sessions", tt.err)
			if got := testutil.ToFloat64(MaintenanceRuns.WithLabelValues("sessions", tt.result)); got != m+1 {
				t.Errorf("maintenance %s counter = %v, want %v", tt.result, got, m+1)
			}
		})
	}
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheHits.WithLabelValues("plans"))
	misses := testutil.ToFloat64(CacheMisses.WithLabelValues("plans"))
	RecordCache("plans", true)
	RecordCache("plans", false)
	RecordCache("plans", false)
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("plans")); got != hits+1 {
		t.Errorf("hits = %v", got)
	}
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("plans")); got != misses+2 {
		t.Errorf("misses = %v", got)
	}
}
