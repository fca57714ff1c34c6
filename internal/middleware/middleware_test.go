// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/inkwell/internal/metrics"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generates when missing", "", false},
		{"keeps upstream id", "proxy-abc-123", true},
		{"replaces oversized id", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" {
				t.Fatal("request id missing from context")
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if (seen == tt.incoming) != tt.keep {
				t.Errorf("id = %q, keep upstream = %v", seen, tt.keep)
			}
		})
	}
}

func TestCompression(t *testing.T) {
	body := strings.Repeat("inkwell ", 512)
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = io.WriteString(w, body)
	}))

	t.Run("gzips when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "br, gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Header().Get("Content-Encoding") != "gzip" {
			t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
		}
		if rec.Header().Get("Content-Length") != "" {
			t.Error("Content-Length should be dropped")
		}
		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("gzip.NewReader: %v", err)
		}
		got, _ := io.ReadAll(zr)
		if string(got) != body {
			t.Error("decompressed body differs")
		}
	})

	for name, mutate := range map[string]func(*http.Request){
		"plain client": func(*http.Request) {},
		"websocket": func(r *http.Request) {
			r.Header.Set("Accept-Encoding", "gzip")
			r.Header.Set("Upgrade", "websocket")
		},
	} {
		t.Run(name+" passes through", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			mutate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != body {
				t.Error("response was modified")
			}
		})
	}
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/admin/backups/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/admin/backups/{name}", "404")
	before := testutil.ToFloat64(counter)
	for _, name := range []string{"a.tar.gz", "b.tar.gz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/admin/backups/"+name, nil))
	}
	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("counter delta = %v, want 2", got)
	}
}

func TestRoutePatternWithoutChi(t *testing.T) {
	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != unmatchedRoute {
		t.Errorf("RoutePattern() = %q", got)
	}
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusTeapot)
	if rec.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d", rec.statusCode)
	}
}

func TestPerformanceMonitorWindow(t *testing.T) {
	pm := NewPerformanceMonitor(3)
	for i, d := range []int64{40, 10, 20, 30} {
		pm.RecordRequest(RequestMetrics{Route: "/p", Method: "GET", DurationMS: d, StatusCode: 200 + i*100})
	}
	recent := pm.Recent(10)
	if len(recent) != 3 || recent[0].DurationMS != 10 || recent[2].DurationMS != 30 {
		t.Fatalf("Recent() = %+v", recent)
	}

	stats := pm.Stats()
	if len(stats) != 1 {
		t.Fatalf("Stats() = %+v", stats)
	}
	s := stats[0]
	if s.Endpoint != "GET /p" || s.RequestCount != 3 || s.MinDuration != 10 || s.MaxDuration != 30 || s.AvgDuration != 20 {
		t.Errorf("stats = %+v", s)
	}
	if s.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1 (status 500)", s.ErrorCount)
	}
	if s.P50Duration != 20 {
		t.Errorf("P50 = %d", s.P50Duration)
	}
}

func TestPerformanceMonitorMiddleware(t *testing.T) {
	pm := NewPerformanceMonitor(0)
	pm.SetSlowThreshold(time.Nanosecond)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Get("/pages/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pages/about", nil))
		}()
	}
	wg.Wait()

	stats := pm.Stats()
	if len(stats) != 1 || stats[0].Endpoint != "GET /pages/{slug}" || stats[0].RequestCount != 20 {
		t.Fatalf("Stats() = %+v", stats)
	}
	if got := pm.Recent(1)[0].StatusCode; got != http.StatusCreated {
		t.Errorf("status = %d", got)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for p, want := range map[float64]int64{0: 1, 0.5: 5, 0.95: 9, 1: 10} {
		if got := percentile(sorted, p); got != want {
			t.Errorf("percentile(%v) = %d, want %d", p, got, want)
		}
	}
	if percentile(nil, 0.5) != 0 {
		t.Error("empty slice should give 0")
	}
}
