// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/thejerf/suture/v4"
)

var (
	_ suture.Service = (*HubService)(nil)
	_ suture.Service = (*FuncService)(nil)
	_ suture.Service = (*PeriodicService)(nil)
)

type fakeHub struct {
	runs atomic.Int32
	err  error
}

func (h *fakeHub) RunWithContext(ctx context.Context) error {
	h.runs.Add(1)
	if h.err != nil {
		return h.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHubServiceDelegates(t *testing.T) {
	hub := &fakeHub{}
	svc := NewHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v", err)
	}
	if hub.runs.Load() != 1 {
		t.Errorf("runs = %d", hub.runs.Load())
	}

	hub.err = errors.New("boom")
	if err := svc.Serve(context.Background()); !errors.Is(err, hub.err) {
		t.Errorf("Serve() = %v, want hub error", err)
	}
}

func TestHubServiceRestartedBySupervisor(t *testing.T) {
	hub := &fakeHub{err: errors.New("crash")}
	sup := suture.New("test", suture.Spec{
		FailureThreshold: 100,
		FailureBackoff:   time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewHubService(hub))

	ctx, cancel := context.WithCancel(context.Background())
	done := sup.ServeBackground(ctx)
	deadline := time.After(2 * time.Second)
	for hub.runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("hub restarted %d times, want at least 3", hub.runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFuncService(t *testing.T) {
	called := false
	svc := NewFuncService("backup-scheduler", func(ctx context.Context) error {
		called = true
		return ctx.Err()
	})
	if svc.String() != "backup-scheduler" {
		t.Errorf("String() = %q", svc.String())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if !called {
		t.Error("serve func not called")
	}
}

func TestPeriodicServiceRunOnce(t *testing.T) {
	var order []string
	p := NewPeriodicService("maintenance", time.Hour)
	p.Add("sessions", func(context.Context) error { order = append(order, "sessions"); return nil })
	p.Add("failed_logins", func(context.Context) error {
		order = append(order, "failed_logins")
		return errors.New("db locked")
	})
	p.Add("subscriptions", func(context.Context) error { order = append(order, "subscriptions"); return nil })

	if failed := p.RunOnce(context.Background()); failed != 1 {
		t.Errorf("RunOnce() failed = %d, want 1", failed)
	}
	want := []string{"sessions", "failed_logins", "subscriptions"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("task order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, p.Tasks()); diff != "" {
		t.Errorf("Tasks() (-want +got):\n%s", diff)
	}
}

func TestPeriodicServiceStopsBetweenTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	p := NewPeriodicService("maintenance", time.Hour,
		Task{Name: "first", Run: func(context.Context) error { ran++; cancel(); return nil }},
		Task{Name: "second", Run: func(context.Context) error { ran++; return nil }},
	)
	p.RunOnce(ctx)
	if ran != 1 {
		t.Errorf("ran = %d, want 1", ran)
	}
}

func TestPeriodicServiceTicks(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	p := NewPeriodicService("maintenance", 10*time.Millisecond, Task{Name: "count", Run: func(context.Context) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := p.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if runs < 3 {
		t.Errorf("runs = %d, want at least 3", runs)
	}
}

func TestPeriodicServiceDefaultInterval(t *testing.T) {
	if p := NewPeriodicService("x", 0); p.interval != time.Hour {
		t.Errorf("interval = %v", p.interval)
	}
}
