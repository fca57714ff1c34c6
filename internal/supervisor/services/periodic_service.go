// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package services

import (
	"context"
	"time"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Task is one unit of periodic work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// PeriodicService runs its tasks once at start and then on every tick.
//
// Tasks run sequentially in registration order. A failing task is logged
// and the remaining tasks still run; the service itself only returns when
// the context ends.
type PeriodicService struct {
	name     string
	interval time.Duration
	tasks    []Task
	now      func() time.Time
}

// NewPeriodicService creates a service ticking every interval. A
// non-positive interval becomes one hour.
func NewPeriodicService(name string, interval time.Duration, tasks ...Task) *PeriodicService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PeriodicService{name: name, interval: interval, tasks: tasks, now: time.Now}
}

// Add appends a task. Call before the service is started.
func (p *PeriodicService) Add(name string, run func(ctx context.Context) error) {
	p.tasks = append(p.tasks, Task{Name: name, Run: run})
}

// Tasks returns the registered task names.
func (p *PeriodicService) Tasks() []string {
	names := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		names[i] = t.Name
	}
	return names
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce runs every task and returns the number that failed.
func (p *PeriodicService) RunOnce(ctx context.Context) int {
	failed := 0
	for _, t := range p.tasks {
		if ctx.Err() != nil {
			return failed
		}
		start := p.now()
		if err := t.Run(ctx); err != nil {
			failed++
			logging.Warn().Err(err).Str("service", p.name).Str("task", t.Name).Msg("Periodic task failed")
			continue
		}
		logging.Debug().Str("service", p.name).Str("task", t.Name).
			Dur("took", p.now().Sub(start)).Msg("Periodic task finished")
	}
	return failed
}

// String implements fmt.Stringer.
func (p *PeriodicService) String() string {
	return p.name
}
