// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package hooks

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestActionsRunInPriorityThenRegistrationOrder(t *testing.T) {
	r := New()
	var got []string
	rec := func(name string) Action {
		return func(context.Context, ...any) { got = append(got, name) }
	}
	r.AddAction("boot", rec("b10"), 10)
	r.AddAction("boot", rec("a5"), 5)
	r.AddAction("boot", rec("c10"), 10)
	r.AddAction("boot", rec("d20"), 20)
	r.AddAction("boot", rec("e5"), 5)

	r.DoAction(context.Background(), "boot")

	want := []string{"a5", "e5", "b10", "c10", "d20"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if r.DidAction("boot") != 1 {
		t.Errorf("DidAction = %d", r.DidAction("boot"))
	}
}

func TestUnknownTags(t *testing.T) {
	r := New()
	r.DoAction(context.Background(), "nothing")
	if got := r.ApplyFilters(context.Background(), "nothing", 42); got != 42 {
		t.Errorf("ApplyFilters on unknown tag = %v", got)
	}
	if r.HasAction("nothing") || r.HasFilter("nothing") {
		t.Error("unknown tag reported as registered")
	}
}

func TestFiltersThreadValueAndArgs(t *testing.T) {
	r := New()
	r.AddFilter("title", func(_ context.Context, v any, args ...any) any {
		return v.(string) + args[0].(string)
	}, 10)
	r.AddFilter("title", func(_ context.Context, v any, _ ...any) any {
		return strings.ToUpper(v.(string))
	}, 20)

	got := r.ApplyFiltersString(context.Background(), "title", "home", "-page")
	if got != "HOME-PAGE" {
		t.Errorf("filtered = %q", got)
	}
}

func TestApplyKeepsValueOnWrongType(t *testing.T) {
	r := New()
	r.AddFilter("count", func(context.Context, any, ...any) any { return "oops" }, 10)
	if got := Apply(context.Background(), r, "count", 7); got != 7 {
		t.Errorf("Apply = %d, want original 7", got)
	}
}

func TestRemove(t *testing.T) {
	r := New()
	calls := 0
	id := r.AddAction("x", func(context.Context, ...any) { calls++ }, 10)
	fid := r.AddFilter("y", func(_ context.Context, v any, _ ...any) any { return v }, 10)

	if !r.RemoveAction("x", id) {
		t.Fatal("RemoveAction returned false")
	}
	if r.RemoveAction("x", id) {
		t.Error("second removal should fail")
	}
	if r.RemoveAction("y", fid) {
		t.Error("filter id removed from actions")
	}
	if !r.RemoveFilter("y", fid) {
		t.Error("RemoveFilter returned false")
	}
	r.DoAction(context.Background(), "x")
	if calls != 0 {
		t.Errorf("removed action ran %d times", calls)
	}
	if len(r.Tags()) != 0 {
		t.Errorf("Tags = %v", r.Tags())
	}
}

func TestPanicIsRecovered(t *testing.T) {
	r := New()
	ran := false
	r.AddAction("boom", func(context.Context, ...any) { panic("bad plugin") }, 1)
	r.AddAction("boom", func(context.Context, ...any) { ran = true }, 2)
	r.DoAction(context.Background(), "boom")
	if !ran {
		t.Error("later callback did not run after panic")
	}

	r.AddFilter("f", func(_ context.Context, v any, _ ...any) any { return v.(int) + 1 }, 1)
	r.AddFilter("f", func(context.Context, any, ...any) any { panic("bad filter") }, 2)
	if got := r.ApplyFilters(context.Background(), "f", 1); got != 2 {
		t.Errorf("panicking filter should keep value, got %v", got)
	}
}

func TestCallbacksMayRegisterDuringDispatch(t *testing.T) {
	r := New()
	r.AddAction("init", func(context.Context, ...any) {
		r.AddAction("init", func(context.Context, ...any) {}, 10)
		r.AddFilter("late", func(_ context.Context, v any, _ ...any) any { return v }, 10)
	}, 10)
	r.DoAction(context.Background(), "init")
	if !r.HasFilter("late") {
		t.Error("filter registered during dispatch missing")
	}
}

func TestConcurrentUse(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := r.AddFilter("n", func(_ context.Context, v any, _ ...any) any { return v }, i%3)
			_ = r.ApplyFilters(context.Background(), "n", i)
			r.DoAction(context.Background(), "tick")
			r.RemoveFilter("n", id)
		}(i)
	}
	wg.Wait()
	if r.DidAction("tick") != 20 {
		t.Errorf("DidAction = %d", r.DidAction("tick"))
	}
}
