package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestAfterRunsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New(context.Background())
	defer f.Close()

	var runs atomic.Int32
	f.After(10*time.Millisecond, func(context.Context) { runs.Add(1) })

	waitFor(t, func() bool { return runs.Load() == 1 })
	waitFor(t, func() bool { return f.Pending() == 0 })

	time.Sleep(30 * time.Millisecond)
	if runs.Load() != 1 {
		t.Fatalf("runs = %d, want 1", runs.Load())
	}
}

func TestEveryStopsWhenPredicateFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New(context.Background())
	defer f.Close()

	var ticks atomic.Int32
	f.Every(5*time.Millisecond, 5*time.Millisecond, func(context.Context) bool {
		return ticks.Add(1) < 3
	})

	waitFor(t, func() bool { return f.Pending() == 0 })
	time.Sleep(30 * time.Millisecond)
	if ticks.Load() != 3 {
		t.Fatalf("ticks = %d, want 3", ticks.Load())
	}
}

func TestCancelPreventsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New(context.Background())
	defer f.Close()

	var runs atomic.Int32
	h := f.After(20*time.Millisecond, func(context.Context) { runs.Add(1) })
	h.Cancel()

	time.Sleep(50 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatalf("cancelled task ran")
	}
	if f.Pending() != 0 {
		t.Fatalf("Pending() = %d after cancel", f.Pending())
	}
}

func TestCallbacksNeverOverlap(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New(context.Background())
	defer f.Close()

	var (
		active  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		f.After(time.Millisecond, func(context.Context) {
			defer wg.Done()
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		})
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatalf("callbacks ran concurrently")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := New(context.Background())

	var runs atomic.Int32
	h := f.Every(time.Hour, time.Hour, func(context.Context) bool {
		runs.Add(1)
		return true
	})
	f.Close()
	f.Close()

	if !h.Cancelled() {
		t.Fatalf("handle not cancelled by Close")
	}
	if late := f.After(time.Millisecond, func(context.Context) { runs.Add(1) }); !late.Cancelled() {
		t.Fatalf("task scheduled after Close was accepted")
	}
	if runs.Load() != 0 {
		t.Fatalf("runs = %d", runs.Load())
	}
}
