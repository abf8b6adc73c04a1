package inputguard

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestThrottler_LeadingThenTrailingLatestWins(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	th := NewThrottler(50*time.Millisecond, clock)

	var last atomic.Int64
	var calls atomic.Int64
	call := func(v int64) func() {
		return func() {
			calls.Add(1)
			last.Store(v)
		}
	}

	th.Call(call(1))
	if calls.Load() != 1 || last.Load() != 1 {
		t.Fatalf("expected leading call to run immediately")
	}

	clock.Advance(10 * time.Millisecond)
	th.Call(call(2))
	clock.Advance(10 * time.Millisecond)
	th.Call(call(3))

	if calls.Load() != 1 {
		t.Fatalf("calls inside interval must be deferred")
	}
	if !th.Pending() {
		t.Fatalf("expected a trailing call scheduled")
	}

	clock.Advance(30 * time.Millisecond)
	waitFor(t, func() bool { return calls.Load() == 2 })
	if last.Load() != 3 {
		t.Fatalf("expected latest call to win, got %d", last.Load())
	}
}

func TestThrottler_Cancel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	th := NewThrottler(50*time.Millisecond, clock)

	var calls atomic.Int64
	th.Call(func() { calls.Add(1) })
	th.Call(func() { calls.Add(1) })
	th.Cancel()

	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("cancelled trailing call must not run, calls=%d", calls.Load())
	}
	if th.Pending() {
		t.Fatalf("expected nothing pending after Cancel")
	}
}

func TestDebouncer_OnlyLastCallRuns(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDebouncer(250*time.Millisecond, clock)

	var last atomic.Int64
	var calls atomic.Int64
	for i := int64(1); i <= 5; i++ {
		v := i
		d.Call(func() {
			calls.Add(1)
			last.Store(v)
		})
		clock.Advance(100 * time.Millisecond)
	}

	clock.Advance(250 * time.Millisecond)
	waitFor(t, func() bool { return calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 || last.Load() != 5 {
		t.Fatalf("expected one call with value 5, got calls=%d last=%d", calls.Load(), last.Load())
	}
}

func TestDebouncer_FlushAndCancel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDebouncer(250*time.Millisecond, clock)

	ran := 0
	d.Call(func() { ran++ })
	d.Flush()
	if ran != 1 {
		t.Fatalf("Flush should run the pending call synchronously")
	}
	d.Flush()
	if ran != 1 {
		t.Fatalf("second Flush has nothing to run")
	}

	var cancelled atomic.Int64
	d.Call(func() { cancelled.Add(1) })
	d.Cancel()
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if cancelled.Load() != 0 {
		t.Fatalf("cancelled call must not run")
	}
}
