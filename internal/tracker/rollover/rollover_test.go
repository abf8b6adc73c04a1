package rollover

import (
	"context"
	"testing"
	"time"

	"pet-care-tracker/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNextMidnight(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	now := time.Date(2025, 4, 30, 23, 59, 0, 0, loc)

	got := NextMidnight(now, loc)
	want := time.Date(2025, 5, 1, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	exact := time.Date(2025, 5, 1, 0, 0, 0, 0, loc)
	if got := NextMidnight(exact, loc); !got.Equal(want.AddDate(0, 0, 1)) {
		t.Fatalf("midnight itself should roll to the following day, got %v", got)
	}
}

func TestRollover_FiresAtEachMidnight(t *testing.T) {
	loc := time.UTC
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 30, 22, 0, 0, 0, loc))
	m := metrics.New(prometheus.NewRegistry())

	dates := make(chan time.Time, 4)
	r := New(func(ctx context.Context, d time.Time) { dates <- d }, Options{Clock: clock, Location: loc, Metrics: m})
	r.Start(context.Background())
	defer r.Stop()

	clock.Advance(time.Hour + 59*time.Minute)
	select {
	case d := <-dates:
		t.Fatalf("fired early with %v", d)
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Minute)
	expectDate(t, dates, time.Date(2025, 5, 1, 0, 0, 0, 0, loc))
	if !r.CurrentDate().Equal(time.Date(2025, 5, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("current date not updated: %v", r.CurrentDate())
	}

	clock.Advance(24 * time.Hour)
	expectDate(t, dates, time.Date(2025, 5, 2, 0, 0, 0, 0, loc))

	if got := testutil.ToFloat64(m.Rollovers); got != 2 {
		t.Fatalf("expected 2 rollovers, got %v", got)
	}
}

func TestRollover_FollowsCalendarAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 11, 1, 12, 0, 0, 0, loc))

	dates := make(chan time.Time, 4)
	r := New(func(ctx context.Context, d time.Time) { dates <- d }, Options{Clock: clock, Location: loc})
	r.Start(context.Background())
	defer r.Stop()

	clock.Advance(12 * time.Hour)
	expectDate(t, dates, time.Date(2025, 11, 2, 0, 0, 0, 0, loc))

	// 2025-11-02 dura 25h: a las 24h todavía es el mismo día
	clock.Advance(24 * time.Hour)
	select {
	case d := <-dates:
		t.Fatalf("fired at 23:00 on the fall-back day with %v", d)
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Hour)
	expectDate(t, dates, time.Date(2025, 11, 3, 0, 0, 0, 0, loc))

	clock.Advance(12 * time.Hour)
	if got := r.CurrentDate(); !got.Equal(time.Date(2025, 11, 3, 0, 0, 0, 0, loc)) {
		t.Fatalf("expected current date 2025-11-03, got %v", got)
	}

	// día normal después del cambio: 24h
	clock.Advance(12 * time.Hour)
	expectDate(t, dates, time.Date(2025, 11, 4, 0, 0, 0, 0, loc))
}

func TestRollover_SpringForwardDayIs23h(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 8, 23, 0, 0, 0, loc))

	dates := make(chan time.Time, 4)
	r := New(func(ctx context.Context, d time.Time) { dates <- d }, Options{Clock: clock, Location: loc})
	r.Start(context.Background())
	defer r.Stop()

	clock.Advance(time.Hour)
	expectDate(t, dates, time.Date(2025, 3, 9, 0, 0, 0, 0, loc))

	clock.Advance(23 * time.Hour)
	expectDate(t, dates, time.Date(2025, 3, 10, 0, 0, 0, 0, loc))
}

func TestRollover_StopPreventsFiring(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC))
	fired := make(chan time.Time, 1)
	r := New(func(ctx context.Context, d time.Time) { fired <- d }, Options{Clock: clock, Location: time.UTC})

	r.Start(context.Background())
	r.Stop()
	clock.Advance(2 * time.Hour)

	select {
	case d := <-fired:
		t.Fatalf("stopped rollover fired with %v", d)
	case <-time.After(20 * time.Millisecond):
	}
}

func expectDate(t *testing.T, ch <-chan time.Time, want time.Time) {
	t.Helper()
	select {
	case got := <-ch:
		if !got.Equal(want) {
			t.Fatalf("expected rollover to %v, got %v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("rollover to %v never fired", want)
	}
}
