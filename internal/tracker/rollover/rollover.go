package rollover

import (
	"context"
	"sync"
	"time"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
)

// Func se llama con el inicio del día nuevo.
type Func func(ctx context.Context, newDate time.Time)

type Options struct {
	Clock    clockwork.Clock
	Location *time.Location
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

// Rollover dispara OnRollover en cada medianoche local. Cada disparo se
// re-arma hasta la medianoche siguiente (días de 23h o 25h con DST).
type Rollover struct {
	clock      clockwork.Clock
	loc        *time.Location
	log        logger.Logger
	metrics    *metrics.Metrics
	onRollover Func

	mu      sync.Mutex
	current time.Time
	timer   clockwork.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
}

func New(onRollover Func, opts Options) *Rollover {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	r := &Rollover{
		clock:      clock,
		loc:        loc,
		log:        logger.OrNop(opts.Logger),
		metrics:    opts.Metrics,
		onRollover: onRollover,
	}
	r.current = startOfDay(clock.Now().In(loc))
	return r
}

// NextMidnight devuelve la próxima medianoche local estrictamente posterior a t.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return nextDay(t.In(loc))
}

// nextDay: medianoche del día calendario siguiente a day.
func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Start arma el timer. Llamar Start dos veces no duplica timers.
func (r *Rollover) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	now := r.clock.Now()
	r.current = startOfDay(now.In(r.loc))
	wait := NextMidnight(now, r.loc).Sub(now)
	r.armLocked(wait)

	r.log.Info("midnight rollover armed", map[string]any{"in": wait.String()})
}

func (r *Rollover) armLocked(d time.Duration) {
	r.gen++
	gen := r.gen
	r.timer = r.clock.AfterFunc(d, func() { r.fire(gen) })
}

func (r *Rollover) fire(gen uint64) {
	r.mu.Lock()
	if gen != r.gen || r.timer == nil {
		r.mu.Unlock()
		return
	}
	now := r.clock.Now().In(r.loc)
	newDate := nextDay(r.current)
	// timer atrasado (suspensión, reloj ajustado): se salta al día real
	if today := startOfDay(now); today.After(newDate) {
		newDate = today
	}
	r.current = newDate
	ctx := r.ctx
	r.armLocked(nextDay(newDate).Sub(now))
	r.mu.Unlock()

	r.metrics.Rollover()
	r.log.Info("midnight rollover", map[string]any{"date": newDate.Format("2006-01-02")})

	if r.onRollover != nil {
		r.onRollover(ctx, newDate)
	}
}

func (r *Rollover) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Rollover) CurrentDate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
