package inputguard

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Throttler ejecuta como máximo una llamada por intervalo. La primera corre
// en el acto; las que llegan antes de tiempo se colapsan en una sola llamada
// final (gana la última).
type Throttler struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	limiter *rate.Limiter

	pending func()
	res     *rate.Reservation
	timer   clockwork.Timer
}

func NewThrottler(interval time.Duration, clock clockwork.Clock) *Throttler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttler{
		clock:   clock,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (t *Throttler) Call(fn func()) {
	if fn == nil {
		return
	}

	t.mu.Lock()
	now := t.clock.Now()

	if t.timer == nil && t.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		fn()
		return
	}

	t.pending = fn
	if t.timer == nil {
		t.res = t.limiter.ReserveN(now, 1)
		t.timer = t.clock.AfterFunc(t.res.DelayFrom(now), t.fire)
	}
	t.mu.Unlock()
}

func (t *Throttler) fire() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	t.timer = nil
	t.res = nil
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel descarta la llamada final pendiente (si la hay).
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.res != nil {
		t.res.CancelAt(t.clock.Now())
		t.res = nil
	}
	t.pending = nil
}

// Pending indica si hay una llamada final programada.
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
