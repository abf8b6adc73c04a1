package inputguard

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer ejecuta sólo la última llamada, wait después de la última Call.
type Debouncer struct {
	mu    sync.Mutex
	clock clockwork.Clock
	wait  time.Duration

	gen   uint64
	fn    func()
	timer clockwork.Timer
}

func NewDebouncer(wait time.Duration, clock clockwork.Clock) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{clock: clock, wait: wait}
}

func (d *Debouncer) Call(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.fn = fn
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// un timer viejo pudo dispararse justo antes del Stop
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.fn = nil
}

// Flush ejecuta ya la llamada pendiente, si existe.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fn := d.fn
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.fn = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
