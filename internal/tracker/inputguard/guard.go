package inputguard

import (
	"context"
	"strings"
	"sync"
	"time"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/platform/metrics"
	"pet-care-tracker/internal/ports/notify"

	"github.com/jonboulle/clockwork"
)

type Config struct {
	MinInterval    time.Duration
	BurstWindow    time.Duration
	ResetWindow    time.Duration
	BlockThreshold int
	AutoReset      time.Duration
	NoticeCooldown time.Duration
	IdleTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinInterval:    50 * time.Millisecond,
		BurstWindow:    100 * time.Millisecond,
		ResetWindow:    500 * time.Millisecond,
		BlockThreshold: 15,
		AutoReset:      1500 * time.Millisecond,
		NoticeCooldown: 5 * time.Second,
		IdleTimeout:    time.Minute,
	}
}

// Key identifica el control que se está tocando: un casillero (subject, slot).
type Key struct {
	SubjectID string
	Slot      string
}

func GuardKey(subjectID, slot string) Key {
	return Key{
		SubjectID: strings.TrimSpace(subjectID),
		Slot:      strings.ToLower(strings.TrimSpace(slot)),
	}
}

// ClickState es el contador de ráfaga de una Key.
type ClickState struct {
	Count         int
	LastTriggerAt time.Time
	BlockedUntil  time.Time
	NoticeUntil   time.Time
}

type Options struct {
	Clock    clockwork.Clock
	Notifier notify.Notifier
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

type Guard struct {
	cfg      Config
	clock    clockwork.Clock
	notifier notify.Notifier
	log      logger.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	states     map[Key]*ClickState
	throttlers map[Key]*Throttler
	lastSweep  time.Time
}

func New(cfg Config, opts Options) *Guard {
	def := DefaultConfig()
	// sólo el valor sin setear toma el default; config.Validate rechaza < 2
	if cfg.BlockThreshold <= 0 {
		cfg.BlockThreshold = def.BlockThreshold
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Guard{
		cfg:        cfg,
		clock:      clock,
		notifier:   opts.Notifier,
		log:        logger.OrNop(opts.Logger),
		metrics:    opts.Metrics,
		states:     map[Key]*ClickState{},
		throttlers: map[Key]*Throttler{},
		lastSweep:  clock.Now(),
	}
}

// Trigger registra un toque sobre key y decide si se acepta.
//
// Toques separados por menos de BurstWindow suman a la ráfaga; una pausa
// mayor a ResetWindow la reinicia. Al llegar a BlockThreshold la key queda
// bloqueada AutoReset y se emite un aviso (uno por NoticeCooldown).
func (g *Guard) Trigger(key Key) bool {
	accepted, notice := g.trigger(key)
	if notice {
		g.metrics.Guard("notice")
		g.log.Warn("input guard blocked rapid triggers", map[string]any{
			"subject_id": key.SubjectID,
			"slot":       key.Slot,
		})
		if g.notifier != nil {
			g.notifier.Notify(context.Background(), notify.Notice{
				Title:    "Slow down",
				Message:  "Too many taps in a row. Wait a moment and try again.",
				Severity: notify.SeverityWarning,
				Class:    "input_blocked",
			})
		}
	}
	return accepted
}

func (g *Guard) trigger(key Key) (accepted, notice bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.sweepLocked(now)

	st, ok := g.states[key]
	if !ok {
		st = &ClickState{}
		g.states[key] = st
	}

	if !st.BlockedUntil.IsZero() {
		if now.Before(st.BlockedUntil) {
			g.metrics.Guard("blocked")
			return false, false
		}
		// auto reset; NoticeUntil se conserva
		st.Count = 0
		st.LastTriggerAt = time.Time{}
		st.BlockedUntil = time.Time{}
	}

	elapsed := now.Sub(st.LastTriggerAt)
	switch {
	case st.LastTriggerAt.IsZero() || elapsed > g.cfg.ResetWindow:
		st.Count = 1
	case elapsed < g.cfg.BurstWindow:
		st.Count++
	}
	st.LastTriggerAt = now

	if st.Count >= g.cfg.BlockThreshold {
		st.BlockedUntil = now.Add(g.cfg.AutoReset)
		g.metrics.Guard("blocked")
		if !now.Before(st.NoticeUntil) {
			st.NoticeUntil = now.Add(g.cfg.NoticeCooldown)
			return false, true
		}
		return false, false
	}

	g.metrics.Guard("accepted")
	return true, false
}

// Do pasa fn por Trigger y luego por el throttler de key. Devuelve false si
// el guard rechazó el toque (fn no se ejecuta).
func (g *Guard) Do(key Key, fn func()) bool {
	if !g.Trigger(key) {
		return false
	}
	g.throttler(key).Call(fn)
	return true
}

func (g *Guard) throttler(key Key) *Throttler {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.throttlers[key]
	if !ok {
		t = NewThrottler(g.cfg.MinInterval, g.clock)
		g.throttlers[key] = t
	}
	return t
}

// State devuelve una copia del estado de key.
func (g *Guard) State(key Key) (ClickState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.states[key]
	if !ok {
		return ClickState{}, false
	}
	return *st, true
}

func (g *Guard) Reset(key Key) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.states, key)
	if t, ok := g.throttlers[key]; ok {
		t.Cancel()
		delete(g.throttlers, key)
	}
}

// ResetAll se usa al cambiar de categoría: contadores y supresión de avisos
// vuelven a cero.
func (g *Guard) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k, t := range g.throttlers {
		t.Cancel()
		delete(g.throttlers, k)
	}
	g.states = map[Key]*ClickState{}
}

func (g *Guard) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.cfg.IdleTimeout {
		return
	}
	g.lastSweep = now

	for k, st := range g.states {
		if now.Before(st.BlockedUntil) || now.Before(st.NoticeUntil) {
			continue
		}
		if now.Sub(st.LastTriggerAt) < g.cfg.IdleTimeout {
			continue
		}
		delete(g.states, k)
		if t, ok := g.throttlers[k]; ok && !t.Pending() {
			delete(g.throttlers, k)
		}
	}
}
