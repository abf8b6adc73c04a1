package slotcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"pet-care-tracker/internal/domain/careevents"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/platform/metrics"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

var (
	ErrFetchFailed = errors.New("fetch failed")
	// ErrFetchAborted: una recarga forzada (o un cambio de día) reemplazó
	// la consulta en curso; su resultado se descarta.
	ErrFetchAborted = errors.New("fetch aborted")
	ErrClosed       = errors.New("cache closed")
)

const DefaultTTL = 5 * time.Minute

// Fetcher es lo que el cache necesita del store.
type Fetcher interface {
	ListByDate(ctx context.Context, date time.Time, category careevents.Category) ([]careevents.CareEvent, error)
}

type Options struct {
	Clock    clockwork.Clock
	TTL      time.Duration
	Location *time.Location
	Resolver *SlotResolver
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

// Cache guarda los registros del día por (subject, categoría, slot).
// Las lecturas son O(1) sobre el snapshot vigente.
type Cache struct {
	fetcher  Fetcher
	clock    clockwork.Clock
	ttl      time.Duration
	loc      *time.Location
	resolver SlotResolver
	log      logger.Logger
	metrics  *metrics.Metrics

	base     context.Context
	stopBase context.CancelFunc
	group    singleflight.Group

	mu       sync.Mutex
	snap     Snapshot
	day      time.Time
	expiry   time.Time
	gen      uint64
	cancelIn context.CancelFunc
	closed   bool
}

func New(fetcher Fetcher, opts Options) *Cache {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	resolver := DefaultSlotResolver()
	if opts.Resolver != nil {
		resolver = *opts.Resolver
	}

	day, _ := careevents.DayBounds(clock.Now().In(loc))
	base, stop := context.WithCancel(context.Background())

	return &Cache{
		fetcher:  fetcher,
		clock:    clock,
		ttl:      ttl,
		loc:      loc,
		resolver: resolver,
		log:      logger.OrNop(opts.Logger),
		metrics:  opts.Metrics,
		base:     base,
		stopBase: stop,
		snap:     emptySnapshot(careevents.DateKey(day)),
		day:      day,
	}
}

func (c *Cache) Location() *time.Location { return c.loc }
func (c *Cache) Resolver() SlotResolver   { return c.resolver }

// Date devuelve el inicio del día que refleja el cache.
func (c *Cache) Date() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// KeyFor arma la Key del día actual del cache.
func (c *Cache) KeyFor(subjectID string, category careevents.Category, slot string) Key {
	c.mu.Lock()
	date := c.snap.date
	c.mu.Unlock()
	return NewKey(subjectID, category, slot, date)
}

func (c *Cache) Lookup(subjectID, slot string, category careevents.Category) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Get(NewKey(subjectID, category, slot, c.snap.date))
}

func (c *Cache) HasLogged(subjectID, slot string, category careevents.Category) bool {
	_, ok := c.Lookup(subjectID, slot, category)
	return ok
}

// RecordIDFor devuelve el id persistido. Un alta optimista todavía sin
// confirmar no tiene id.
func (c *Cache) RecordIDFor(subjectID, slot string, category careevents.Category) (string, bool) {
	e, ok := c.Lookup(subjectID, slot, category)
	if !ok || e.RecordID == "" {
		return "", false
	}
	return e.RecordID, true
}

// Refresh recarga los registros de date.
//
// Sin force: si el snapshot no venció se devuelve sin tocar el store, y si
// ya hay una consulta en curso se espera esa misma. Con force: se cancela la
// consulta en curso y se lanza otra; sólo se aplica la más nueva.
func (c *Cache) Refresh(ctx context.Context, date time.Time, force bool) (Snapshot, error) {
	day, _ := careevents.DayBounds(date.In(c.loc))
	dateKey := careevents.DateKey(day)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if dateKey != c.snap.date {
		c.resetLocked(day)
	}
	if !force && c.clock.Now().Before(c.expiry) {
		snap := c.snap
		c.mu.Unlock()
		c.metrics.CacheFetch("cached")
		return snap, nil
	}
	if force {
		c.abortLocked()
	}
	gen := c.gen
	c.mu.Unlock()

	ch := c.group.DoChan(dateKey+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.fetch(day, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// EnsureFresh se usa antes de decidir una escritura: si el snapshot tiene
// más de maxAge, se recarga.
func (c *Cache) EnsureFresh(ctx context.Context, maxAge time.Duration) (Snapshot, error) {
	c.mu.Lock()
	day := c.day
	stale := c.snap.fetchedAt.IsZero() || c.clock.Since(c.snap.fetchedAt) > maxAge
	if stale {
		c.expiry = time.Time{}
	}
	c.mu.Unlock()

	return c.Refresh(ctx, day, false)
}

func (c *Cache) fetch(day time.Time, gen uint64) (Snapshot, error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.metrics.CacheFetch("aborted")
		return Snapshot{}, ErrFetchAborted
	}
	fctx, cancel := context.WithCancel(c.base)
	c.cancelIn = cancel
	c.mu.Unlock()
	defer cancel()

	events, err := c.fetcher.ListByDate(fctx, day, "")

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		c.metrics.CacheFetch("aborted")
		c.log.Debug("discarding superseded cache fetch", map[string]any{"date": careevents.DateKey(day)})
		return Snapshot{}, ErrFetchAborted
	}
	c.cancelIn = nil

	if err != nil {
		c.metrics.CacheFetch("error")
		c.log.Error("cache fetch failed", map[string]any{
			"date":  careevents.DateKey(day),
			"error": err.Error(),
		})
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	c.snap = c.partitionLocked(events)
	c.expiry = c.clock.Now().Add(c.ttl)
	c.metrics.CacheFetch("ok")
	c.metrics.SetCacheEntries(c.snap.Len())
	return c.snap, nil
}

// partitionLocked arma el snapshot nuevo. Todo lo que vino del store se
// reemplaza por el resultado (la última recarga gana); la única excepción
// son las altas optimistas que el store todavía no devuelve, que siguen hasta
// que su escritura confirma o revierte.
func (c *Cache) partitionLocked(events []careevents.CareEvent) Snapshot {
	now := c.clock.Now()
	next := emptySnapshot(c.snap.date)
	next.fetchedAt = now

	occurred := make(map[Key]time.Time, len(events))
	for _, ev := range events {
		k := NewKey(ev.SubjectID, ev.Category, c.resolver.Resolve(ev, c.loc), c.snap.date)
		if prev, ok := occurred[k]; ok && ev.OccurredAt.Before(prev) {
			continue
		}
		occurred[k] = ev.OccurredAt
		next.entries[k] = Entry{Key: k, RecordID: ev.ID, FetchedAt: now}
	}

	for k, e := range c.snap.entries {
		if !e.Pending {
			continue
		}
		if _, ok := next.entries[k]; !ok {
			next.entries[k] = e
		}
	}
	return next
}

// Apply aplica un cambio optimista, sin importar el TTL. Devuelve el
// snapshot anterior. Un comando de otro día se ignora.
func (c *Cache) Apply(cmd Command) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.snap
	if cmd.Entry.Key.Date != c.snap.date {
		return prev
	}
	c.snap = c.snap.Apply(cmd)
	c.metrics.SetCacheEntries(c.snap.Len())
	return prev
}

// Revert deshace cmd sólo si la key sigue como cmd la dejó; un cambio más
// nuevo sobre la misma key no se pisa.
func (c *Cache) Revert(cmd Command) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := cmd.Entry.Key
	if k.Date != c.snap.date {
		return false
	}
	cur, ok := c.snap.Get(k)

	switch cmd.Op {
	case OpAdd:
		if !ok || !cur.same(cmd.Entry) {
			return false
		}
	case OpRemove:
		if ok {
			return false
		}
	default:
		return false
	}

	c.snap = c.snap.Apply(cmd.Inverse())
	c.metrics.SetCacheEntries(c.snap.Len())
	return true
}

// Confirm completa un alta optimista con el id real.
func (c *Cache) Confirm(k Key, t *Ticket, recordID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.snap.Get(k)
	if !ok || t == nil || cur.Ticket != t {
		return false
	}
	cur.RecordID = recordID
	cur.Pending = false
	c.snap = c.snap.Apply(Add(cur))
	return true
}

// Invalidate descarta todo y apunta el cache a date (rollover).
func (c *Cache) Invalidate(date time.Time) {
	day, _ := careevents.DayBounds(date.In(c.loc))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(day)
}

func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.abortLocked()
	c.stopBase()
}

func (c *Cache) resetLocked(day time.Time) {
	c.abortLocked()
	c.day = day
	c.snap = emptySnapshot(careevents.DateKey(day))
	c.expiry = time.Time{}
	c.metrics.SetCacheEntries(0)
}

func (c *Cache) abortLocked() {
	c.gen++
	if c.cancelIn != nil {
		c.cancelIn()
		c.cancelIn = nil
	}
}
