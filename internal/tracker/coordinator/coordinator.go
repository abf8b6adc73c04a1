package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pet-care-tracker/internal/domain/careevents"
	"pet-care-tracker/internal/domain/medications"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"
	"pet-care-tracker/internal/tracker/inputguard"
	"pet-care-tracker/internal/tracker/opqueue"
	"pet-care-tracker/internal/tracker/slotcache"

	"github.com/jonboulle/clockwork"
)

var ErrInvalidInput = errors.New("invalid input")

// Clases de aviso que emite el coordinator.
const (
	ClassWriteFailure = "write_failure"
	ClassFetchFailure = "fetch_failure"
)

// forgetter lo implementa el dedupe de avisos (notifiers.Deduper).
type forgetter interface {
	Forget(class string)
}

// EventWriter es lo que el coordinator escribe en el store (careevents.Service).
type EventWriter interface {
	Create(ctx context.Context, in careevents.CreateInput) (careevents.CareEvent, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Config struct {
	// WriteCheckTTL: antigüedad máxima del snapshot antes de decidir alta/baja.
	WriteCheckTTL   time.Duration
	RefreshDebounce time.Duration
}

type Deps struct {
	Events   EventWriter
	Cache    *slotcache.Cache
	Queue    *opqueue.Queue
	Guard    *inputguard.Guard
	Status   *medications.StatusService
	Notifier notify.Notifier
	Clock    clockwork.Clock
	Logger   logger.Logger

	// OnRefresh recibe el snapshot después de cada cambio (con debounce).
	OnRefresh func(slotcache.Snapshot)
}

// Trigger es un toque del usuario sobre un casillero del día.
type Trigger struct {
	SubjectID string
	Slot      string
	Category  careevents.Category
	Label     string
	Notes     string
	CreatorID string
}

type Result struct {
	Accepted bool
	// Deferred: el throttler dejó la acción para el final del intervalo.
	Deferred bool
	Op       string // add | remove
	Logged   bool
	OpID     string
}

type Coordinator struct {
	cfg       Config
	events    EventWriter
	cache     *slotcache.Cache
	queue     *opqueue.Queue
	guard     *inputguard.Guard
	status    *medications.StatusService
	notifier  notify.Notifier
	clock     clockwork.Clock
	log       logger.Logger
	refresh   *inputguard.Debouncer
	onRefresh func(slotcache.Snapshot)
}

func New(cfg Config, d Deps) *Coordinator {
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.WriteCheckTTL <= 0 {
		cfg.WriteCheckTTL = 30 * time.Second
	}
	if cfg.RefreshDebounce <= 0 {
		cfg.RefreshDebounce = 250 * time.Millisecond
	}
	n := d.Notifier
	if n == nil {
		n = notify.NotifierFunc(func(context.Context, notify.Notice) {})
	}

	return &Coordinator{
		cfg:       cfg,
		events:    d.Events,
		cache:     d.Cache,
		queue:     d.Queue,
		guard:     d.Guard,
		status:    d.Status,
		notifier:  n,
		clock:     clock,
		log:       logger.OrNop(d.Logger),
		refresh:   inputguard.NewDebouncer(cfg.RefreshDebounce, clock),
		onRefresh: d.OnRefresh,
	}
}

// reply junta el resultado de la acción con el request que la pidió. Si
// el throttler la difiere, el request ya respondió Deferred y el resultado
// sólo queda en el log.
type reply struct {
	mu       sync.Mutex
	done     bool
	answered bool
	res      Result
	err      error
}

// Toggle registra o deshace el evento de (subject, slot, category).
//
// La decisión sale del cache, el cambio se ve en el acto y la escritura
// real se encola. Si la escritura falla se revierte el cambio optimista.
func (c *Coordinator) Toggle(ctx context.Context, t Trigger) (Result, error) {
	t, err := c.normalize(t)
	if err != nil {
		return Result{}, err
	}

	// la acción puede correr después de que el request terminó
	ctx = context.WithoutCancel(ctx)

	rep := &reply{}
	accepted := c.guard.Do(inputguard.GuardKey(t.SubjectID, t.Slot), func() {
		res, err := c.toggle(ctx, t)

		rep.mu.Lock()
		late := rep.answered
		if !late {
			rep.done, rep.res, rep.err = true, res, err
		}
		rep.mu.Unlock()

		if late {
			c.deferredDone(t, res, err)
		}
	})
	if !accepted {
		return Result{Accepted: false}, nil
	}

	rep.mu.Lock()
	defer rep.mu.Unlock()
	if rep.done {
		return rep.res, rep.err
	}
	rep.answered = true
	return Result{Accepted: true, Deferred: true}, nil
}

func (c *Coordinator) deferredDone(t Trigger, res Result, err error) {
	fields := map[string]any{
		"subject_id": t.SubjectID,
		"category":   string(t.Category),
		"slot":       t.Slot,
	}
	if err != nil {
		fields["error"] = err.Error()
		c.log.Error("deferred toggle failed", fields)
		return
	}
	fields["op"] = res.Op
	fields["op_id"] = res.OpID
	c.log.Debug("deferred toggle ran", fields)
}

func (c *Coordinator) normalize(t Trigger) (Trigger, error) {
	t.SubjectID = strings.TrimSpace(t.SubjectID)
	t.Label = strings.TrimSpace(t.Label)
	t.Slot = slotcache.NormalizeSlot(t.Slot)

	if t.SubjectID == "" || !t.Category.Valid() {
		return t, ErrInvalidInput
	}

	if c.cache.Resolver().IsLabelBased(t.Category) {
		if t.Label == "" {
			t.Label = t.Slot
		}
		t.Slot = slotcache.NormalizeSlot(t.Label)
		if t.Slot == "" {
			return t, ErrInvalidInput
		}
		return t, nil
	}

	if !slotcache.IsHourSlot(t.Slot) {
		return t, ErrInvalidInput
	}
	if t.Label == "" {
		t.Label = t.Slot
	}
	return t, nil
}

func (c *Coordinator) toggle(ctx context.Context, t Trigger) (Result, error) {
	if _, err := c.cache.EnsureFresh(ctx, c.cfg.WriteCheckTTL); err != nil {
		// se decide con lo que haya en memoria
		c.fetchFailed(ctx, err)
	}

	if entry, ok := c.cache.Lookup(t.SubjectID, t.Slot, t.Category); ok {
		return c.remove(t, entry)
	}
	return c.add(t)
}

func (c *Coordinator) add(t Trigger) (Result, error) {
	key := c.cache.KeyFor(t.SubjectID, t.Category, t.Slot)
	ticket := slotcache.NewTicket()
	cmd := slotcache.Add(slotcache.Entry{
		Key:       key,
		Pending:   true,
		Ticket:    ticket,
		FetchedAt: c.clock.Now(),
	})
	c.cache.Apply(cmd)

	in := careevents.CreateInput{
		SubjectID:  t.SubjectID,
		Category:   t.Category,
		Label:      t.Label,
		OccurredAt: c.occurredAt(t),
		Notes:      t.Notes,
		CreatorID:  t.CreatorID,
	}

	opID, err := c.queue.Enqueue(opqueue.Operation{
		Description: fmt.Sprintf("create %s/%s/%s", t.SubjectID, t.Category, t.Slot),
		Execute: func(ctx context.Context) error {
			ev, err := c.events.Create(ctx, in)
			if err != nil {
				ticket.Resolve("")
				c.writeFailed(ctx, cmd, err)
				return err
			}
			ticket.Resolve(ev.ID)
			c.cache.Confirm(key, ticket, ev.ID)
			c.scheduleRefresh()
			return nil
		},
	})
	if err != nil {
		c.cache.Revert(cmd)
		return Result{}, err
	}

	c.scheduleRefresh()
	return Result{Accepted: true, Op: slotcache.OpAdd.String(), Logged: true, OpID: opID}, nil
}

func (c *Coordinator) remove(t Trigger, entry slotcache.Entry) (Result, error) {
	cmd := slotcache.Remove(entry)
	c.cache.Apply(cmd)

	opID, err := c.queue.Enqueue(opqueue.Operation{
		Description: fmt.Sprintf("delete %s/%s/%s", t.SubjectID, t.Category, t.Slot),
		Execute: func(ctx context.Context) error {
			id := entry.RecordID
			if entry.Ticket != nil {
				if resolved, ok := entry.Ticket.ID(); ok {
					id = resolved
				}
			}
			if id == "" {
				// el alta que íbamos a borrar nunca se guardó
				return nil
			}

			if _, err := c.events.Delete(ctx, id); err != nil {
				c.writeFailed(ctx, cmd, err)
				return err
			}
			c.scheduleRefresh()
			return nil
		},
	})
	if err != nil {
		c.cache.Revert(cmd)
		return Result{}, err
	}

	c.scheduleRefresh()
	return Result{Accepted: true, Op: slotcache.OpRemove.String(), Logged: false, OpID: opID}, nil
}

// occurredAt: ahora si ahora cae dentro del slot; si no, la hora
// representativa del slot en el día del cache.
func (c *Coordinator) occurredAt(t Trigger) time.Time {
	loc := c.cache.Location()
	now := c.clock.Now().In(loc)
	day := c.cache.Date()
	sameDay := careevents.DateKey(now) == careevents.DateKey(day)

	hour, ok := slotcache.SlotHour(t.Slot)
	if !ok || c.cache.Resolver().IsLabelBased(t.Category) {
		if sameDay {
			return now
		}
		hour = 12
	}
	if sameDay && slotcache.SlotForHour(now.Hour()) == t.Slot {
		return now
	}

	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, loc)
}

func (c *Coordinator) writeFailed(ctx context.Context, cmd slotcache.Command, err error) {
	reverted := c.cache.Revert(cmd)
	c.log.Error("care event write failed", map[string]any{
		"op":         cmd.Op.String(),
		"subject_id": cmd.Entry.Key.SubjectID,
		"slot":       cmd.Entry.Key.Slot,
		"reverted":   reverted,
		"error":      err.Error(),
	})
	c.notifier.Notify(ctx, notify.Notice{
		Title:    "Couldn't save",
		Message:  "The change could not be saved and was undone.",
		Severity: notify.SeverityError,
		Class:    ClassWriteFailure,
	})
	c.scheduleRefresh()
}

func (c *Coordinator) fetchFailed(ctx context.Context, err error) {
	if errors.Is(err, slotcache.ErrFetchAborted) || errors.Is(err, context.Canceled) {
		c.log.Debug("cache fetch superseded", map[string]any{"error": err.Error()})
		return
	}
	c.log.Warn("cache refresh failed", map[string]any{"error": err.Error()})
	c.notifier.Notify(ctx, notify.Notice{
		Title:    "Couldn't load today's records",
		Message:  "Showing the last known state.",
		Severity: notify.SeverityWarning,
		Class:    ClassFetchFailure,
	})
}

func (c *Coordinator) scheduleRefresh() {
	if c.onRefresh == nil {
		return
	}
	c.refresh.Call(func() { c.onRefresh(c.cache.Snapshot()) })
}

func (c *Coordinator) HasLogged(subjectID, slot string, category careevents.Category) bool {
	return c.cache.HasLogged(subjectID, slot, category)
}

func (c *Coordinator) RecordID(subjectID, slot string, category careevents.Category) (string, bool) {
	return c.cache.RecordIDFor(subjectID, slot, category)
}

// Today devuelve el snapshot vigente, sin ir al store.
func (c *Coordinator) Today() slotcache.Snapshot {
	return c.cache.Snapshot()
}

func (c *Coordinator) MedicationStatus(ctx context.Context, subjectID, label string, f medications.Frequency) (medications.MedicationStatus, error) {
	return c.status.Status(ctx, subjectID, label, f)
}

// SwitchCategory se llama cuando el usuario cambia de pestaña: los
// contadores del guard arrancan de cero y una falla en la vista nueva se
// avisa aunque la anterior siga dentro de la ventana de dedupe.
func (c *Coordinator) SwitchCategory(category careevents.Category) {
	c.guard.ResetAll()
	if f, ok := c.notifier.(forgetter); ok {
		f.Forget(ClassWriteFailure)
		f.Forget(ClassFetchFailure)
	}
	c.log.Debug("category switched", map[string]any{"category": string(category)})
}

// Refresh recarga el día del cache. Una recarga reemplazada por otra más
// nueva no es un error: se devuelve el snapshot vigente.
func (c *Coordinator) Refresh(ctx context.Context, force bool) (slotcache.Snapshot, error) {
	snap, err := c.cache.Refresh(ctx, c.cache.Date(), force)
	if err != nil {
		if errors.Is(err, slotcache.ErrFetchAborted) {
			return c.cache.Snapshot(), nil
		}
		c.fetchFailed(ctx, err)
		return c.cache.Snapshot(), err
	}
	c.scheduleRefresh()
	return snap, nil
}

// Rollover apunta el cache al día nuevo y lo recarga.
func (c *Coordinator) Rollover(ctx context.Context, date time.Time) {
	c.cache.Invalidate(date)
	c.guard.ResetAll()
	if _, err := c.cache.Refresh(ctx, date, true); err != nil {
		c.fetchFailed(ctx, err)
	}
	c.scheduleRefresh()
}

// Close espera las escrituras pendientes y suelta el cache.
func (c *Coordinator) Close(ctx context.Context) error {
	c.queue.Close()
	err := c.queue.Wait(ctx)
	c.refresh.Flush()
	c.cache.Close()
	return err
}
