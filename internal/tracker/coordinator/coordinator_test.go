package coordinator

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"pet-care-tracker/internal/domain/careevents"
	"pet-care-tracker/internal/domain/medications"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/notify"
	"pet-care-tracker/internal/tracker/inputguard"
	"pet-care-tracker/internal/tracker/opqueue"
	"pet-care-tracker/internal/tracker/slotcache"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type fakeStore struct {
	mu        sync.Mutex
	byID      map[string]careevents.CareEvent
	createErr error
	deleteErr error
	lists     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: map[string]careevents.CareEvent{}}
}

func (s *fakeStore) Create(ctx context.Context, in careevents.CreateInput) (careevents.CareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return careevents.CareEvent{}, s.createErr
	}
	e := careevents.CareEvent{
		ID:         uuid.NewString(),
		SubjectID:  in.SubjectID,
		Category:   in.Category,
		Label:      in.Label,
		OccurredAt: in.OccurredAt,
		CreatorID:  in.CreatorID,
	}
	s.byID[e.ID] = e
	return e, nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	_, ok := s.byID[id]
	delete(s.byID, id)
	return ok, nil
}

func (s *fakeStore) ListByDate(ctx context.Context, date time.Time, category careevents.Category) ([]careevents.CareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	from, to := careevents.DayBounds(date)
	var out []careevents.CareEvent
	for _, e := range s.byID {
		if !e.OccurredAt.Before(from) && e.OccurredAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) Latest(ctx context.Context, subjectID string, category careevents.Category, label string) (*careevents.CareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []careevents.CareEvent
	for _, e := range s.byID {
		if e.SubjectID == subjectID && e.Category == category && e.Label == label {
			items = append(items, e)
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].OccurredAt.After(items[j].OccurredAt) })
	return &items[0], nil
}

func (s *fakeStore) all() []careevents.CareEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]careevents.CareEvent, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	return out
}

type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (n *noticeLog) Notify(ctx context.Context, x notify.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, x)
}

func (n *noticeLog) classes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, x := range n.notices {
		out = append(out, x.Class)
	}
	return out
}

// syncBuffer: el log se escribe desde la cola y los timers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	c         *Coordinator
	store     *fakeStore
	queue     *opqueue.Queue
	cache     *slotcache.Cache
	notices   *noticeLog
	logs      *syncBuffer
	advance   func(time.Duration)
	refreshed chan slotcache.Snapshot
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(now)
	store := newFakeStore()
	notices := &noticeLog{}

	cache := slotcache.New(store, slotcache.Options{Clock: clock, Location: time.UTC})
	queue := opqueue.New(context.Background(), nil, nil)
	guard := inputguard.New(inputguard.DefaultConfig(), inputguard.Options{Clock: clock, Notifier: notices})
	status := medications.NewStatusService(store, 3).WithClock(clock.Now)

	h := &harness{
		store:     store,
		queue:     queue,
		cache:     cache,
		notices:   notices,
		logs:      &syncBuffer{},
		advance:   clock.Advance,
		refreshed: make(chan slotcache.Snapshot, 16),
	}
	h.c = New(Config{}, Deps{
		Events:    store,
		Cache:     cache,
		Queue:     queue,
		Guard:     guard,
		Status:    status,
		Notifier:  notices,
		Clock:     clock,
		Logger:    logger.New(logger.Options{Format: logger.FormatJSON, Writer: h.logs}),
		OnRefresh: func(s slotcache.Snapshot) { h.refreshed <- s },
	})
	return h
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.queue.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func feeding(slot string) Trigger {
	return Trigger{SubjectID: "pet-1", Slot: slot, Category: careevents.CategoryFeeding}
}

var morning = time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC)

func TestToggle_AddThenRemove(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	res, err := h.c.Toggle(ctx, feeding("Morning"))
	if err != nil || !res.Accepted || res.Op != "add" || !res.Logged {
		t.Fatalf("unexpected add result %+v err=%v", res, err)
	}
	if !h.c.HasLogged("pet-1", "morning", careevents.CategoryFeeding) {
		t.Fatalf("optimistic add should be visible before the write")
	}
	h.drain(t)

	events := h.store.all()
	if len(events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(events))
	}
	if events[0].Label != "morning" || !events[0].OccurredAt.Equal(morning) {
		t.Fatalf("unexpected stored event %+v", events[0])
	}
	if id, ok := h.c.RecordID("pet-1", "morning", careevents.CategoryFeeding); !ok || id != events[0].ID {
		t.Fatalf("expected confirmed record id, got %q", id)
	}

	h.advance(time.Second)
	res, err = h.c.Toggle(ctx, feeding("morning"))
	if err != nil || res.Op != "remove" || res.Logged {
		t.Fatalf("unexpected remove result %+v err=%v", res, err)
	}
	h.drain(t)

	if len(h.store.all()) != 0 {
		t.Fatalf("expected event deleted")
	}
	if h.c.HasLogged("pet-1", "morning", careevents.CategoryFeeding) {
		t.Fatalf("expected slot cleared")
	}
}

func TestToggle_RemoveOfPendingAddResolvesAtExecution(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	release := make(chan struct{})
	h.queue.Enqueue(opqueue.Operation{Execute: func(ctx context.Context) error { <-release; return nil }})

	h.c.Toggle(ctx, feeding("noon"))
	h.advance(time.Second)
	res, _ := h.c.Toggle(ctx, feeding("noon"))
	if res.Op != "remove" {
		t.Fatalf("second toggle should remove the pending add, got %+v", res)
	}

	close(release)
	h.drain(t)

	if n := len(h.store.all()); n != 0 {
		t.Fatalf("paired toggles should leave the store empty, got %d", n)
	}
	if h.c.HasLogged("pet-1", "noon", careevents.CategoryFeeding) {
		t.Fatalf("paired toggles should leave the cache empty")
	}
}

func TestToggle_WriteFailureRevertsAndNotifies(t *testing.T) {
	h := newHarness(t, morning)
	h.store.createErr = errors.New("db down")

	res, err := h.c.Toggle(context.Background(), feeding("morning"))
	if err != nil || !res.Accepted {
		t.Fatalf("toggle should be accepted even if the write fails later: %+v %v", res, err)
	}
	h.drain(t)

	if h.c.HasLogged("pet-1", "morning", careevents.CategoryFeeding) {
		t.Fatalf("failed add must be reverted")
	}
	classes := h.notices.classes()
	if len(classes) != 1 || classes[0] != "write_failure" {
		t.Fatalf("expected one write_failure notice, got %v", classes)
	}
}

func TestToggle_FailedDeleteRestoresRecord(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	h.c.Toggle(ctx, feeding("morning"))
	h.drain(t)
	id, _ := h.c.RecordID("pet-1", "morning", careevents.CategoryFeeding)

	h.store.mu.Lock()
	h.store.deleteErr = errors.New("db down")
	h.store.mu.Unlock()

	h.advance(time.Second)
	h.c.Toggle(ctx, feeding("morning"))
	h.drain(t)

	if got, ok := h.c.RecordID("pet-1", "morning", careevents.CategoryFeeding); !ok || got != id {
		t.Fatalf("failed delete must restore %q, got %q", id, got)
	}
}

func TestToggle_SlotOutsideNowUsesRepresentativeHour(t *testing.T) {
	h := newHarness(t, morning)

	h.c.Toggle(context.Background(), feeding("evening"))
	h.drain(t)

	events := h.store.all()
	want := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	if len(events) != 1 || !events[0].OccurredAt.Equal(want) {
		t.Fatalf("expected evening record at %v, got %+v", want, events)
	}
	if !h.c.HasLogged("pet-1", "evening", careevents.CategoryFeeding) {
		t.Fatalf("record should land in the evening slot")
	}
}

func TestToggle_MedicationIsKeyedByLabel(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	res, err := h.c.Toggle(ctx, Trigger{SubjectID: "pet-1", Category: careevents.CategoryMedication, Label: "Apoquel"})
	if err != nil || res.Op != "add" {
		t.Fatalf("unexpected result %+v %v", res, err)
	}
	h.drain(t)

	if !h.c.HasLogged("pet-1", "apoquel", careevents.CategoryMedication) {
		t.Fatalf("medication should be keyed by label")
	}

	st, err := h.c.MedicationStatus(ctx, "pet-1", "Apoquel", medications.FrequencyDaily)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != medications.StateDueSoon || st.LastAdministered == nil {
		t.Fatalf("expected due_soon right after a daily dose, got %+v", st)
	}
}

func TestToggle_InvalidInput(t *testing.T) {
	h := newHarness(t, morning)
	cases := []Trigger{
		{Slot: "morning", Category: careevents.CategoryFeeding},
		{SubjectID: "pet-1", Slot: "brunch", Category: careevents.CategoryFeeding},
		{SubjectID: "pet-1", Slot: "morning", Category: "grooming"},
		{SubjectID: "pet-1", Category: careevents.CategoryMedication},
	}
	for _, tc := range cases {
		if _, err := h.c.Toggle(context.Background(), tc); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", tc, err)
		}
	}
}

func TestToggle_RapidTriggersAreThrottledThenBlocked(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	first, _ := h.c.Toggle(ctx, feeding("morning"))
	if first.Deferred {
		t.Fatalf("leading toggle must run immediately")
	}
	second, _ := h.c.Toggle(ctx, feeding("morning"))
	if !second.Accepted || !second.Deferred {
		t.Fatalf("toggle inside the throttle interval should be deferred, got %+v", second)
	}

	blocked := false
	for i := 0; i < 20; i++ {
		res, _ := h.c.Toggle(ctx, feeding("morning"))
		if !res.Accepted {
			blocked = true
		}
	}
	if !blocked {
		t.Fatalf("expected the guard to block a burst")
	}

	classes := h.notices.classes()
	if len(classes) != 1 || classes[0] != "input_blocked" {
		t.Fatalf("expected one input_blocked notice, got %v", classes)
	}
}

func TestToggle_DeferredFailureIsLogged(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	if res, _ := h.c.Toggle(ctx, feeding("morning")); res.Deferred {
		t.Fatalf("leading toggle must run immediately")
	}
	res, err := h.c.Toggle(ctx, feeding("morning"))
	if err != nil || !res.Deferred {
		t.Fatalf("expected deferred toggle, got %+v err=%v", res, err)
	}

	// la cola cierra antes de que corra la acción diferida
	h.queue.Close()
	h.advance(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(h.logs.String(), "deferred toggle failed") {
		if time.Now().After(deadline) {
			t.Fatalf("deferred failure never logged:\n%s", h.logs.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(h.logs.String(), opqueue.ErrClosed.Error()) {
		t.Fatalf("expected the queue error in the log:\n%s", h.logs.String())
	}

	// el remove diferido se revirtió: el alta sigue a la vista
	if !h.c.HasLogged("pet-1", "morning", careevents.CategoryFeeding) {
		t.Fatalf("rejected deferred remove must be reverted")
	}
}

type forgettingNotices struct {
	noticeLog
	mu        sync.Mutex
	forgotten []string
}

func (f *forgettingNotices) Forget(class string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, class)
}

func TestSwitchCategory_ResetsGuardAndNoticeWindow(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	notices := &forgettingNotices{}
	h.c.notifier = notices

	for i := 0; i < 20; i++ {
		h.c.Toggle(ctx, feeding("evening"))
	}
	if res, _ := h.c.Toggle(ctx, feeding("evening")); res.Accepted {
		t.Fatalf("expected key blocked before the switch")
	}

	h.c.SwitchCategory(careevents.CategoryPottyBreak)

	if res, _ := h.c.Toggle(ctx, feeding("evening")); !res.Accepted {
		t.Fatalf("switch should clear the guard block")
	}
	notices.mu.Lock()
	got := strings.Join(notices.forgotten, ",")
	notices.mu.Unlock()
	if got != ClassWriteFailure+","+ClassFetchFailure {
		t.Fatalf("expected failure classes forgotten, got %q", got)
	}
}

func TestRefreshCallbackIsDebounced(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	h.c.Toggle(ctx, feeding("morning"))
	h.advance(time.Second)
	h.c.Toggle(ctx, feeding("noon"))
	h.drain(t)

	h.advance(time.Second)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap := <-h.refreshed:
			// el primer toggle pudo disparar su propio callback
			if snap.Len() == 2 {
				return
			}
		case <-timeout:
			t.Fatalf("refresh callback with both toggles never fired")
		}
	}
}

func TestRolloverPointsCacheAtNewDay(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	h.c.Toggle(ctx, feeding("morning"))
	h.drain(t)

	next := morning.AddDate(0, 0, 1)
	h.c.Rollover(ctx, next)

	snap := h.c.Today()
	if snap.Date() != "2025-06-03" {
		t.Fatalf("expected cache on the new day, got %s", snap.Date())
	}
	if h.c.HasLogged("pet-1", "morning", careevents.CategoryFeeding) {
		t.Fatalf("yesterday's record must not show on the new day")
	}
}

func TestRefresh_ForceHitsStore(t *testing.T) {
	h := newHarness(t, morning)
	ctx := context.Background()

	h.c.Refresh(ctx, false)
	h.c.Refresh(ctx, false)
	h.c.Refresh(ctx, true)

	h.store.mu.Lock()
	lists := h.store.lists
	h.store.mu.Unlock()
	if lists != 2 {
		t.Fatalf("expected 2 store calls (ttl hit + force), got %d", lists)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, morning)
	if err := h.c.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := h.c.Toggle(context.Background(), feeding("morning"))
	if err == nil {
		t.Fatalf("expected error after close")
	}
}
