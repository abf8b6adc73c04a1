package slotcache

import (
	"sort"
	"sync"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

// Key reemplaza la concatenación de strings: un casillero del día.
type Key struct {
	SubjectID string
	Category  careevents.Category
	Slot      string
	Date      string // YYYY-MM-DD
}

func NewKey(subjectID string, category careevents.Category, slot string, date string) Key {
	return Key{
		SubjectID: subjectID,
		Category:  category,
		Slot:      NormalizeSlot(slot),
		Date:      date,
	}
}

// Ticket enlaza un alta optimista con el id real que devuelve el store.
// Un borrado encolado detrás del alta lo lee recién al ejecutarse.
type Ticket struct {
	mu  sync.Mutex
	id  string
	set bool
}

func NewTicket() *Ticket { return &Ticket{} }

func (t *Ticket) Resolve(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = id
	t.set = true
}

func (t *Ticket) ID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id, t.set && t.id != ""
}

type Entry struct {
	Key       Key
	RecordID  string
	FetchedAt time.Time
	Pending   bool
	Ticket    *Ticket
}

func (e Entry) same(o Entry) bool {
	if e.Ticket != nil || o.Ticket != nil {
		return e.Ticket == o.Ticket
	}
	return e.RecordID == o.RecordID
}

type Op int

const (
	OpAdd Op = iota + 1
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Command es un cambio optimista sobre un Snapshot. Entry es lo que se
// agrega (OpAdd) o lo que se saca (OpRemove).
type Command struct {
	Op    Op
	Entry Entry
}

func Add(e Entry) Command    { return Command{Op: OpAdd, Entry: e} }
func Remove(e Entry) Command { return Command{Op: OpRemove, Entry: e} }

func (c Command) Inverse() Command {
	if c.Op == OpAdd {
		return Remove(c.Entry)
	}
	return Add(c.Entry)
}

// Snapshot es inmutable: Apply devuelve uno nuevo.
type Snapshot struct {
	date      string
	fetchedAt time.Time
	entries   map[Key]Entry
}

func emptySnapshot(date string) Snapshot {
	return Snapshot{date: date, entries: map[Key]Entry{}}
}

func (s Snapshot) Date() string         { return s.date }
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }
func (s Snapshot) Len() int             { return len(s.entries) }

func (s Snapshot) Get(k Key) (Entry, bool) {
	e, ok := s.entries[k]
	return e, ok
}

// Entries ordenadas por subject, categoría y slot.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Slot < b.Slot
	})
	return out
}

func (s Snapshot) Apply(c Command) Snapshot {
	next := Snapshot{
		date:      s.date,
		fetchedAt: s.fetchedAt,
		entries:   make(map[Key]Entry, len(s.entries)+1),
	}
	for k, e := range s.entries {
		next.entries[k] = e
	}

	switch c.Op {
	case OpAdd:
		next.entries[c.Entry.Key] = c.Entry
	case OpRemove:
		delete(next.entries, c.Entry.Key)
	}
	return next
}
