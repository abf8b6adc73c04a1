package medications

import (
	"context"
	"errors"
	"strings"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

var ErrInvalidInput = errors.New("invalid input")

type State string

const (
	StateIncomplete State = "incomplete"
	StateCurrent    State = "current"
	StateDueSoon    State = "due_soon"
	StateOverdue    State = "overdue"
)

// DueStatus es derivado, nunca se persiste.
type DueStatus struct {
	State        State
	NextDue      *time.Time
	DaysUntilDue *int
	DaysOverdue  *int
}

// Classify:
//   - incomplete si no hay registro previo
//   - current si la frecuencia no tiene vencimiento (as_needed)
//   - overdue si next < today
//   - due_soon si today <= next <= today+lookahead
//   - current en otro caso
//
// Los días son enteros (truncados).
func Classify(last *time.Time, f Frequency, today time.Time, lookaheadDays int) DueStatus {
	if last == nil {
		return DueStatus{State: StateIncomplete}
	}

	next := NextDueDate(last, f)
	if next == nil {
		return DueStatus{State: StateCurrent}
	}

	if next.Before(today) {
		n := int(today.Sub(*next) / day)
		return DueStatus{State: StateOverdue, NextDue: next, DaysOverdue: &n}
	}

	n := int(next.Sub(today) / day)
	if lookaheadDays < 0 {
		lookaheadDays = 0
	}
	horizon := today.Add(time.Duration(lookaheadDays) * day)
	if !next.After(horizon) {
		return DueStatus{State: StateDueSoon, NextDue: next, DaysUntilDue: &n}
	}
	return DueStatus{State: StateCurrent, NextDue: next, DaysUntilDue: &n}
}

// LatestFinder es lo único que necesitamos de careevents.
type LatestFinder interface {
	Latest(ctx context.Context, subjectID string, category careevents.Category, label string) (*careevents.CareEvent, error)
}

type MedicationStatus struct {
	SubjectID        string
	Label            string
	Frequency        Frequency
	LastAdministered *time.Time
	DueStatus
}

// StatusService recalcula el estado desde el último registro en cada llamada.
type StatusService struct {
	events    LatestFinder
	lookahead int
	now       func() time.Time
}

func NewStatusService(events LatestFinder, lookaheadDays int) *StatusService {
	return &StatusService{
		events:    events,
		lookahead: lookaheadDays,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests / reloj compartido del tracker).
func (s *StatusService) WithClock(now func() time.Time) *StatusService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *StatusService) Lookahead() int { return s.lookahead }

func (s *StatusService) Status(ctx context.Context, subjectID, label string, f Frequency) (MedicationStatus, error) {
	return s.StatusWithLookahead(ctx, subjectID, label, f, s.lookahead)
}

func (s *StatusService) StatusWithLookahead(ctx context.Context, subjectID, label string, f Frequency, lookaheadDays int) (MedicationStatus, error) {
	subjectID = strings.TrimSpace(subjectID)
	label = strings.TrimSpace(label)
	if subjectID == "" || label == "" {
		return MedicationStatus{}, ErrInvalidInput
	}

	last, err := s.events.Latest(ctx, subjectID, careevents.CategoryMedication, label)
	if err != nil {
		return MedicationStatus{}, err
	}

	var lastAt *time.Time
	if last != nil {
		t := last.OccurredAt
		lastAt = &t
	}

	return MedicationStatus{
		SubjectID:        subjectID,
		Label:            label,
		Frequency:        f,
		LastAdministered: lastAt,
		DueStatus:        Classify(lastAt, f, s.now(), lookaheadDays),
	}, nil
}
