package careevents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	// ErrWriteFailed envuelve cualquier fallo del repo al crear/borrar.
	ErrWriteFailed = errors.New("write failed")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	SubjectID  string
	Category   Category
	Label      string
	OccurredAt time.Time
	Notes      string
	CreatorID  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (CareEvent, error) {
	if strings.TrimSpace(in.SubjectID) == "" {
		return CareEvent{}, ErrInvalidInput
	}
	if !in.Category.Valid() {
		return CareEvent{}, ErrInvalidInput
	}
	if in.OccurredAt.IsZero() {
		return CareEvent{}, ErrInvalidInput
	}
	if in.Category == CategoryMedication && strings.TrimSpace(in.Label) == "" {
		// medicación se identifica por nombre
		return CareEvent{}, ErrInvalidInput
	}

	e := CareEvent{
		ID:         uuid.NewString(),
		SubjectID:  strings.TrimSpace(in.SubjectID),
		Category:   in.Category,
		Label:      strings.TrimSpace(in.Label),
		OccurredAt: in.OccurredAt,
		RecordedAt: s.now(),
		Notes:      strings.TrimSpace(in.Notes),
		CreatorID:  strings.TrimSpace(in.CreatorID),
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return CareEvent{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return e, nil
}

// Delete borra el registro. (false, nil) si ya no existía.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrInvalidInput
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return ok, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (CareEvent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return CareEvent{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

// ListByDate devuelve los eventos del día calendario de date, en la zona de date.
func (s *Service) ListByDate(ctx context.Context, date time.Time, category Category) ([]CareEvent, error) {
	from, to := DayBounds(date)
	return s.repo.ListByRange(ctx, from, to, category)
}

func (s *Service) ListBySubject(ctx context.Context, subjectID string, filter ListFilter) ([]CareEvent, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListBySubject(ctx, subjectID, filter)
}

// Latest devuelve el evento más reciente de (subject, category, label), o nil.
func (s *Service) Latest(ctx context.Context, subjectID string, category Category, label string) (*CareEvent, error) {
	items, err := s.ListBySubject(ctx, subjectID, ListFilter{
		Categories: []Category{category},
		Label:      label,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	e := items[0]
	return &e, nil
}

// DayBounds devuelve [00:00, 00:00 del día siguiente) en la zona de t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// DateKey formatea el día calendario de t (YYYY-MM-DD).
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
