package careevents

import (
	"context"
	"time"
)

// Repository es el contrato mínimo de persistencia que consume el tracker.
type Repository interface {
	Create(ctx context.Context, e CareEvent) error
	// Delete devuelve false (sin error) si el registro no existía.
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (CareEvent, error)
	// ListByRange lista eventos con from <= occurred_at < to.
	// category vacía => todas.
	ListByRange(ctx context.Context, from, to time.Time, category Category) ([]CareEvent, error)
	ListBySubject(ctx context.Context, subjectID string, filter ListFilter) ([]CareEvent, error)
}

type ListFilter struct {
	Categories []Category
	Label      string // match exacto (case-insensitive)
	From       *time.Time
	To         *time.Time
	Limit      int
}
