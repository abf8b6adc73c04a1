package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

type eventRepo struct {
	mu   sync.RWMutex
	byID map[string]careevents.CareEvent
}

func NewEventRepo() careevents.Repository {
	return &eventRepo{
		byID: make(map[string]careevents.CareEvent),
	}
}

func (r *eventRepo) Create(ctx context.Context, e careevents.CareEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.byID[e.ID]; exists {
		return errors.New("event already exists")
	}

	r.byID[e.ID] = e
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *eventRepo) GetByID(ctx context.Context, id string) (careevents.CareEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return careevents.CareEvent{}, careevents.ErrNotFound
	}
	return e, nil
}

func (r *eventRepo) ListByRange(ctx context.Context, from, to time.Time, category careevents.Category) ([]careevents.CareEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]careevents.CareEvent, 0)
	for _, e := range r.byID {
		if e.OccurredAt.Before(from) || !e.OccurredAt.Before(to) {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}

	// occurred_at asc, como en postgres
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (r *eventRepo) ListBySubject(ctx context.Context, subjectID string, filter careevents.ListFilter) ([]careevents.CareEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	label := strings.TrimSpace(filter.Label)

	out := make([]careevents.CareEvent, 0)

	for _, e := range r.byID {
		if e.SubjectID != subjectID {
			continue
		}

		if len(filter.Categories) > 0 {
			ok := false
			for _, c := range filter.Categories {
				if e.Category == c {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}

		if label != "" && !strings.EqualFold(e.Label, label) {
			continue
		}

		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.OccurredAt.After(*filter.To) {
			continue
		}

		out = append(out, e)
	}

	// más reciente primero
	sort.Slice(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
