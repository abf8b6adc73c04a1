package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"pet-care-tracker/internal/domain/subjects"
)

type subjectRepo struct {
	mu   sync.RWMutex
	byID map[string]subjects.Subject
}

func NewSubjectRepo() subjects.Repository {
	return &subjectRepo{
		byID: make(map[string]subjects.Subject),
	}
}

func (r *subjectRepo) Create(ctx context.Context, s subjects.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.ID) == "" {
		return errors.New("subject id required")
	}
	if _, exists := r.byID[s.ID]; exists {
		return errors.New("subject already exists")
	}
	r.byID[s.ID] = s
	return nil
}

func (r *subjectRepo) GetByID(ctx context.Context, id string) (subjects.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return subjects.Subject{}, subjects.ErrNotFound
	}
	return s, nil
}

func (r *subjectRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]subjects.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]subjects.Subject, 0)
	for _, s := range r.byID {
		if s.OwnerUserID == ownerUserID {
			out = append(out, s)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
