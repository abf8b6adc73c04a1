package subjects

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
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
	Name    string
	Species string
	Notes   string
}

func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Subject, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return Subject{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Name) == "" {
		return Subject{}, ErrInvalidInput
	}
	sp := Species(strings.ToLower(strings.TrimSpace(in.Species)))
	if sp == "" {
		sp = SpeciesOther
	}
	if !sp.Valid() {
		return Subject{}, ErrInvalidInput
	}

	now := s.now()
	sub := Subject{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Name:        strings.TrimSpace(in.Name),
		Species:     sp,
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return Subject{}, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Subject, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Subject{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Subject, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}
