package subjects

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byID map[string]Subject
}

func (r *testRepo) Create(ctx context.Context, s Subject) error {
	r.byID[s.ID] = s
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Subject, error) {
	s, ok := r.byID[id]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return s, nil
}

func (r *testRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]Subject, error) {
	out := []Subject{}
	for _, s := range r.byID {
		if s.OwnerUserID == ownerUserID {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestService_Create(t *testing.T) {
	repo := &testRepo{byID: map[string]Subject{}}
	svc := NewService(repo)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	s, err := svc.Create(context.Background(), "owner-1", CreateInput{Name: " Milo ", Species: "DOG"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "Milo" || s.Species != SpeciesDog || !s.CreatedAt.Equal(now) {
		t.Fatalf("unexpected subject: %+v", s)
	}

	got, err := svc.GetByID(context.Background(), s.ID)
	if err != nil || got.ID != s.ID {
		t.Fatalf("expected to read back subject, got %+v / %v", got, err)
	}
}

func TestService_Create_DefaultsAndValidation(t *testing.T) {
	svc := NewService(&testRepo{byID: map[string]Subject{}})

	s, err := svc.Create(context.Background(), "o", CreateInput{Name: "Kiwi"})
	if err != nil || s.Species != SpeciesOther {
		t.Fatalf("expected species default other, got %+v / %v", s, err)
	}
	if _, err := svc.Create(context.Background(), "o", CreateInput{Name: "X", Species: "dragon"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid species error, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "", CreateInput{Name: "X"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid owner error, got %v", err)
	}
}
