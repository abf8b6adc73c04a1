package memory

import (
	"context"
	"testing"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

func seed(t *testing.T, repo careevents.Repository, events ...careevents.CareEvent) {
	t.Helper()
	for _, e := range events {
		if err := repo.Create(context.Background(), e); err != nil {
			t.Fatalf("seed %s: %v", e.ID, err)
		}
	}
}

func TestEventRepo_ListByRangeIsHalfOpen(t *testing.T) {
	repo := NewEventRepo()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	seed(t, repo,
		careevents.CareEvent{ID: "a", SubjectID: "pet-1", Category: careevents.CategoryFeeding, OccurredAt: day},
		careevents.CareEvent{ID: "b", SubjectID: "pet-1", Category: careevents.CategoryPottyBreak, OccurredAt: day.Add(13 * time.Hour)},
		careevents.CareEvent{ID: "c", SubjectID: "pet-1", Category: careevents.CategoryFeeding, OccurredAt: day.AddDate(0, 0, 1)},
	)

	items, _ := repo.ListByRange(context.Background(), day, day.AddDate(0, 0, 1), "")
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "b" {
		t.Fatalf("unexpected range result: %+v", items)
	}

	items, _ = repo.ListByRange(context.Background(), day, day.AddDate(0, 0, 1), careevents.CategoryPottyBreak)
	if len(items) != 1 || items[0].ID != "b" {
		t.Fatalf("category filter not applied: %+v", items)
	}
}

func TestEventRepo_DeleteAndGet(t *testing.T) {
	repo := NewEventRepo()
	seed(t, repo, careevents.CareEvent{ID: "a", SubjectID: "pet-1", Category: careevents.CategoryFeeding, OccurredAt: time.Now()})

	ok, err := repo.Delete(context.Background(), "a")
	if err != nil || !ok {
		t.Fatalf("expected delete, got %v %v", ok, err)
	}
	ok, err = repo.Delete(context.Background(), "a")
	if err != nil || ok {
		t.Fatalf("second delete should report false without error, got %v %v", ok, err)
	}
	if _, err := repo.GetByID(context.Background(), "a"); err != careevents.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventRepo_ListBySubjectLabelAndLimit(t *testing.T) {
	repo := NewEventRepo()
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	seed(t, repo,
		careevents.CareEvent{ID: "m1", SubjectID: "pet-1", Category: careevents.CategoryMedication, Label: "Apoquel", OccurredAt: base},
		careevents.CareEvent{ID: "m2", SubjectID: "pet-1", Category: careevents.CategoryMedication, Label: "apoquel", OccurredAt: base.Add(24 * time.Hour)},
		careevents.CareEvent{ID: "m3", SubjectID: "pet-1", Category: careevents.CategoryMedication, Label: "Bravecto", OccurredAt: base.Add(48 * time.Hour)},
		careevents.CareEvent{ID: "f1", SubjectID: "pet-2", Category: careevents.CategoryMedication, Label: "Apoquel", OccurredAt: base.Add(72 * time.Hour)},
	)

	items, _ := repo.ListBySubject(context.Background(), "pet-1", careevents.ListFilter{
		Categories: []careevents.Category{careevents.CategoryMedication},
		Label:      "APOQUEL",
		Limit:      1,
	})
	if len(items) != 1 || items[0].ID != "m2" {
		t.Fatalf("expected latest apoquel m2, got %+v", items)
	}
}
