package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pet-care-tracker/internal/domain/subjects"
)

type SubjectsRepo struct {
	db *sql.DB
}

func NewSubjectsRepo(db *sql.DB) *SubjectsRepo {
	return &SubjectsRepo{db: db}
}

func (r *SubjectsRepo) Create(ctx context.Context, s subjects.Subject) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subjects (
			id, owner_user_id,
			name, species, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		s.ID,
		s.OwnerUserID,
		s.Name,
		string(s.Species),
		s.Notes,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (r *SubjectsRepo) GetByID(ctx context.Context, id string) (subjects.Subject, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return subjects.Subject{}, subjects.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, owner_user_id,
			name, species, notes,
			created_at, updated_at
		FROM subjects
		WHERE id = $1
	`, id)

	s, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return subjects.Subject{}, subjects.ErrNotFound
		}
		return subjects.Subject{}, err
	}
	return s, nil
}

func (r *SubjectsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]subjects.Subject, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, owner_user_id,
			name, species, notes,
			created_at, updated_at
		FROM subjects
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]subjects.Subject, 0)
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubject(sc scanner) (subjects.Subject, error) {
	var s subjects.Subject
	var species string
	if err := sc.Scan(
		&s.ID,
		&s.OwnerUserID,
		&s.Name,
		&species,
		&s.Notes,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return subjects.Subject{}, err
	}
	s.Species = subjects.Species(species)
	return s, nil
}
