package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

type EventsRepo struct {
	db *sql.DB
}

func NewEventsRepo(db *sql.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

const eventColumns = `
	id, subject_id,
	category, label,
	occurred_at, recorded_at,
	notes, creator_id
`

func (r *EventsRepo) Create(ctx context.Context, e careevents.CareEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO care_events (`+eventColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		e.ID,
		e.SubjectID,
		string(e.Category),
		e.Label,
		e.OccurredAt,
		e.RecordedAt,
		e.Notes,
		e.CreatorID,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert care event: %w", err)
	}
	return nil
}

func (r *EventsRepo) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM care_events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("postgres: delete care event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (careevents.CareEvent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return careevents.CareEvent{}, careevents.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM care_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return careevents.CareEvent{}, careevents.ErrNotFound
		}
		return careevents.CareEvent{}, err
	}
	return e, nil
}

func (r *EventsRepo) ListByRange(ctx context.Context, from, to time.Time, category careevents.Category) ([]careevents.CareEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM care_events WHERE occurred_at >= $1 AND occurred_at < $2`
	args := []any{from, to}
	if category != "" {
		q += ` AND category = $3`
		args = append(args, string(category))
	}
	q += ` ORDER BY occurred_at ASC`

	return r.query(ctx, q, args...)
}

func (r *EventsRepo) ListBySubject(ctx context.Context, subjectID string, filter careevents.ListFilter) ([]careevents.CareEvent, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, nil
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + eventColumns + ` FROM care_events WHERE subject_id = $1`)

	args := []any{subjectID}
	argN := 2

	if len(filter.Categories) > 0 {
		placeholders := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, string(c))
			argN++
		}
		sb.WriteString(" AND category IN (" + strings.Join(placeholders, ",") + ")")
	}

	if label := strings.TrimSpace(filter.Label); label != "" {
		sb.WriteString(fmt.Sprintf(" AND lower(label) = lower($%d)", argN))
		args = append(args, label)
		argN++
	}

	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at <= $%d", argN))
		args = append(args, *filter.To)
		argN++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	sb.WriteString(" ORDER BY occurred_at DESC")
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
	args = append(args, limit)

	return r.query(ctx, sb.String(), args...)
}

func (r *EventsRepo) query(ctx context.Context, q string, args ...any) ([]careevents.CareEvent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list care events: %w", err)
	}
	defer rows.Close()

	out := make([]careevents.CareEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(sc scanner) (careevents.CareEvent, error) {
	var e careevents.CareEvent
	var category string
	if err := sc.Scan(
		&e.ID,
		&e.SubjectID,
		&category,
		&e.Label,
		&e.OccurredAt,
		&e.RecordedAt,
		&e.Notes,
		&e.CreatorID,
	); err != nil {
		return careevents.CareEvent{}, err
	}
	e.Category = careevents.Category(category)
	return e, nil
}
