package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open abre una conexión pool a Postgres usando pgx (database/sql).
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL,
	name          TEXT NOT NULL,
	species       TEXT NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS subjects_owner_idx ON subjects (owner_user_id);

CREATE TABLE IF NOT EXISTS care_events (
	id          TEXT PRIMARY KEY,
	subject_id  TEXT NOT NULL,
	category    TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	creator_id  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS care_events_occurred_idx ON care_events (occurred_at);
CREATE INDEX IF NOT EXISTS care_events_subject_idx ON care_events (subject_id, category, occurred_at DESC);
`

// EnsureSchema crea las tablas si no existen (dev / primer arranque).
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
