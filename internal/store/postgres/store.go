// Package postgres implements the document store over pgx. All identifiers
// are caller-assigned; every write is an upsert keyed on them.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Health checks connectivity for the /healthz endpoint.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS evidence (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	date         TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	departments  TEXT[] NOT NULL DEFAULT '{}',
	url          TEXT NOT NULL DEFAULT '',
	bill_key     TEXT NOT NULL DEFAULT '',
	stage_id     TEXT NOT NULL DEFAULT '',
	terminal     BOOLEAN NOT NULL DEFAULT FALSE,
	promise_ids  TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- One evidence record per (bill, completed stage); enforced in the schema so
-- a race between two runs cannot violate the invariant.
CREATE UNIQUE INDEX IF NOT EXISTS evidence_bill_stage
	ON evidence (bill_key, stage_id) WHERE bill_key <> '';

CREATE TABLE IF NOT EXISTS promises (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL DEFAULT '',
	party        TEXT NOT NULL DEFAULT '',
	departments  TEXT[] NOT NULL DEFAULT '{}',
	keywords     TEXT[] NOT NULL DEFAULT '{}',
	evidence_ids TEXT[] NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS bill_states (
	bill_key          TEXT PRIMARY KEY,
	parliament        INT NOT NULL,
	session           INT NOT NULL,
	code              TEXT NOT NULL,
	last_activity     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
	last_activity_raw TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'pending',
	failure_count     INT NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate creates the schema. Idempotent, safe to run at every startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
