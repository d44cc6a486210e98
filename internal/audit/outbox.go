package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// OutboxSink writes audit events to a Postgres outbox table. It backs the
// Kafka sink for deployments that need events to survive broker outages; a
// relay drains the table into the topic.
type OutboxSink struct {
	db *sql.DB
}

const outboxSchema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	id           UUID PRIMARY KEY,
	event_type   TEXT        NOT NULL,
	aggregate_id TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished
	ON audit_outbox (created_at) WHERE published_at IS NULL;
`

func NewOutboxSink(db *sql.DB) *OutboxSink {
	return &OutboxSink{db: db}
}

// Migrate creates the outbox table.
func (s *OutboxSink) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, outboxSchema); err != nil {
		return fmt.Errorf("migrate audit outbox: %w", err)
	}
	return nil
}

func (s *OutboxSink) Publish(ctx context.Context, event Event) error {
	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		return fmt.Errorf("bad audit event id %q: %w", event.ID, err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	aggregateID := event.EvidenceID
	if aggregateID == "" {
		aggregateID = event.RunID
	}
	if _, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Type),
		aggregateID,
		payload,
		time.Now(),
	); err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

// Unpublished returns up to limit events not yet relayed to Kafka, oldest
// first.
func (s *OutboxSink) Unpublished(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit outbox: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox entry: %w", err)
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("decode audit outbox entry: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit outbox: %w", err)
	}
	return events, nil
}

// MarkPublished stamps events as relayed.
func (s *OutboxSink) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("bad outbox id %q: %w", id, err)
		}
	}

	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark audit outbox published: %w", err)
	}
	return nil
}

func (s *OutboxSink) Close() error { return nil }
