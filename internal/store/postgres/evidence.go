package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
)

func (s *Store) GetEvidence(ctx context.Context, id string) (domain.Evidence, error) {
	const q = `
		SELECT id, source, title, description, date, departments, url,
		       bill_key, stage_id, terminal, promise_ids, created_at, updated_at
		FROM evidence WHERE id = $1`

	var ev domain.Evidence
	var source string
	var stageID string
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&ev.ID, &source, &ev.Title, &ev.Description, &ev.Date, &ev.Departments,
		&ev.URL, &ev.BillKey, &stageID, &ev.Terminal, &ev.PromiseIDs,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Evidence{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("get evidence: %w", err)
	}
	ev.Source = domain.SourceType(source)
	ev.StageID = domain.StageID(stageID)
	return ev, nil
}

// PutEvidence upserts under the caller-assigned ID. On conflict the link
// list and creation time are preserved; everything else is overwritten.
func (s *Store) PutEvidence(ctx context.Context, ev domain.Evidence) error {
	const q = `
		INSERT INTO evidence
			(id, source, title, description, date, departments, url,
			 bill_key, stage_id, terminal, promise_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			date = EXCLUDED.date,
			departments = EXCLUDED.departments,
			url = EXCLUDED.url,
			bill_key = EXCLUDED.bill_key,
			stage_id = EXCLUDED.stage_id,
			terminal = EXCLUDED.terminal,
			promise_ids = (
				SELECT COALESCE(array_agg(DISTINCT x), '{}')
				FROM unnest(evidence.promise_ids || EXCLUDED.promise_ids) AS x
			),
			updated_at = NOW()`

	departments := ev.Departments
	if departments == nil {
		departments = []string{}
	}
	promiseIDs := ev.PromiseIDs
	if promiseIDs == nil {
		promiseIDs = []string{}
	}

	_, err := s.pool.Exec(ctx, q,
		ev.ID, string(ev.Source), ev.Title, ev.Description, ev.Date,
		departments, ev.URL, ev.BillKey, string(ev.StageID), ev.Terminal, promiseIDs,
	)
	if err != nil {
		return fmt.Errorf("put evidence: %w", err)
	}
	return nil
}

func (s *Store) EvidenceExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM evidence WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("evidence exists: %w", err)
	}
	return exists, nil
}

func (s *Store) StageIDs(ctx context.Context, billKey string) (map[domain.StageID]struct{}, error) {
	rows, err := s.pool.Query(ctx, `SELECT stage_id FROM evidence WHERE bill_key = $1 AND stage_id <> ''`, billKey)
	if err != nil {
		return nil, fmt.Errorf("stage ids: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.StageID]struct{})
	for rows.Next() {
		var stageID string
		if err := rows.Scan(&stageID); err != nil {
			return nil, fmt.Errorf("stage ids scan: %w", err)
		}
		out[domain.StageID(stageID)] = struct{}{}
	}
	return out, rows.Err()
}

func (s *Store) ListEvidenceBySource(ctx context.Context, source domain.SourceType, limit int) ([]domain.Evidence, error) {
	const q = `
		SELECT id, source, title, description, date, departments, url,
		       bill_key, stage_id, terminal, promise_ids, created_at, updated_at
		FROM evidence WHERE source = $1 ORDER BY date DESC LIMIT $2`

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, q, string(source), limit)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []domain.Evidence
	for rows.Next() {
		var ev domain.Evidence
		var src, stageID string
		if err := rows.Scan(
			&ev.ID, &src, &ev.Title, &ev.Description, &ev.Date, &ev.Departments,
			&ev.URL, &ev.BillKey, &stageID, &ev.Terminal, &ev.PromiseIDs,
			&ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("list evidence scan: %w", err)
		}
		ev.Source = domain.SourceType(src)
		ev.StageID = domain.StageID(stageID)
		out = append(out, ev)
	}
	return out, rows.Err()
}
