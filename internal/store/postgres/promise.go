package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
)

func (s *Store) GetPromise(ctx context.Context, id string) (domain.Promise, error) {
	const q = `
		SELECT id, text, party, departments, keywords, evidence_ids, created_at, updated_at
		FROM promises WHERE id = $1`

	var p domain.Promise
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Text, &p.Party, &p.Departments, &p.Keywords,
		&p.EvidenceIDs, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Promise{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Promise{}, fmt.Errorf("get promise: %w", err)
	}
	return p, nil
}

func (s *Store) PutPromise(ctx context.Context, p domain.Promise) error {
	const q = `
		INSERT INTO promises (id, text, party, departments, keywords, evidence_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			party = EXCLUDED.party,
			departments = EXCLUDED.departments,
			keywords = EXCLUDED.keywords,
			evidence_ids = (
				SELECT COALESCE(array_agg(DISTINCT x), '{}')
				FROM unnest(promises.evidence_ids || EXCLUDED.evidence_ids) AS x
			),
			updated_at = NOW()`

	departments := p.Departments
	if departments == nil {
		departments = []string{}
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	evidenceIDs := p.EvidenceIDs
	if evidenceIDs == nil {
		evidenceIDs = []string{}
	}

	if _, err := s.pool.Exec(ctx, q, p.ID, p.Text, p.Party, departments, keywords, evidenceIDs); err != nil {
		return fmt.Errorf("put promise: %w", err)
	}
	return nil
}

func (s *Store) ListPromises(ctx context.Context) ([]domain.Promise, error) {
	const q = `
		SELECT id, text, party, departments, keywords, evidence_ids, created_at, updated_at
		FROM promises ORDER BY id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list promises: %w", err)
	}
	defer rows.Close()

	var out []domain.Promise
	for rows.Next() {
		var p domain.Promise
		if err := rows.Scan(
			&p.ID, &p.Text, &p.Party, &p.Departments, &p.Keywords,
			&p.EvidenceIDs, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("list promises scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
