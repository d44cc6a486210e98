package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
)

func (s *Store) GetBillState(ctx context.Context, key domain.BillKey) (domain.BillState, error) {
	const q = `
		SELECT parliament, session, code, last_activity, last_activity_raw,
		       status, failure_count, updated_at
		FROM bill_states WHERE bill_key = $1`

	var state domain.BillState
	var status string
	err := s.pool.QueryRow(ctx, q, key.String()).Scan(
		&state.Key.Parliament, &state.Key.Session, &state.Key.Code,
		&state.LastActivity, &state.LastActivityRaw,
		&status, &state.FailureCount, &state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BillState{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.BillState{}, fmt.Errorf("get bill state: %w", err)
	}
	state.Status = domain.BillStatus(status)
	return state, nil
}

func (s *Store) PutBillState(ctx context.Context, state domain.BillState) error {
	const q = `
		INSERT INTO bill_states
			(bill_key, parliament, session, code, last_activity, last_activity_raw, status, failure_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bill_key) DO UPDATE SET
			last_activity = EXCLUDED.last_activity,
			last_activity_raw = EXCLUDED.last_activity_raw,
			status = EXCLUDED.status,
			failure_count = EXCLUDED.failure_count,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, q,
		state.Key.String(), state.Key.Parliament, state.Key.Session, state.Key.Code,
		state.LastActivity, state.LastActivityRaw, string(state.Status), state.FailureCount,
	)
	if err != nil {
		return fmt.Errorf("put bill state: %w", err)
	}
	return nil
}
