package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pledgewatch/internal/store"
	txcontext "pledgewatch/pkg/platform/tx"
)

const addPromiseLink = `
	UPDATE evidence SET
		promise_ids = (
			SELECT COALESCE(array_agg(DISTINCT x), '{}')
			FROM unnest(promise_ids || $2::text[]) AS x
		),
		updated_at = NOW()
	WHERE id = $1`

const removePromiseLink = `
	UPDATE evidence SET
		promise_ids = array_remove(promise_ids, $2),
		updated_at = NOW()
	WHERE id = $1`

const addEvidenceLink = `
	UPDATE promises SET
		evidence_ids = (
			SELECT COALESCE(array_agg(DISTINCT x), '{}')
			FROM unnest(evidence_ids || $2::text[]) AS x
		),
		updated_at = NOW()
	WHERE id = $1`

const removeEvidenceLink = `
	UPDATE promises SET
		evidence_ids = array_remove(evidence_ids, $2),
		updated_at = NOW()
	WHERE id = $1`

// ApplyLinks applies a batch of reference updates in one transaction. The
// committer keeps batches under the configured operation cap and falls back
// to ApplyLink per op when the batch fails.
func (s *Store) ApplyLinks(ctx context.Context, ops []store.LinkOp) error {
	if len(ops) == 0 {
		return nil
	}
	return s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, op := range ops {
			if err := applyOp(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyLink applies a single reference update, still transactionally so the
// two sides cannot diverge.
func (s *Store) ApplyLink(ctx context.Context, op store.LinkOp) error {
	return s.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return applyOp(ctx, tx, op)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func applyOp(ctx context.Context, tx pgx.Tx, op store.LinkOp) error {
	evidenceQ, promiseQ := addPromiseLink, addEvidenceLink
	var evArg, prArg any = []string{op.PromiseID}, []string{op.EvidenceID}
	if op.Remove {
		evidenceQ, promiseQ = removePromiseLink, removeEvidenceLink
		evArg, prArg = op.PromiseID, op.EvidenceID
	}

	tag, err := tx.Exec(ctx, evidenceQ, op.EvidenceID, evArg)
	if err != nil {
		return fmt.Errorf("link evidence %s: %w", op.EvidenceID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link evidence %s: no such document", op.EvidenceID)
	}

	tag, err = tx.Exec(ctx, promiseQ, op.PromiseID, prArg)
	if err != nil {
		return fmt.Errorf("link promise %s: %w", op.PromiseID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link promise %s: no such document", op.PromiseID)
	}
	return nil
}
