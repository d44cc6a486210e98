// Package store defines keyed document access for evidence, promises, and
// per-bill processing state. Identifiers are always caller-assigned — the
// determinism of evidence IDs is what keeps the pipeline idempotent — so no
// implementation may generate its own.
package store

import (
	"context"

	"pledgewatch/internal/domain"
)

type EvidenceStore interface {
	GetEvidence(ctx context.Context, id string) (domain.Evidence, error)
	// PutEvidence creates or overwrites a document under its caller-assigned
	// ID, preserving existing promise links and creation time on overwrite.
	PutEvidence(ctx context.Context, ev domain.Evidence) error
	EvidenceExists(ctx context.Context, id string) (bool, error)
	// StageIDs returns the set of stage identifiers already materialized for
	// a bill. The stage extractor consults this for idempotence.
	StageIDs(ctx context.Context, billKey string) (map[domain.StageID]struct{}, error)
	ListEvidenceBySource(ctx context.Context, source domain.SourceType, limit int) ([]domain.Evidence, error)
}

type PromiseStore interface {
	GetPromise(ctx context.Context, id string) (domain.Promise, error)
	// PutPromise exists for the separate promise-ingestion path and tests;
	// the pipeline itself never creates promises.
	PutPromise(ctx context.Context, p domain.Promise) error
	ListPromises(ctx context.Context) ([]domain.Promise, error)
}

type BillStateStore interface {
	GetBillState(ctx context.Context, key domain.BillKey) (domain.BillState, error)
	PutBillState(ctx context.Context, state domain.BillState) error
}

// LinkOp adds or removes one evidence↔promise reference pair. Applying an
// op updates both sides or neither.
type LinkOp struct {
	EvidenceID string
	PromiseID  string
	Remove     bool
}

// Linker applies reference updates with set-union semantics. ApplyLinks
// applies a bounded batch as a unit; a failed batch is retried per-op by the
// committer through ApplyLink so one bad document cannot block a run.
type Linker interface {
	ApplyLinks(ctx context.Context, ops []LinkOp) error
	ApplyLink(ctx context.Context, op LinkOp) error
}

// Store bundles every persistence capability the pipeline needs. Both the
// in-memory and postgres implementations satisfy it with a single type so
// link application can be atomic across the evidence and promise sides.
type Store interface {
	EvidenceStore
	PromiseStore
	BillStateStore
	Linker
}
