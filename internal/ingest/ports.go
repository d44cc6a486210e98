// Package ingest runs the evidence pipeline: poll the bill registry and the
// configured feeds, detect change, materialize evidence records, and hand
// them to the link committer.
package ingest

import (
	"context"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/match/committer"
	"pledgewatch/internal/registry"
)

// BillRegistry is the slice of the registry client the pipeline consumes.
type BillRegistry interface {
	ListBills(ctx context.Context, session string) ([]registry.BillSummary, error)
	FetchSnapshot(ctx context.Context, summary registry.BillSummary) (*domain.BillSnapshot, error)
}

// LinkCommitter scores one evidence record against the promise catalog and
// applies the resulting links.
type LinkCommitter interface {
	Commit(ctx context.Context, runID string, ev domain.Evidence, promises []domain.Promise, dryRun bool) (committer.Result, error)
}

// FeedSource fetches raw items from one syndication feed URL.
type FeedSource interface {
	Fetch(ctx context.Context, url string) ([]map[string]any, error)
}
