package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
	"pledgewatch/pkg/testutil"
)

func seedPair(t *testing.T, m *Memory) {
	t.Helper()
	ctx := testutil.Context(t)
	require.NoError(t, m.PutEvidence(ctx, domain.Evidence{
		ID:      "evidence:bill:44-1/C-5:second-reading",
		Source:  domain.SourceBillStage,
		Title:   "Second reading of C-5",
		BillKey: "44-1/C-5",
		StageID: domain.StageSecondReading,
	}))
	require.NoError(t, m.PutPromise(ctx, domain.Promise{
		ID:   "promise-housing-1",
		Text: "Build 500,000 affordable homes",
	}))
}

func TestPutEvidencePreservesLinksOnOverwrite(t *testing.T) {
	ctx := testutil.Context(t)
	m := NewMemory()
	seedPair(t, m)

	require.NoError(t, m.ApplyLink(ctx, LinkOp{
		EvidenceID: "evidence:bill:44-1/C-5:second-reading",
		PromiseID:  "promise-housing-1",
	}))

	// Overwrite with corrected metadata; the link must survive.
	require.NoError(t, m.PutEvidence(ctx, domain.Evidence{
		ID:      "evidence:bill:44-1/C-5:second-reading",
		Source:  domain.SourceBillStage,
		Title:   "Second reading of Bill C-5",
		BillKey: "44-1/C-5",
		StageID: domain.StageSecondReading,
		Date:    time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
	}))

	ev, err := m.GetEvidence(ctx, "evidence:bill:44-1/C-5:second-reading")
	require.NoError(t, err)
	assert.Equal(t, "Second reading of Bill C-5", ev.Title)
	assert.Equal(t, []string{"promise-housing-1"}, ev.PromiseIDs)
}

func TestLinkSymmetry(t *testing.T) {
	ctx := testutil.Context(t)
	m := NewMemory()
	seedPair(t, m)

	op := LinkOp{EvidenceID: "evidence:bill:44-1/C-5:second-reading", PromiseID: "promise-housing-1"}
	require.NoError(t, m.ApplyLink(ctx, op))

	ev, err := m.GetEvidence(ctx, op.EvidenceID)
	require.NoError(t, err)
	p, err := m.GetPromise(ctx, op.PromiseID)
	require.NoError(t, err)
	assert.True(t, ev.HasPromise(op.PromiseID))
	assert.True(t, p.HasEvidence(op.EvidenceID))

	// Re-applying the same link is a no-op, not an append.
	require.NoError(t, m.ApplyLink(ctx, op))
	ev, _ = m.GetEvidence(ctx, op.EvidenceID)
	assert.Len(t, ev.PromiseIDs, 1)

	// Unlink updates both sides together.
	op.Remove = true
	require.NoError(t, m.ApplyLink(ctx, op))
	ev, _ = m.GetEvidence(ctx, op.EvidenceID)
	p, _ = m.GetPromise(ctx, op.PromiseID)
	assert.Empty(t, ev.PromiseIDs)
	assert.Empty(t, p.EvidenceIDs)
}

func TestApplyLinkMissingSideFails(t *testing.T) {
	ctx := testutil.Context(t)
	m := NewMemory()
	seedPair(t, m)

	err := m.ApplyLink(ctx, LinkOp{EvidenceID: "nope", PromiseID: "promise-housing-1"})
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	// The promise side must be untouched after the failed op.
	p, err := m.GetPromise(ctx, "promise-housing-1")
	require.NoError(t, err)
	assert.Empty(t, p.EvidenceIDs)
}

func TestStageIDs(t *testing.T) {
	ctx := testutil.Context(t)
	m := NewMemory()
	seedPair(t, m)

	require.NoError(t, m.PutEvidence(ctx, domain.Evidence{
		ID:      "evidence:bill:44-1/C-5:first-reading",
		Source:  domain.SourceBillStage,
		BillKey: "44-1/C-5",
		StageID: domain.StageFirstReading,
	}))

	stages, err := m.StageIDs(ctx, "44-1/C-5")
	require.NoError(t, err)
	assert.Len(t, stages, 2)
	assert.Contains(t, stages, domain.StageFirstReading)
	assert.Contains(t, stages, domain.StageSecondReading)

	other, err := m.StageIDs(ctx, "44-1/C-9")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBillStateRoundTrip(t *testing.T) {
	ctx := testutil.Context(t)
	m := NewMemory()
	key := domain.BillKey{Parliament: 44, Session: 1, Code: "C-5"}

	_, err := m.GetBillState(ctx, key)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, m.PutBillState(ctx, domain.BillState{
		Key:          key,
		LastActivity: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Status:       domain.BillStatusProcessed,
	}))

	state, err := m.GetBillState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.BillStatusProcessed, state.Status)
	assert.False(t, state.UpdatedAt.IsZero())
}
