package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgewatch/internal/domain"
)

func snapshotAt(major domain.CompletedStage, minor *domain.CompletedStage) *domain.BillSnapshot {
	return &domain.BillSnapshot{
		Key:              domain.BillKey{Parliament: 44, Session: 1, Code: "C-5"},
		ShortTitle:       "Affordable Housing Act",
		LatestMajorStage: major,
		LatestMinorStage: minor,
	}
}

func TestStagesToMaterializeNewStage(t *testing.T) {
	snap := snapshotAt(domain.CompletedStage{
		ID:      domain.StageSecondReading,
		Name:    "Second reading",
		Chamber: "House",
		Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil)

	stages := StagesToMaterialize(snap, nil)
	require.Len(t, stages, 1)
	assert.Equal(t, domain.StageSecondReading, stages[0].ID)
}

// Re-polling with no stage change must emit nothing.
func TestStagesToMaterializeAlreadySeen(t *testing.T) {
	snap := snapshotAt(domain.CompletedStage{
		ID:   domain.StageFirstReading,
		Name: "First reading",
	}, nil)

	existing := map[domain.StageID]struct{}{domain.StageFirstReading: {}}
	assert.Empty(t, StagesToMaterialize(snap, existing))
}

func TestStagesToMaterializeMinorStage(t *testing.T) {
	major := domain.CompletedStage{
		ID:   domain.StageSecondReading,
		Name: "Second reading",
		Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	minor := domain.CompletedStage{
		ID:   domain.StageCommittee,
		Name: "Referred to committee",
		Date: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	snap := snapshotAt(major, &minor)

	stages := StagesToMaterialize(snap, nil)
	require.Len(t, stages, 2)
	assert.Equal(t, domain.StageSecondReading, stages[0].ID, "older stage first")
	assert.Equal(t, domain.StageCommittee, stages[1].ID)
}

func TestStagesToMaterializeMinorDuplicatesMajor(t *testing.T) {
	major := domain.CompletedStage{ID: domain.StageThirdReading, Name: "Third reading"}
	snap := snapshotAt(major, &major)

	stages := StagesToMaterialize(snap, nil)
	require.Len(t, stages, 1)
}

func TestStagesToMaterializePartiallySeen(t *testing.T) {
	major := domain.CompletedStage{ID: domain.StageSecondReading}
	minor := domain.CompletedStage{ID: domain.StageCommittee}
	snap := snapshotAt(major, &minor)

	existing := map[domain.StageID]struct{}{domain.StageSecondReading: {}}
	stages := StagesToMaterialize(snap, existing)
	require.Len(t, stages, 1)
	assert.Equal(t, domain.StageCommittee, stages[0].ID)
}

func TestTerminalStageFlag(t *testing.T) {
	assert.True(t, domain.StageRoyalAssent.IsTerminal())
	assert.True(t, domain.StageDefeated.IsTerminal())
	assert.True(t, domain.StageWithdrawn.IsTerminal())
	assert.False(t, domain.StageThirdReading.IsTerminal())
}
