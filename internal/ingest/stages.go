package ingest

import (
	"sort"

	"pledgewatch/internal/domain"
)

// StagesToMaterialize returns the completed stages from one snapshot that do
// not yet have an evidence record, oldest first. Only the latest-completed
// stages reported by the payload are candidates: the extractor never infers
// intermediate stages it has not observed, so a bill that advances twice
// between polls loses the middle stage. Repeated polling is what closes the
// gap.
func StagesToMaterialize(snap *domain.BillSnapshot, existing map[domain.StageID]struct{}) []domain.CompletedStage {
	var candidates []domain.CompletedStage
	if snap.LatestMajorStage.ID != "" {
		candidates = append(candidates, snap.LatestMajorStage)
	}
	if minor := snap.LatestMinorStage; minor != nil && minor.ID != "" && minor.ID != snap.LatestMajorStage.ID {
		candidates = append(candidates, *minor)
	}

	var out []domain.CompletedStage
	for _, stage := range candidates {
		if _, seen := existing[stage.ID]; seen {
			continue
		}
		out = append(out, stage)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
