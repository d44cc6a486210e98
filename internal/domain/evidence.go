package domain

import "time"

// Evidence is the canonical unit of matchable government activity. One
// record exists per distinct (bill, completed stage) pair, or per external
// news/regulatory item. The ID is derived deterministically from stable
// source attributes and never regenerated for the same logical event.
type Evidence struct {
	ID          string
	Source      SourceType
	Title       string
	Description string
	Date        time.Time
	Departments []string
	URL         string

	// Bill-derived fields; zero values for non-bill sources.
	BillKey string
	StageID StageID
	// Terminal marks evidence for a final-disposition stage.
	Terminal bool

	// PromiseIDs are maintained with set-union semantics by the link
	// committer; the mirrored list lives on Promise.EvidenceIDs.
	PromiseIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPromise reports whether a promise is already linked.
func (e Evidence) HasPromise(promiseID string) bool {
	for _, id := range e.PromiseIDs {
		if id == promiseID {
			return true
		}
	}
	return false
}
