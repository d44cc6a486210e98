package domain

import "time"

// Promise is a tracked political commitment. Promises are created by a
// separate ingestion path; this subsystem only appends or removes evidence
// references through the link committer.
type Promise struct {
	ID          string
	Text        string
	Party       string
	Departments []string
	// Keywords is the pre-extracted keyword/concept set stored at promise
	// ingestion time, compared against evidence tokens by the scorer.
	Keywords    []string
	EvidenceIDs []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasEvidence reports whether an evidence record is already linked.
func (p Promise) HasEvidence(evidenceID string) bool {
	for _, id := range p.EvidenceIDs {
		if id == evidenceID {
			return true
		}
	}
	return false
}
