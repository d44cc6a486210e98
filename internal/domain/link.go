package domain

// Tier is the confidence band a scored pair falls into. Boundary semantics:
// a score exactly at the bypass threshold auto-links, a score exactly at the
// llm threshold goes to validation.
type Tier string

const (
	TierAutoLink        Tier = "auto_link"
	TierNeedsValidation Tier = "needs_validation"
	TierReject          Tier = "reject"
)

// ScoreBreakdown records every signal that contributed to a composite score
// so decisions can be audited and replayed.
type ScoreBreakdown struct {
	Jaccard           float64  `json:"jaccard"`
	ImportantTerms    []string `json:"important_terms,omitempty"`
	ImportantBoost    float64  `json:"important_boost"`
	DepartmentMatches []string `json:"department_matches,omitempty"`
	DepartmentBoost   float64  `json:"department_boost"`
	ConceptMatches    []string `json:"concept_matches,omitempty"`
	ConceptBoost      float64  `json:"concept_boost"`
	Clamped           bool     `json:"clamped,omitempty"`
}

// LinkDecision is the ephemeral outcome of scoring one (evidence, promise)
// pair. It is never persisted as its own entity; the committer folds it into
// the two reference lists and the audit trail.
type LinkDecision struct {
	EvidenceID string
	PromiseID  string
	Score      float64
	Breakdown  ScoreBreakdown
	Tier       Tier
	// ValidatorConfirmed is set only for TierNeedsValidation pairs that
	// were escalated; nil means the validator was not consulted.
	ValidatorConfirmed *bool
	ValidatorRationale string
}

// ShouldLink reports whether the decision results in a durable link.
func (d LinkDecision) ShouldLink() bool {
	switch d.Tier {
	case TierAutoLink:
		return true
	case TierNeedsValidation:
		return d.ValidatorConfirmed != nil && *d.ValidatorConfirmed
	}
	return false
}
