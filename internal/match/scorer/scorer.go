// Package scorer computes similarity between evidence records and promises.
// The score is a Jaccard token overlap plus flat boosts for important policy
// terms, department matches, and shared policy concepts, clamped to 1.0.
package scorer

import (
	"sort"
	"strings"

	"pledgewatch/internal/domain"
	pstrings "pledgewatch/pkg/platform/strings"
)

// Weights are the boost increments applied on top of the Jaccard base.
type Weights struct {
	ImportantTerm float64
	Department    float64
	Concept       float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{
		ImportantTerm: 0.05,
		Department:    0.20,
		Concept:       0.15,
	}
}

// Input is one side of a comparison: a token set, standardized department
// tags, and the raw text used for concept phrase matching.
type Input struct {
	Tokens      []string
	Departments []string
	Text        string
}

type Scorer struct {
	weights Weights
}

type Option func(*Scorer)

func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

func New(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvidenceInput builds the comparison input for an evidence record. Tokens
// come from the title and description; departments are standardized.
func EvidenceInput(ev domain.Evidence) Input {
	text := ev.Title + " " + ev.Description
	return Input{
		Tokens:      Tokenize(text),
		Departments: StandardizeDepartments(ev.Departments),
		Text:        text,
	}
}

// PromiseInput builds the comparison input for a promise. Promises carry
// curated keywords, which are merged with tokens extracted from the text.
func PromiseInput(p domain.Promise) Input {
	tokens := pstrings.Union(
		pstrings.DedupeAndTrimLower(p.Keywords),
		Tokenize(p.Text),
	)
	return Input{
		Tokens:      tokens,
		Departments: StandardizeDepartments(p.Departments),
		Text:        p.Text + " " + strings.Join(p.Keywords, " "),
	}
}

// Score compares two inputs and returns the composite score with its full
// breakdown. Identical inputs are always deterministic: no randomness, no
// time dependence.
func (s *Scorer) Score(evidence, promise Input) (float64, domain.ScoreBreakdown) {
	shared := pstrings.Intersect(evidence.Tokens, promise.Tokens)
	union := pstrings.Union(evidence.Tokens, promise.Tokens)

	var breakdown domain.ScoreBreakdown
	if len(union) > 0 {
		breakdown.Jaccard = float64(len(shared)) / float64(len(union))
	}

	important := importantMatches(shared)
	sort.Strings(important)
	breakdown.ImportantTerms = important
	breakdown.ImportantBoost = float64(len(important)) * s.weights.ImportantTerm

	departments := pstrings.Intersect(evidence.Departments, promise.Departments)
	sort.Strings(departments)
	breakdown.DepartmentMatches = departments
	breakdown.DepartmentBoost = float64(len(departments)) * s.weights.Department

	concepts := conceptMatches(evidence.Text, promise.Text)
	sort.Strings(concepts)
	breakdown.ConceptMatches = concepts
	breakdown.ConceptBoost = float64(len(concepts)) * s.weights.Concept

	score := breakdown.Jaccard + breakdown.ImportantBoost + breakdown.DepartmentBoost + breakdown.ConceptBoost
	if score > 1.0 {
		score = 1.0
		breakdown.Clamped = true
	}
	return score, breakdown
}
