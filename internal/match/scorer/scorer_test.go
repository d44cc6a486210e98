package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgewatch/internal/domain"
)

func TestTokenizeDropsNoiseAndDedupes(t *testing.T) {
	got := Tokenize("An Act to amend the Housing Act respecting affordable housing in Canada")
	assert.ElementsMatch(t, []string{"housing", "affordable"}, got)
}

func TestTokenizeShortWords(t *testing.T) {
	got := Tokenize("a an to of C-5 GST tax")
	assert.ElementsMatch(t, []string{"gst", "tax"}, got)
}

func TestStandardizeDepartments(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"exact variant", []string{"Health Canada"}, []string{"health"}},
		{"canonical passthrough", []string{"housing"}, []string{"housing"}},
		{"acronym", []string{"CMHC"}, []string{"housing"}},
		{"substring prefix", []string{"the Minister of Health"}, []string{"health"}},
		{"unknown dropped", []string{"Ministry of Magic"}, nil},
		{"dedupe across variants", []string{"Health Canada", "PHAC"}, []string{"health"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StandardizeDepartments(tt.in))
		})
	}
}

func TestScoreCompositeBreakdown(t *testing.T) {
	s := New()

	// One shared token out of five, the shared token is an important term,
	// and one department matches: 0.20 + 0.05 + 0.20 = 0.45.
	evidence := Input{
		Tokens:      []string{"housing", "affordable", "construction"},
		Departments: []string{"housing"},
	}
	promise := Input{
		Tokens:      []string{"housing", "rent", "tenants"},
		Departments: []string{"housing"},
	}

	score, breakdown := s.Score(evidence, promise)
	require.InDelta(t, 0.45, score, 1e-9)
	assert.InDelta(t, 0.20, breakdown.Jaccard, 1e-9)
	assert.Equal(t, []string{"housing"}, breakdown.ImportantTerms)
	assert.InDelta(t, 0.05, breakdown.ImportantBoost, 1e-9)
	assert.Equal(t, []string{"housing"}, breakdown.DepartmentMatches)
	assert.InDelta(t, 0.20, breakdown.DepartmentBoost, 1e-9)
	assert.Empty(t, breakdown.ConceptMatches)
	assert.False(t, breakdown.Clamped)
}

func TestScoreConceptBoost(t *testing.T) {
	s := New()
	evidence := Input{
		Tokens: []string{"pollution"},
		Text:   "a price on pollution for large emitters",
	}
	promise := Input{
		Tokens: []string{"emissions"},
		Text:   "introduce a national carbon tax",
	}

	score, breakdown := s.Score(evidence, promise)
	assert.Equal(t, []string{"carbon pricing"}, breakdown.ConceptMatches)
	assert.InDelta(t, 0.15, breakdown.ConceptBoost, 1e-9)
	assert.InDelta(t, 0.15, score, 1e-9)
}

func TestScoreClampsAtOne(t *testing.T) {
	s := New()
	in := Input{
		Tokens:      []string{"housing", "health", "climate", "tax"},
		Departments: []string{"housing", "health", "finance"},
		Text:        "affordable housing and pharmacare",
	}

	score, breakdown := s.Score(in, in)
	assert.Equal(t, 1.0, score)
	assert.True(t, breakdown.Clamped)
}

func TestScoreNoOverlap(t *testing.T) {
	s := New()
	score, breakdown := s.Score(
		Input{Tokens: []string{"pipelines"}},
		Input{Tokens: []string{"daycare"}},
	)
	assert.Zero(t, score)
	assert.Zero(t, breakdown.Jaccard)
}

func TestScoreEmptyInputs(t *testing.T) {
	s := New()
	score, breakdown := s.Score(Input{}, Input{})
	assert.Zero(t, score)
	assert.Zero(t, breakdown.Jaccard)
}

func TestScoreDeterministic(t *testing.T) {
	s := New()
	evidence := Input{
		Tokens:      []string{"dental", "coverage", "families"},
		Departments: []string{"health"},
		Text:        "dental coverage for families",
	}
	promise := Input{
		Tokens:      []string{"dental", "care", "children"},
		Departments: []string{"health"},
		Text:        "dental care for children under 12",
	}

	first, firstBreakdown := s.Score(evidence, promise)
	for i := 0; i < 10; i++ {
		score, breakdown := s.Score(evidence, promise)
		require.Equal(t, first, score)
		require.Equal(t, firstBreakdown, breakdown)
	}
}

func TestScoreDepartmentMatchRaisesScore(t *testing.T) {
	s := New()
	evidence := Input{Tokens: []string{"transit", "funding"}}
	promise := Input{Tokens: []string{"transit", "expansion"}}

	without, _ := s.Score(evidence, promise)

	evidence.Departments = []string{"transport"}
	promise.Departments = []string{"transport"}
	with, _ := s.Score(evidence, promise)

	assert.Greater(t, with, without)
	assert.InDelta(t, 0.20, with-without, 1e-9)
}

func TestEvidenceInput(t *testing.T) {
	in := EvidenceInput(domain.Evidence{
		Title:       "An Act respecting affordable housing",
		Description: "Second reading completed",
		Departments: []string{"CMHC"},
	})
	assert.Contains(t, in.Tokens, "housing")
	assert.Contains(t, in.Tokens, "affordable")
	assert.NotContains(t, in.Tokens, "act")
	assert.Equal(t, []string{"housing"}, in.Departments)
}

func TestPromiseInputMergesKeywordsAndText(t *testing.T) {
	in := PromiseInput(domain.Promise{
		Text:        "Build more affordable homes",
		Keywords:    []string{"Housing", "rent"},
		Departments: []string{"Housing, Infrastructure and Communities Canada"},
	})
	assert.Contains(t, in.Tokens, "housing")
	assert.Contains(t, in.Tokens, "rent")
	assert.Contains(t, in.Tokens, "affordable")
	assert.Equal(t, []string{"housing"}, in.Departments)
}

func TestWithWeights(t *testing.T) {
	s := New(WithWeights(Weights{Department: 0.5}))
	score, _ := s.Score(
		Input{Tokens: []string{"alpha"}, Departments: []string{"health"}},
		Input{Tokens: []string{"beta"}, Departments: []string{"health"}},
	)
	assert.InDelta(t, 0.5, score, 1e-9)
}
