package scorer

import (
	"strings"
	"unicode"

	pstrings "pledgewatch/pkg/platform/strings"
)

// stopWords mixes generic English stop words with government boilerplate
// that appears in nearly every bill title and so carries no signal.
var stopWords = map[string]struct{}{
	// generic English
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "will": {}, "would": {},
	"there": {}, "their": {}, "what": {}, "about": {}, "which": {},
	"when": {}, "into": {}, "more": {}, "other": {}, "some": {}, "such": {},
	"than": {}, "then": {}, "these": {}, "also": {}, "been": {}, "were": {},
	"respecting": {}, "regarding": {}, "certain": {}, "related": {},
	// government boilerplate
	"act": {}, "bill": {}, "amend": {}, "amendments": {}, "amendment": {},
	"minister": {}, "ministry": {}, "parliament": {}, "parliamentary": {},
	"committee": {}, "government": {}, "federal": {}, "canada": {},
	"canadian": {}, "royal": {}, "assent": {}, "reading": {}, "house": {},
	"senate": {}, "commons": {}, "session": {}, "legislation": {},
	"provisions": {}, "enact": {}, "consequential": {},
}

// importantTerms are policy areas weighted above ordinary token overlap.
// Each term present in both token sets adds a flat boost.
var importantTerms = map[string]struct{}{
	"health": {}, "housing": {}, "climate": {}, "immigration": {},
	"defence": {}, "tax": {}, "childcare": {}, "pharmacare": {},
	"dental": {}, "infrastructure": {}, "reconciliation": {},
	"energy": {}, "economy": {}, "jobs": {}, "education": {},
	"seniors": {}, "veterans": {}, "environment": {}, "firearms": {},
	"broadband": {}, "agriculture": {}, "transit": {},
}

// Tokenize lowercases text, splits on non-alphanumeric runs, keeps words of
// three or more characters, and drops stop words. The result is a
// deduplicated set suitable for Jaccard comparison.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return pstrings.DedupeAndTrimLower(kept)
}

// importantMatches returns the shared tokens that are important terms.
func importantMatches(shared []string) []string {
	var out []string
	for _, tok := range shared {
		if _, ok := importantTerms[tok]; ok {
			out = append(out, tok)
		}
	}
	return out
}
