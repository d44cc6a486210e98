package scorer

import "strings"

// conceptTable maps abstract policy concepts to the literal phrases that
// express them. A concept matches when a phrase from its list appears in
// both texts; each matched concept adds one flat boost.
var conceptTable = map[string][]string{
	"just transition": {
		"just transition", "green jobs", "clean energy jobs", "coal phase-out",
	},
	"housing affordability": {
		"affordable housing", "housing crisis", "housing affordability",
		"rent relief", "first-time home buyer",
	},
	"universal pharmacare": {
		"pharmacare", "universal drug coverage", "prescription drug plan",
	},
	"carbon pricing": {
		"carbon tax", "carbon price", "price on pollution", "carbon pricing",
	},
	"child care": {
		"child care", "childcare", "early learning", "daycare spaces",
	},
	"reconciliation": {
		"truth and reconciliation", "undrip", "residential schools",
		"indigenous rights",
	},
	"gun control": {
		"assault-style firearms", "handgun freeze", "gun buyback", "firearms ban",
	},
	"dental care": {
		"dental care", "dental coverage", "dental benefit",
	},
}

// conceptMatches returns the concepts expressed in both texts, in stable
// iteration-independent order.
func conceptMatches(evidenceText, promiseText string) []string {
	ev := strings.ToLower(evidenceText)
	pr := strings.ToLower(promiseText)

	var out []string
	for concept, phrases := range conceptTable {
		if containsAny(ev, phrases) && containsAny(pr, phrases) {
			out = append(out, concept)
		}
	}
	return out
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
