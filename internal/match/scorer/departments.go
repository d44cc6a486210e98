package scorer

import (
	"strings"

	pstrings "pledgewatch/pkg/platform/strings"
)

// departmentCanon maps canonical department tags to the variant names seen
// in registry payloads, news bylines, and promise records. Standardization
// happens before scoring, never during.
var departmentCanon = map[string][]string{
	"health": {
		"health canada", "department of health", "minister of health",
		"public health agency of canada", "phac",
	},
	"housing": {
		"housing, infrastructure and communities canada",
		"department of housing", "minister of housing",
		"canada mortgage and housing corporation", "cmhc", "infrastructure canada",
	},
	"finance": {
		"department of finance", "finance canada", "minister of finance",
		"treasury board", "treasury board secretariat",
	},
	"environment": {
		"environment and climate change canada", "eccc",
		"minister of environment", "department of the environment",
	},
	"immigration": {
		"immigration, refugees and citizenship canada", "ircc",
		"minister of immigration", "citizenship and immigration",
	},
	"defence": {
		"national defence", "department of national defence", "dnd",
		"minister of defence", "canadian armed forces",
	},
	"justice": {
		"department of justice", "justice canada", "minister of justice",
		"attorney general",
	},
	"transport": {
		"transport canada", "minister of transport", "department of transport",
	},
	"employment": {
		"employment and social development canada", "esdc",
		"minister of labour", "minister of employment",
	},
	"indigenous services": {
		"indigenous services canada", "crown-indigenous relations",
		"minister of indigenous services",
	},
	"public safety": {
		"public safety canada", "minister of public safety",
		"royal canadian mounted police", "rcmp", "canada border services agency", "cbsa",
	},
	"natural resources": {
		"natural resources canada", "nrcan", "minister of natural resources",
		"minister of energy",
	},
	"innovation": {
		"innovation, science and economic development canada", "ised",
		"minister of industry",
	},
	"agriculture": {
		"agriculture and agri-food canada", "minister of agriculture",
	},
	"veterans affairs": {
		"veterans affairs canada", "minister of veterans affairs",
	},
	"global affairs": {
		"global affairs canada", "minister of foreign affairs",
		"department of foreign affairs",
	},
}

// StandardizeDepartments resolves free-form department names to canonical
// tags. Matching is exact first (case-insensitive), then substring in either
// direction. Unresolvable names are dropped, not guessed.
func StandardizeDepartments(names []string) []string {
	var out []string
	for _, name := range pstrings.DedupeAndTrimLower(names) {
		if tag, ok := resolveDepartment(name); ok {
			out = append(out, tag)
		}
	}
	return pstrings.DedupeAndTrim(out)
}

func resolveDepartment(name string) (string, bool) {
	// A name that is already a canonical tag passes through.
	if _, ok := departmentCanon[name]; ok {
		return name, true
	}
	for tag, variants := range departmentCanon {
		for _, v := range variants {
			if name == v {
				return tag, true
			}
		}
	}
	// Substring pass catches prefixed or suffixed variants, e.g.
	// "the minister of health" or "health canada (ottawa)".
	for tag, variants := range departmentCanon {
		for _, v := range variants {
			if strings.Contains(name, v) || strings.Contains(v, name) {
				return tag, true
			}
		}
	}
	return "", false
}
