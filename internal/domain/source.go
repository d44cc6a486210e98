package domain

import (
	"fmt"
)

// SourceType tags where an evidence record came from. Normalization and
// threshold policy both dispatch on it through per-type tables, so adding a
// source type is a data addition, not a new code path.
type SourceType string

const (
	SourceBillStage  SourceType = "bill_stage"
	SourceNews       SourceType = "news"
	SourceRegulatory SourceType = "regulatory"
)

// KnownSourceTypes lists every type the pipeline can process, in the order
// runs iterate them when no explicit source is requested.
func KnownSourceTypes() []SourceType {
	return []SourceType{SourceBillStage, SourceNews, SourceRegulatory}
}

// ParseSourceType validates a wire-level source type string. Unknown types
// are a configuration error and must surface, never default.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceBillStage, SourceNews, SourceRegulatory:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}
