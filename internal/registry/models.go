package registry

import (
	"time"

	"pledgewatch/internal/domain"
)

// BillSummary is one row of the registry's current-bills listing. The
// activity timestamp stays raw here; the change detector owns the policy for
// unparseable values.
type BillSummary struct {
	Parliament     int    `json:"parliament"`
	Session        int    `json:"session"`
	Code           string `json:"code"`
	LatestActivity string `json:"latest_activity"`
}

func (s BillSummary) Key() domain.BillKey {
	return domain.BillKey{Parliament: s.Parliament, Session: s.Session, Code: s.Code}
}

// BillDetail is the structured per-bill payload.
type BillDetail struct {
	ShortTitle   string   `json:"short_title"`
	LongTitle    string   `json:"long_title"`
	Summary      string   `json:"summary"`
	SponsorTitle string   `json:"sponsor_title"`
	Departments  []string `json:"departments"`

	LatestCompletedMajorStage *WireStage `json:"latest_completed_major_stage"`
	LatestCompletedBillStage  *WireStage `json:"latest_completed_bill_stage"`
}

// WireStage is a completed stage as the registry reports it.
type WireStage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Chamber string `json:"chamber"`
	Date    string `json:"date"`
}

// timeLayouts are the timestamp shapes the registry has been observed to
// emit. Order matters: the most common first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses a registry timestamp. Callers decide what a failure
// means; the change detector treats it as "needs processing".
func ParseTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// toCompletedStage converts a wire stage, tolerating a bad date by zeroing
// it: a stage with no usable date still materializes, dated by observation.
func (w *WireStage) toCompletedStage() domain.CompletedStage {
	stage := domain.CompletedStage{
		ID:      domain.StageID(w.ID),
		Name:    w.Name,
		Chamber: w.Chamber,
	}
	if t, err := ParseTime(w.Date); err == nil {
		stage.Date = t
	}
	return stage
}
