package ingest

import (
	"log/slog"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/registry"
)

// ChangeDetector decides whether a bill needs reprocessing. The read side is
// not transactional; two simultaneous runs may both decide to process the
// same bill, which is safe only because evidence identifiers are
// deterministic.
type ChangeDetector struct {
	logger *slog.Logger
}

func NewChangeDetector(logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{logger: logger}
}

// NeedsProcessing applies the change policy: process when no prior state
// exists, when forced, or when the fetched activity timestamp is strictly
// later than the stored one. Equal timestamps mean no change. An unparseable
// timestamp on either side defaults to processing, trading efficiency for
// correctness.
func (d *ChangeDetector) NeedsProcessing(prior *domain.BillState, latestActivityRaw string, force bool) bool {
	if force || prior == nil {
		return true
	}

	latest, err := registry.ParseTime(latestActivityRaw)
	if err != nil {
		d.logger.Warn("unparseable activity timestamp, reprocessing",
			"bill", prior.Key.String(), "raw", latestActivityRaw, "error", err)
		return true
	}
	if prior.LastActivity.IsZero() {
		d.logger.Warn("no stored activity timestamp, reprocessing",
			"bill", prior.Key.String(), "stored_raw", prior.LastActivityRaw)
		return true
	}
	return latest.After(prior.LastActivity)
}
