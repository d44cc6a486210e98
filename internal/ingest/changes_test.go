package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pledgewatch/internal/domain"
)

func TestChangeDetector(t *testing.T) {
	detector := NewChangeDetector(nil)
	stored := &domain.BillState{
		Key:             domain.BillKey{Parliament: 44, Session: 1, Code: "C-5"},
		LastActivity:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LastActivityRaw: "2026-03-01T12:00:00Z",
		Status:          domain.BillStatusProcessed,
	}

	tests := []struct {
		name   string
		prior  *domain.BillState
		latest string
		force  bool
		want   bool
	}{
		{"no prior record", nil, "2026-03-02T00:00:00Z", false, true},
		{"forced", stored, "2026-03-01T12:00:00Z", true, true},
		{"newer activity", stored, "2026-03-02T00:00:00Z", false, true},
		{"equal timestamps", stored, "2026-03-01T12:00:00Z", false, false},
		{"older activity", stored, "2026-02-01T00:00:00Z", false, false},
		{"unparseable fetched timestamp", stored, "last Tuesday", false, true},
		{"date-only layout", stored, "2026-03-02", false, true},
		{
			"prior without usable timestamp",
			&domain.BillState{Key: stored.Key, LastActivityRaw: "garbage"},
			"2026-03-01T12:00:00Z",
			false,
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detector.NeedsProcessing(tt.prior, tt.latest, tt.force))
		})
	}
}
