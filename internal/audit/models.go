// Package audit records every link decision so scoring behavior can be
// audited and replayed after threshold or weight changes.
package audit

import (
	"time"

	"github.com/google/uuid"

	"pledgewatch/internal/domain"
)

type EventType string

const (
	EventLinkCreated    EventType = "link_created"
	EventLinkConfirmed  EventType = "link_confirmed"
	EventLinkDeclined   EventType = "link_declined"
	EventLinkRejected   EventType = "link_rejected"
	EventLinkRemoved    EventType = "link_removed"
	EventValidatorError EventType = "validator_error"
	EventRunCompleted   EventType = "run_completed"
)

// Event is one audit record. Events are emitted for every scored pair that
// crosses the reject floor, and once per pipeline run.
type Event struct {
	ID         string                `json:"id"`
	Type       EventType             `json:"type"`
	Timestamp  time.Time             `json:"timestamp"`
	RunID      string                `json:"run_id"`
	Source     string                `json:"source,omitempty"`
	EvidenceID string                `json:"evidence_id,omitempty"`
	PromiseID  string                `json:"promise_id,omitempty"`
	Score      float64               `json:"score,omitempty"`
	Breakdown  domain.ScoreBreakdown `json:"breakdown,omitempty"`
	Tier       domain.Tier           `json:"tier,omitempty"`
	Rationale  string                `json:"rationale,omitempty"`
	DryRun     bool                  `json:"dry_run,omitempty"`
	Detail     string                `json:"detail,omitempty"`
}

// NewEvent stamps identity and time; everything else is the caller's.
func NewEvent(eventType EventType, runID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// FromDecision builds the audit event for one scored pair.
func FromDecision(runID string, source domain.SourceType, d domain.LinkDecision, dryRun bool) Event {
	ev := NewEvent(decisionEventType(d), runID)
	ev.Source = string(source)
	ev.EvidenceID = d.EvidenceID
	ev.PromiseID = d.PromiseID
	ev.Score = d.Score
	ev.Breakdown = d.Breakdown
	ev.Tier = d.Tier
	ev.Rationale = d.ValidatorRationale
	ev.DryRun = dryRun
	return ev
}

func decisionEventType(d domain.LinkDecision) EventType {
	switch d.Tier {
	case domain.TierAutoLink:
		return EventLinkCreated
	case domain.TierNeedsValidation:
		if d.ValidatorConfirmed == nil {
			return EventValidatorError
		}
		if *d.ValidatorConfirmed {
			return EventLinkConfirmed
		}
		return EventLinkDeclined
	}
	return EventLinkRejected
}
