package domain

import (
	"fmt"
	"time"
)

// BillKey identifies a bill across polls: parliament number, session number,
// and the bill code within that session (e.g. "C-5").
type BillKey struct {
	Parliament int
	Session    int
	Code       string
}

func (k BillKey) String() string {
	return fmt.Sprintf("%d-%d/%s", k.Parliament, k.Session, k.Code)
}

// StageID identifies a procedural milestone. The vocabulary mirrors the
// registry's completed-stage identifiers.
type StageID string

const (
	StageFirstReading    StageID = "first-reading"
	StageSecondReading   StageID = "second-reading"
	StageCommittee       StageID = "committee"
	StageReportStage     StageID = "report-stage"
	StageThirdReading    StageID = "third-reading"
	StageSenateFirst     StageID = "senate-first-reading"
	StageSenateSecond    StageID = "senate-second-reading"
	StageSenateCommittee StageID = "senate-committee"
	StageSenateThird     StageID = "senate-third-reading"
	StageRoyalAssent     StageID = "royal-assent"
	StageDefeated        StageID = "defeated"
	StageWithdrawn       StageID = "withdrawn"
)

// terminalStages is the fixed set of final-disposition stages. A bill that
// reaches one of these produces its last evidence record.
var terminalStages = map[StageID]struct{}{
	StageRoyalAssent: {},
	StageDefeated:    {},
	StageWithdrawn:   {},
}

// IsTerminal reports whether a stage represents final disposition.
func (s StageID) IsTerminal() bool {
	_, ok := terminalStages[s]
	return ok
}

// CompletedStage is one completed procedural milestone as reported by the
// registry payload.
type CompletedStage struct {
	ID      StageID
	Name    string
	Chamber string
	Date    time.Time
}

// BillSnapshot is one registry fetch result for a bill. Snapshots drive
// stage detection; they are superseded by newer polls, never persisted as
// final output.
type BillSnapshot struct {
	Key            BillKey
	ShortTitle     string
	LongTitle      string
	Summary        string
	SponsorTitle   string
	Departments    []string
	LatestActivity time.Time
	// LatestMajorStage is the most recently completed major stage; the
	// extractor only ever materializes this one per poll.
	LatestMajorStage CompletedStage
	// LatestMinorStage refines the major stage when the registry reports
	// fine-grained progress (e.g. committee referral within second reading).
	LatestMinorStage *CompletedStage
	FullText         string
}

// BillStatus marks where a bill sits in the processing lifecycle so a
// terminated run can resume without losing work.
type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusProcessed BillStatus = "processed"
	BillStatusFailed    BillStatus = "failed"
)

// BillState is the stored per-bill bookkeeping consulted by the change
// detector. LastActivityRaw keeps the registry's original timestamp string
// so unparseable values can be logged verbatim.
type BillState struct {
	Key             BillKey
	LastActivity    time.Time
	LastActivityRaw string
	Status          BillStatus
	FailureCount    int
	UpdatedAt       time.Time
}
