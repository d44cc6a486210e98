// Package committer turns similarity scores into durable links. It owns the
// threshold policy: high scores link automatically, mid scores go to the
// relevance validator, everything else is rejected. Links are written to
// both sides through the store's batch API with a per-operation fallback.
package committer

//go:generate mockgen -source=committer.go -destination=mocks/mocks.go -package=mocks Validator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pledgewatch/internal/audit"
	"pledgewatch/internal/domain"
	"pledgewatch/internal/match/metrics"
	"pledgewatch/internal/match/scorer"
	"pledgewatch/internal/match/validator"
	"pledgewatch/internal/platform/config"
	"pledgewatch/internal/store"
)

// Validator is the escalation boundary for mid-confidence pairs.
type Validator interface {
	Validate(ctx context.Context, req validator.Request) (validator.Verdict, error)
}

// Result summarizes one commit pass over a single evidence record.
type Result struct {
	Decisions []domain.LinkDecision
	Linked    int
	Validated int
	Errors    int
}

type Committer struct {
	linker     store.Linker
	scorer     *scorer.Scorer
	validator  Validator
	thresholds func(domain.SourceType) (config.Thresholds, error)
	publisher  *audit.Publisher
	metrics    *metrics.Metrics
	batchSize  int
	logger     *slog.Logger
}

type Option func(*Committer)

func WithValidator(v Validator) Option {
	return func(c *Committer) { c.validator = v }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(c *Committer) { c.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Committer) { c.metrics = m }
}

func WithBatchSize(n int) Option {
	return func(c *Committer) {
		if n >= 1 {
			c.batchSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Committer) { c.logger = l }
}

func New(linker store.Linker, s *scorer.Scorer, thresholds func(domain.SourceType) (config.Thresholds, error), opts ...Option) *Committer {
	c := &Committer{
		linker:     linker,
		scorer:     s,
		thresholds: thresholds,
		batchSize:  500,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify places a score into its tier. Boundaries are inclusive downward:
// a score exactly at bypass auto-links, a score exactly at llm validates.
func Classify(score float64, th config.Thresholds) domain.Tier {
	switch {
	case score >= th.Bypass:
		return domain.TierAutoLink
	case score >= th.LLM:
		return domain.TierNeedsValidation
	}
	return domain.TierReject
}

// Commit scores one evidence record against the candidate promises and
// applies the resulting links. Already-linked pairs are skipped, keeping the
// operation idempotent. In dry-run mode decisions are made and audited but
// nothing is written.
func (c *Committer) Commit(ctx context.Context, runID string, ev domain.Evidence, promises []domain.Promise, dryRun bool) (Result, error) {
	start := time.Now()
	defer c.metrics.ObserveCommit(start)

	th, err := c.thresholds(ev.Source)
	if err != nil {
		return Result{}, err
	}

	evInput := scorer.EvidenceInput(ev)
	var result Result
	var pending []store.LinkOp

	for _, promise := range promises {
		if ev.HasPromise(promise.ID) {
			continue
		}

		score, breakdown := c.scorer.Score(evInput, scorer.PromiseInput(promise))
		c.metrics.ObserveScore(string(ev.Source), score)
		if score < th.RejectFloor {
			continue
		}

		decision := domain.LinkDecision{
			EvidenceID: ev.ID,
			PromiseID:  promise.ID,
			Score:      score,
			Breakdown:  breakdown,
			Tier:       Classify(score, th),
		}

		if decision.Tier == domain.TierNeedsValidation {
			result.Validated++
			c.escalate(ctx, ev, promise, &decision)
			if decision.ValidatorConfirmed == nil {
				result.Errors++
			}
		}

		c.metrics.IncrementDecision(string(decision.Tier))
		result.Decisions = append(result.Decisions, decision)
		if c.publisher != nil {
			c.publisher.Emit(ctx, audit.FromDecision(runID, ev.Source, decision, dryRun))
		}

		if decision.ShouldLink() {
			pending = append(pending, store.LinkOp{EvidenceID: ev.ID, PromiseID: promise.ID})
		}
	}

	if dryRun {
		return result, nil
	}

	linked, failed := c.flush(ctx, pending)
	result.Linked = linked
	result.Errors += failed
	return result, nil
}

func (c *Committer) escalate(ctx context.Context, ev domain.Evidence, promise domain.Promise, decision *domain.LinkDecision) {
	if c.validator == nil {
		c.metrics.IncrementValidatorCall("error")
		c.logger.Warn("no validator configured, pair left unlinked",
			"evidence_id", ev.ID, "promise_id", promise.ID)
		return
	}

	verdict, err := c.validator.Validate(ctx, validator.Request{
		EvidenceTitle:       ev.Title,
		EvidenceDescription: ev.Description,
		PromiseText:         promise.Text,
		Score:               decision.Score,
	})
	if err != nil {
		// Conservative degradation: an unreachable or off-contract
		// validator means no link, not a guessed one.
		c.metrics.IncrementValidatorCall("error")
		c.logger.Error("validator call failed",
			"evidence_id", ev.ID, "promise_id", promise.ID, "error", err)
		return
	}

	decision.ValidatorConfirmed = &verdict.Relevant
	decision.ValidatorRationale = verdict.Rationale
	if verdict.Relevant {
		c.metrics.IncrementValidatorCall("confirmed")
	} else {
		c.metrics.IncrementValidatorCall("declined")
	}
}

// flush applies pending ops in batches. A failed batch falls back to
// per-operation writes so one bad pair cannot sink its batchmates.
func (c *Committer) flush(ctx context.Context, ops []store.LinkOp) (linked, failed int) {
	for len(ops) > 0 {
		n := len(ops)
		if n > c.batchSize {
			n = c.batchSize
		}
		batch := ops[:n]
		ops = ops[n:]

		if err := c.linker.ApplyLinks(ctx, batch); err == nil {
			linked += len(batch)
			c.metrics.IncrementLinkCommit("ok")
			continue
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			failed += len(batch) + len(ops)
			return linked, failed
		}

		for _, op := range batch {
			if err := c.linker.ApplyLink(ctx, op); err != nil {
				failed++
				c.metrics.IncrementLinkCommit("failed")
				c.logger.Error("link commit failed",
					"evidence_id", op.EvidenceID, "promise_id", op.PromiseID, "error", err)
				continue
			}
			linked++
			c.metrics.IncrementLinkCommit("ok")
		}
	}
	return linked, failed
}

// Unlink removes a link from both sides and audits the removal.
func (c *Committer) Unlink(ctx context.Context, runID, evidenceID, promiseID string) error {
	op := store.LinkOp{EvidenceID: evidenceID, PromiseID: promiseID, Remove: true}
	if err := c.linker.ApplyLink(ctx, op); err != nil {
		c.metrics.IncrementLinkCommit("failed")
		return err
	}
	c.metrics.IncrementLinkCommit("ok")
	if c.publisher != nil {
		event := audit.NewEvent(audit.EventLinkRemoved, runID)
		event.EvidenceID = evidenceID
		event.PromiseID = promiseID
		c.publisher.Emit(ctx, event)
	}
	return nil
}
