package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pledgewatch/internal/audit"
	"pledgewatch/internal/domain"
	"pledgewatch/internal/ingest/metrics"
	"pledgewatch/internal/registry"
	"pledgewatch/internal/store"
	"pledgewatch/pkg/platform/sentinel"
)

// RunRequest is the trigger surface contract. An empty Source runs every
// known source type in order.
type RunRequest struct {
	Source  domain.SourceType
	Session string
	Limit   int
	Force   bool
	DryRun  bool
}

// RunSummary reports what one pipeline run did.
type RunSummary struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

func (s *RunSummary) add(other RunSummary) {
	s.Processed += other.Processed
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Errors += other.Errors
}

// Service orchestrates pipeline runs. Processing is single-writer and
// batch-sequential: items are handled in order with an optional pause
// between external calls, and item failures never abort the run.
type Service struct {
	registry   BillRegistry
	store      store.Store
	billStates store.BillStateStore
	committer  LinkCommitter
	feeds      FeedSource
	feedURLs   map[domain.SourceType][]string
	detector   *ChangeDetector
	metrics    *metrics.Metrics
	publisher  *audit.Publisher
	tracer     trace.Tracer
	logger     *slog.Logger

	defaultLimit int
	pause        time.Duration
}

type Option func(*Service)

func WithFeeds(feeds FeedSource, urls map[domain.SourceType][]string) Option {
	return func(s *Service) {
		s.feeds = feeds
		s.feedURLs = urls
	}
}

// WithBillStateStore overrides where per-bill bookkeeping lives, e.g. the
// Redis tier instead of the document store.
func WithBillStateStore(st store.BillStateStore) Option {
	return func(s *Service) { s.billStates = st }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithDefaultLimit(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.defaultLimit = n
		}
	}
}

// WithPause sets the delay between external calls to respect upstream rate
// limits.
func WithPause(d time.Duration) Option {
	return func(s *Service) { s.pause = d }
}

func New(reg BillRegistry, st store.Store, lc LinkCommitter, opts ...Option) *Service {
	s := &Service{
		registry:     reg,
		store:        st,
		billStates:   st,
		committer:    lc,
		detector:     NewChangeDetector(nil),
		tracer:       otel.Tracer("pledgewatch/ingest"),
		logger:       slog.Default(),
		defaultLimit: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = NewChangeDetector(s.logger)
	return s
}

// Run executes one pipeline run and returns its summary. The returned error
// covers run-level failures only (e.g. the promise catalog is unreadable);
// item-level failures are counted in the summary instead.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	runID := uuid.NewString()
	summary := RunSummary{RunID: runID, DryRun: req.DryRun}

	ctx, span := s.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("source", string(req.Source)),
		attribute.Bool("dry_run", req.DryRun),
	))
	defer span.End()

	promises, err := s.store.ListPromises(ctx)
	if err != nil {
		return summary, fmt.Errorf("load promise catalog: %w", err)
	}

	sources := []domain.SourceType{req.Source}
	if req.Source == "" {
		sources = domain.KnownSourceTypes()
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	for _, source := range sources {
		start := time.Now()
		var part RunSummary
		switch source {
		case domain.SourceBillStage:
			part = s.runBills(ctx, runID, req, limit, promises)
		default:
			part = s.runFeeds(ctx, runID, source, limit, promises, req.DryRun)
		}
		s.metrics.ObserveRun(string(source), start)
		summary.add(part)
	}

	s.logger.Info("pipeline run finished",
		"run_id", runID,
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"dry_run", req.DryRun,
	)
	if s.publisher != nil {
		event := audit.NewEvent(audit.EventRunCompleted, runID)
		event.DryRun = req.DryRun
		event.Detail = fmt.Sprintf("processed=%d updated=%d skipped=%d errors=%d",
			summary.Processed, summary.Updated, summary.Skipped, summary.Errors)
		s.publisher.Emit(ctx, event)
	}
	return summary, nil
}

func (s *Service) runBills(ctx context.Context, runID string, req RunRequest, limit int, promises []domain.Promise) RunSummary {
	ctx, span := s.tracer.Start(ctx, "pipeline.bills")
	defer span.End()

	var summary RunSummary
	summaries, err := s.registry.ListBills(ctx, req.Session)
	if err != nil {
		s.logger.Error("bill listing failed", "run_id", runID, "error", err)
		s.metrics.IncrementRegistryFetch("error")
		summary.Errors++
		return summary
	}
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}

	for _, bill := range summaries {
		outcome := s.processBill(ctx, runID, bill, promises, req.Force, req.DryRun)
		summary.add(outcome)
		s.wait(ctx)
	}
	return summary
}

func (s *Service) processBill(ctx context.Context, runID string, bill registry.BillSummary, promises []domain.Promise, force, dryRun bool) RunSummary {
	var summary RunSummary
	key := bill.Key()
	source := string(domain.SourceBillStage)

	prior, err := s.billStates.GetBillState(ctx, key)
	var priorRef *domain.BillState
	switch {
	case err == nil:
		priorRef = &prior
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		s.logger.Error("bill state read failed", "bill", key.String(), "error", err)
		s.metrics.IncrementItem(source, "error")
		summary.Errors++
		return summary
	}

	if !s.detector.NeedsProcessing(priorRef, bill.LatestActivity, force) {
		s.metrics.IncrementItem(source, "skipped")
		summary.Skipped++
		return summary
	}
	summary.Processed++

	snap, err := s.registry.FetchSnapshot(ctx, bill)
	if err != nil {
		s.logger.Error("snapshot fetch failed", "bill", key.String(), "error", err)
		s.metrics.IncrementRegistryFetch("error")
		s.metrics.IncrementItem(source, "error")
		summary.Errors++
		s.markBill(ctx, priorRef, key, bill.LatestActivity, domain.BillStatusFailed, dryRun)
		return summary
	}
	s.metrics.IncrementRegistryFetch("ok")

	existing, err := s.store.StageIDs(ctx, key.String())
	if err != nil {
		s.logger.Error("stage lookup failed", "bill", key.String(), "error", err)
		s.metrics.IncrementItem(source, "error")
		summary.Errors++
		return summary
	}

	for _, stage := range StagesToMaterialize(snap, existing) {
		ev := NormalizeBillStage(snap, stage)
		if !dryRun {
			if err := s.store.PutEvidence(ctx, ev); err != nil {
				s.logger.Error("evidence write failed", "evidence_id", ev.ID, "error", err)
				s.metrics.IncrementItem(source, "error")
				summary.Errors++
				continue
			}
		}
		s.metrics.IncrementEvidence(source)
		summary.Updated++

		result, err := s.committer.Commit(ctx, runID, ev, promises, dryRun)
		if err != nil {
			s.logger.Error("link commit failed", "evidence_id", ev.ID, "error", err)
			summary.Errors++
			continue
		}
		summary.Errors += result.Errors
	}

	s.markBill(ctx, priorRef, key, bill.LatestActivity, domain.BillStatusProcessed, dryRun)
	s.metrics.IncrementItem(source, "processed")
	return summary
}

// markBill persists per-bill bookkeeping. Dry runs leave state untouched so
// a rehearsal never suppresses real processing later.
func (s *Service) markBill(ctx context.Context, prior *domain.BillState, key domain.BillKey, latestRaw string, status domain.BillStatus, dryRun bool) {
	if dryRun {
		return
	}

	state := domain.BillState{
		Key:             key,
		LastActivityRaw: latestRaw,
		Status:          status,
	}
	if t, err := registry.ParseTime(latestRaw); err == nil {
		state.LastActivity = t
	}
	if prior != nil {
		state.FailureCount = prior.FailureCount
	}
	if status == domain.BillStatusFailed {
		state.FailureCount++
		// A failed fetch keeps the old timestamp so the next run retries.
		if prior != nil {
			state.LastActivity = prior.LastActivity
			state.LastActivityRaw = prior.LastActivityRaw
		} else {
			state.LastActivity = time.Time{}
			state.LastActivityRaw = ""
		}
	}
	if err := s.billStates.PutBillState(ctx, state); err != nil {
		s.logger.Error("bill state write failed", "bill", key.String(), "error", err)
	}
}

func (s *Service) runFeeds(ctx context.Context, runID string, source domain.SourceType, limit int, promises []domain.Promise, dryRun bool) RunSummary {
	ctx, span := s.tracer.Start(ctx, "pipeline.feeds", trace.WithAttributes(
		attribute.String("source", string(source)),
	))
	defer span.End()

	var summary RunSummary
	if s.feeds == nil || len(s.feedURLs[source]) == 0 {
		return summary
	}

	remaining := limit
	for _, url := range s.feedURLs[source] {
		if remaining <= 0 {
			break
		}
		items, err := s.feeds.Fetch(ctx, url)
		if err != nil {
			s.logger.Error("feed fetch failed", "url", url, "error", err)
			summary.Errors++
			continue
		}

		for _, raw := range items {
			if remaining <= 0 {
				break
			}
			remaining--
			outcome := s.processItem(ctx, runID, source, raw, promises, dryRun)
			summary.add(outcome)
		}
		s.wait(ctx)
	}
	return summary
}

func (s *Service) processItem(ctx context.Context, runID string, source domain.SourceType, raw map[string]any, promises []domain.Promise, dryRun bool) RunSummary {
	var summary RunSummary
	src := string(source)

	ev, err := NormalizeItem(source, raw)
	if err != nil {
		s.logger.Warn("malformed feed item skipped", "source", src, "error", err)
		s.metrics.IncrementItem(src, "error")
		summary.Errors++
		return summary
	}

	exists, err := s.store.EvidenceExists(ctx, ev.ID)
	if err != nil {
		s.logger.Error("evidence lookup failed", "evidence_id", ev.ID, "error", err)
		s.metrics.IncrementItem(src, "error")
		summary.Errors++
		return summary
	}
	if exists {
		s.metrics.IncrementItem(src, "skipped")
		summary.Skipped++
		return summary
	}
	summary.Processed++

	if !dryRun {
		if err := s.store.PutEvidence(ctx, ev); err != nil {
			s.logger.Error("evidence write failed", "evidence_id", ev.ID, "error", err)
			s.metrics.IncrementItem(src, "error")
			summary.Errors++
			return summary
		}
	}
	s.metrics.IncrementEvidence(src)
	summary.Updated++

	result, err := s.committer.Commit(ctx, runID, ev, promises, dryRun)
	if err != nil {
		s.logger.Error("link commit failed", "evidence_id", ev.ID, "error", err)
		summary.Errors++
		return summary
	}
	summary.Errors += result.Errors
	s.metrics.IncrementItem(src, "processed")
	return summary
}

func (s *Service) wait(ctx context.Context) {
	if s.pause <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.pause):
	}
}
