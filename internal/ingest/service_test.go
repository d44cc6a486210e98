package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/match/committer"
	"pledgewatch/internal/match/scorer"
	"pledgewatch/internal/platform/config"
	"pledgewatch/internal/registry"
	"pledgewatch/internal/store"
	"pledgewatch/pkg/platform/sentinel"
)

type fakeRegistry struct {
	bills      []registry.BillSummary
	snapshots  map[string]*domain.BillSnapshot
	listErr    error
	fetchErr   map[string]error
	fetchCalls int
}

func (f *fakeRegistry) ListBills(context.Context, string) ([]registry.BillSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.bills, nil
}

func (f *fakeRegistry) FetchSnapshot(_ context.Context, summary registry.BillSummary) (*domain.BillSnapshot, error) {
	f.fetchCalls++
	key := summary.Key().String()
	if err := f.fetchErr[key]; err != nil {
		return nil, err
	}
	snap, ok := f.snapshots[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return snap, nil
}

type fakeFeeds struct {
	items map[string][]map[string]any
	errs  map[string]error
}

func (f *fakeFeeds) Fetch(_ context.Context, url string) ([]map[string]any, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.items[url], nil
}

func testThresholds(domain.SourceType) (config.Thresholds, error) {
	return config.Thresholds{Bypass: 0.5, LLM: 0.3, RejectFloor: 0.1}, nil
}

func housingPromise() domain.Promise {
	return domain.Promise{
		ID:          "promise-1",
		Text:        "Build affordable housing across the country",
		Keywords:    []string{"housing", "affordable", "construction", "funding"},
		Departments: []string{"housing"},
	}
}

func housingBill() (registry.BillSummary, *domain.BillSnapshot) {
	summary := registry.BillSummary{
		Parliament:     44,
		Session:        1,
		Code:           "C-5",
		LatestActivity: "2026-03-01T12:00:00Z",
	}
	snap := &domain.BillSnapshot{
		Key:         summary.Key(),
		ShortTitle:  "Affordable Housing Act",
		Summary:     "This enactment funds affordable housing construction.",
		Departments: []string{"Housing, Infrastructure and Communities Canada"},
		LatestMajorStage: domain.CompletedStage{
			ID:      domain.StageSecondReading,
			Name:    "Second reading",
			Chamber: "House",
			Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	return summary, snap
}

func newTestService(t *testing.T, reg *fakeRegistry, mem *store.Memory, opts ...Option) *Service {
	t.Helper()
	lc := committer.New(mem, scorer.New(), testThresholds)
	return New(reg, mem, lc, opts...)
}

func TestRunProcessesNewBill(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
	}
	svc := newTestService(t, reg, mem)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Skipped)
	assert.Zero(t, result.Errors)
	assert.NotEmpty(t, result.RunID)

	ev, err := mem.GetEvidence(ctx, "evidence:bill:44-1/C-5:second-reading")
	require.NoError(t, err)
	assert.True(t, ev.HasPromise("promise-1"))

	p, err := mem.GetPromise(ctx, "promise-1")
	require.NoError(t, err)
	assert.True(t, p.HasEvidence(ev.ID))

	state, err := mem.GetBillState(ctx, summary.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.BillStatusProcessed, state.Status)
	assert.Equal(t, "2026-03-01T12:00:00Z", state.LastActivityRaw)
}

// Re-running against an unchanged snapshot must produce zero additional
// writes.
func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
	}
	svc := newTestService(t, reg, mem)

	first, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	require.Equal(t, 1, first.Updated)

	second, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 1, reg.fetchCalls, "unchanged bill must not be refetched")
}

// Force reprocessing refetches but the deterministic identifier and the
// stage check keep the store unchanged.
func TestRunForceDoesNotDuplicateStages(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
	}
	svc := newTestService(t, reg, mem)

	_, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)

	forced, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, forced.Processed)
	assert.Zero(t, forced.Updated)

	stages, err := mem.StageIDs(ctx, summary.Key().String())
	require.NoError(t, err)
	assert.Len(t, stages, 1)
}

func TestRunAdvancingBillAddsStage(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
	}
	svc := newTestService(t, reg, mem)

	_, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)

	// The bill advances to royal assent on a later poll.
	summary.LatestActivity = "2026-04-01T12:00:00Z"
	snap.LatestMajorStage = domain.CompletedStage{
		ID:   domain.StageRoyalAssent,
		Name: "Royal assent",
		Date: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	reg.bills = []registry.BillSummary{summary}

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	ev, err := mem.GetEvidence(ctx, "evidence:bill:44-1/C-5:royal-assent")
	require.NoError(t, err)
	assert.True(t, ev.Terminal)

	stages, err := mem.StageIDs(ctx, summary.Key().String())
	require.NoError(t, err)
	assert.Len(t, stages, 2)
}

func TestRunFetchFailureIsolatesItem(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	broken := registry.BillSummary{Parliament: 44, Session: 1, Code: "C-2", LatestActivity: "2026-03-01T00:00:00Z"}
	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{broken, summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
		fetchErr:  map[string]error{broken.Key().String(): sentinel.ErrUnavailable},
	}
	svc := newTestService(t, reg, mem)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 1, result.Updated, "healthy bill still processed")

	state, err := mem.GetBillState(ctx, broken.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.BillStatusFailed, state.Status)
	assert.Equal(t, 1, state.FailureCount)
}

// A failed bill keeps its old activity timestamp so the next run retries it.
func TestRunFailedBillIsRetried(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	key := summary.Key().String()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{key: snap},
		fetchErr:  map[string]error{key: sentinel.ErrUnavailable},
	}
	svc := newTestService(t, reg, mem)

	_, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)

	reg.fetchErr = nil
	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	summary, snap := housingBill()
	reg := &fakeRegistry{
		bills:     []registry.BillSummary{summary},
		snapshots: map[string]*domain.BillSnapshot{summary.Key().String(): snap},
	}
	svc := newTestService(t, reg, mem)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.True(t, result.DryRun)

	_, err = mem.GetEvidence(ctx, "evidence:bill:44-1/C-5:second-reading")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = mem.GetBillState(ctx, summary.Key())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// A later live run still does the work.
	live, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, live.Updated)
}

func TestRunHonorsLimit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	var bills []registry.BillSummary
	snapshots := make(map[string]*domain.BillSnapshot)
	for _, code := range []string{"C-1", "C-2", "C-3"} {
		s := registry.BillSummary{Parliament: 44, Session: 1, Code: code, LatestActivity: "2026-03-01T00:00:00Z"}
		bills = append(bills, s)
		snapshots[s.Key().String()] = &domain.BillSnapshot{
			Key:              s.Key(),
			ShortTitle:       "Bill " + code,
			LatestMajorStage: domain.CompletedStage{ID: domain.StageFirstReading, Name: "First reading"},
		}
	}
	reg := &fakeRegistry{bills: bills, snapshots: snapshots}
	svc := newTestService(t, reg, mem)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceBillStage, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
}

func TestRunFeedsIngestsAndDedupes(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.PutPromise(ctx, housingPromise()))

	feedURL := "https://news.example/feed"
	feeds := &fakeFeeds{items: map[string][]map[string]any{
		feedURL: {
			{
				"title":       "Minister announces affordable housing accord",
				"description": "A new housing construction funding accord.",
				"link":        "https://news.example/housing-accord",
				"published":   "2026-03-01T09:00:00Z",
				"categories":  []string{"housing"},
			},
			{
				"title":     "malformed item",
				"published": "not a date",
			},
		},
	}}
	reg := &fakeRegistry{}
	svc := newTestService(t, reg, mem,
		WithFeeds(feeds, map[domain.SourceType][]string{domain.SourceNews: {feedURL}}),
	)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceNews})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Errors, "malformed item skipped, not fatal")

	evs, err := mem.ListEvidenceBySource(ctx, domain.SourceNews, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].HasPromise("promise-1"))

	// Refetching the same feed creates nothing new.
	second, err := svc.Run(ctx, RunRequest{Source: domain.SourceNews})
	require.NoError(t, err)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestRunFeedFetchFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	feedURL := "https://news.example/feed"
	feeds := &fakeFeeds{errs: map[string]error{feedURL: errors.New("connection refused")}}
	svc := newTestService(t, &fakeRegistry{}, mem,
		WithFeeds(feeds, map[domain.SourceType][]string{domain.SourceNews: {feedURL}}),
	)

	result, err := svc.Run(ctx, RunRequest{Source: domain.SourceNews})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
}

func TestRunListFailure(t *testing.T) {
	mem := store.NewMemory()
	reg := &fakeRegistry{listErr: sentinel.ErrUnavailable}
	svc := newTestService(t, reg, mem)

	result, err := svc.Run(context.Background(), RunRequest{Source: domain.SourceBillStage})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
}
