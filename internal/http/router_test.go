package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pledgewatch/internal/ingest"
	"pledgewatch/internal/ingest/handler"
	"pledgewatch/internal/platform/token"
	"pledgewatch/pkg/testutil"
)

type stubService struct{}

func (stubService) Run(context.Context, ingest.RunRequest) (ingest.RunSummary, error) {
	return ingest.RunSummary{RunID: "run-1"}, nil
}

type stubUnlinker struct{}

func (stubUnlinker) Unlink(context.Context, string, string, string) error { return nil }

type stubCheck struct{ err error }

func (c stubCheck) Health(context.Context) error { return c.err }

func newTestRouter(t *testing.T, checks map[string]HealthChecker) (http.Handler, string, *token.Service) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("ops-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	tokens := token.NewService("test-signing-key", "pledgewatch")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(Deps{
		Pipeline:     handler.New(stubService{}, stubUnlinker{}, logger),
		OpsTokenHash: string(hash),
		Tokens:       tokens,
		Logger:       logger,
		Checks:       checks,
	})
	return router, "ops-secret", tokens
}

func TestHealthz(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		router, _, _ := newTestRouter(t, map[string]HealthChecker{
			"postgres": stubCheck{},
			"redis":    stubCheck{},
		})

		req := testutil.NewRequest(t, http.MethodGet, "/healthz")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusOK)
		body := *testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "ok", body["postgres"])
	})

	t.Run("degraded dependency", func(t *testing.T) {
		router, _, _ := newTestRouter(t, map[string]HealthChecker{
			"postgres": stubCheck{},
			"redis":    stubCheck{err: errors.New("connection refused")},
		})

		req := testutil.NewRequest(t, http.MethodGet, "/healthz")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		body := *testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "ok", body["postgres"])
	})
}

func TestMetricsEndpointIsOpen(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := testutil.NewRequest(t, http.MethodGet, "/metrics")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestTriggerRequiresCredentials(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/pipeline/run", handler.RunRequest{})
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestTriggerAcceptsOpsToken(t *testing.T) {
	router, opsToken, _ := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/pipeline/run", handler.RunRequest{})
	req.Header.Set("X-Ops-Token", opsToken)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestTriggerRejectsWrongOpsToken(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/pipeline/run", handler.RunRequest{})
	req.Header.Set("X-Ops-Token", "guess")
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestTriggerAcceptsServiceToken(t *testing.T) {
	router, _, tokens := newTestRouter(t, nil)

	jwt, err := tokens.Issue("run-scheduler", time.Minute)
	require.NoError(t, err)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/pipeline/run", handler.RunRequest{})
	req.Header.Set("Authorization", "Bearer "+jwt)
	rr := testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusOK)
}
