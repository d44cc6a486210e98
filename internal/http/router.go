// Package httpapi assembles the service's HTTP surface: the pipeline trigger
// endpoints behind ops auth, plus open health and metrics endpoints for
// probes and scrapers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pledgewatch/internal/ingest/handler"
	"pledgewatch/internal/platform/middleware"
	"pledgewatch/internal/platform/token"
	"pledgewatch/pkg/platform/httputil"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Pipeline     *handler.Handler
	OpsTokenHash string
	Tokens       *token.Service
	Logger       *slog.Logger
	Checks       map[string]HealthChecker
}

// NewRouter wires the public endpoints. Trigger endpoints require ops
// credentials; /healthz and /metrics stay open.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", healthHandler(deps.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOpsAuth(deps.OpsTokenHash, deps.Tokens, deps.Logger))
		deps.Pipeline.Register(r)
	})

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
