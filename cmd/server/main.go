package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"pledgewatch/internal/audit"
	httpapi "pledgewatch/internal/http"
	"pledgewatch/internal/ingest"
	"pledgewatch/internal/ingest/handler"
	ingestmetrics "pledgewatch/internal/ingest/metrics"
	"pledgewatch/internal/match/committer"
	matchmetrics "pledgewatch/internal/match/metrics"
	"pledgewatch/internal/match/scorer"
	"pledgewatch/internal/match/validator"
	"pledgewatch/internal/platform/config"
	"pledgewatch/internal/platform/httpserver"
	"pledgewatch/internal/platform/logger"
	platformredis "pledgewatch/internal/platform/redis"
	"pledgewatch/internal/platform/token"
	"pledgewatch/internal/registry"
	"pledgewatch/internal/store"
	"pledgewatch/internal/store/postgres"
	"pledgewatch/internal/store/redisstate"
)

// billStateTTL bounds how long per-bill bookkeeping lives in Redis. State is
// rebuildable from the registry, so expiry only costs one redundant re-poll.
const billStateTTL = 90 * 24 * time.Hour

// main wires the pipeline dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// Evidence, promises, and links live in Postgres; the in-memory store
	// backs local runs without one.
	var (
		st store.Store
		pg *postgres.Store
	)
	if cfg.Postgres.DSN != "" {
		var err error
		pg, err = postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st = pg
	} else {
		log.Warn("no postgres DSN configured, using in-memory store")
		st = store.NewMemory()
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, db, err := buildAuditPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if db != nil {
		defer db.Close()
	}

	matchM := matchmetrics.New()
	committerOpts := []committer.Option{
		committer.WithAuditPublisher(publisher),
		committer.WithMetrics(matchM),
		committer.WithBatchSize(cfg.Pipeline.BatchSize),
		committer.WithLogger(log),
	}
	if cfg.Validator.APIKey != "" {
		committerOpts = append(committerOpts, committer.WithValidator(validator.New(
			cfg.Validator.BaseURL,
			cfg.Validator.APIKey,
			validator.WithModel(cfg.Validator.Model),
			validator.WithRateLimit(cfg.Validator.CallsPerSecond, 1),
			validator.WithHTTPClient(&http.Client{Timeout: cfg.Validator.Timeout}),
			validator.WithLogger(log),
		)))
	} else {
		log.Warn("no validator API key configured, mid-confidence pairs will be rejected")
	}
	cmtr := committer.New(st, scorer.New(), cfg.ThresholdsFor, committerOpts...)

	reg := registry.New(cfg.Registry, registry.WithLogger(log))

	ingestOpts := []ingest.Option{
		ingest.WithFeeds(ingest.NewFeedFetcher(cfg.Registry.UserAgent), cfg.Pipeline.FeedURLs),
		ingest.WithMetrics(ingestmetrics.New()),
		ingest.WithAuditPublisher(publisher),
		ingest.WithLogger(log),
		ingest.WithDefaultLimit(cfg.Pipeline.DefaultLimit),
	}
	if cfg.Registry.CallsPerSecond > 0 {
		ingestOpts = append(ingestOpts, ingest.WithPause(time.Duration(float64(time.Second)/cfg.Registry.CallsPerSecond)))
	}
	if redisClient != nil {
		ingestOpts = append(ingestOpts, ingest.WithBillStateStore(redisstate.New(redisClient, billStateTTL)))
	}
	svc := ingest.New(reg, st, cmtr, ingestOpts...)

	var tokens *token.Service
	if cfg.Server.JWTSigningKey != "" {
		tokens = token.NewService(cfg.Server.JWTSigningKey, "pledgewatch")
	}

	checks := map[string]httpapi.HealthChecker{}
	if pg != nil {
		checks["postgres"] = pg
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Pipeline:     handler.New(svc, cmtr, log),
		OpsTokenHash: cfg.Server.OpsTokenHash,
		Tokens:       tokens,
		Logger:       log,
		Checks:       checks,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting pledgewatch", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildAuditPublisher assembles the decision audit trail. Kafka carries the
// live stream when brokers are configured; the Postgres outbox keeps a
// durable copy for relay when a database is available.
func buildAuditPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger) (*audit.Publisher, *sql.DB, error) {
	var sinks []audit.Sink
	var db *sql.DB

	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, audit.WithKafkaLogger(log))
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, kafka)
	}

	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		outbox := audit.NewOutboxSink(db)
		if err := outbox.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		sinks = append(sinks, outbox)
	}

	if len(sinks) == 0 {
		log.Warn("no audit sinks configured, link decisions will not be recorded")
	}

	publisher := audit.NewPublisher(sinks, audit.WithLogger(log), audit.WithAsyncBuffer(1024))
	return publisher, db, nil
}
