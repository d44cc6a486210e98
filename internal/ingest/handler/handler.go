// Package handler exposes the pipeline trigger surface over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/ingest"
	dErrors "pledgewatch/pkg/domain-errors"
	"pledgewatch/pkg/platform/httputil"
	"pledgewatch/pkg/platform/sentinel"
)

// Service runs the ingest pipeline.
type Service interface {
	Run(ctx context.Context, req ingest.RunRequest) (ingest.RunSummary, error)
}

// Unlinker removes an evidence/promise link from both sides.
type Unlinker interface {
	Unlink(ctx context.Context, runID, evidenceID, promiseID string) error
}

// Handler wires pipeline endpoints to the ingest service.
type Handler struct {
	service  Service
	unlinker Unlinker
	logger   *slog.Logger
}

// New constructs a pipeline handler with its dependencies.
func New(service Service, unlinker Unlinker, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		unlinker: unlinker,
		logger:   logger,
	}
}

// Register mounts pipeline endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/pipeline/run", h.HandleRun)
	r.Post("/links/unlink", h.HandleUnlink)
}

// RunRequest is the wire shape of a pipeline trigger.
type RunRequest struct {
	SourceType string `json:"source_type,omitempty"`
	Session    string `json:"session,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Force      bool   `json:"force,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// HandleRun handles POST /pipeline/run requests.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := httputil.Decode[RunRequest](w, r, h.logger)
	if !ok {
		return
	}

	var source domain.SourceType
	if req.SourceType != "" {
		parsed, err := domain.ParseSourceType(req.SourceType)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "unknown source type"))
			return
		}
		source = parsed
	}
	if req.Limit < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must not be negative"))
		return
	}

	summary, err := h.service.Run(ctx, ingest.RunRequest{
		Source:  source,
		Session: req.Session,
		Limit:   req.Limit,
		Force:   req.Force,
		DryRun:  req.DryRun,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "pipeline run failed",
			"source", req.SourceType,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "pipeline run failed"))
		return
	}

	h.logger.InfoContext(ctx, "pipeline run triggered",
		"run_id", summary.RunID,
		"source", req.SourceType,
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"dry_run", req.DryRun,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// UnlinkRequest is the wire shape of a manual link removal.
type UnlinkRequest struct {
	EvidenceID string `json:"evidence_id"`
	PromiseID  string `json:"promise_id"`
}

// HandleUnlink handles POST /links/unlink requests.
func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[UnlinkRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.EvidenceID == "" || req.PromiseID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "evidence_id and promise_id are required"))
		return
	}

	runID := uuid.NewString()
	if err := h.unlinker.Unlink(ctx, runID, req.EvidenceID, req.PromiseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "evidence or promise not found"))
			return
		}
		h.logger.ErrorContext(ctx, "unlink failed",
			"evidence_id", req.EvidenceID,
			"promise_id", req.PromiseID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "unlink failed"))
		return
	}

	h.logger.InfoContext(ctx, "link removed",
		"run_id", runID,
		"evidence_id", req.EvidenceID,
		"promise_id", req.PromiseID,
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "unlinked", "run_id": runID})
}
