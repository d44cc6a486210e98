package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ingest pipeline.
type Metrics struct {
	// Items examined per run outcome: processed, updated, skipped, error
	Items *prometheus.CounterVec

	// Evidence records materialized by source type
	EvidenceCreated *prometheus.CounterVec

	// Registry fetch outcomes: ok, not_found, error
	RegistryFetches *prometheus.CounterVec

	// Full pipeline run duration by source type
	RunDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all ingest pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		Items: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_ingest_items_total",
			Help: "Total source items examined by outcome",
		}, []string{"source", "outcome"}),

		EvidenceCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_evidence_created_total",
			Help: "Total evidence records materialized by source type",
		}, []string{"source"}),

		RegistryFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_registry_fetches_total",
			Help: "Total bill registry fetches by outcome",
		}, []string{"outcome"}),

		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledgewatch_run_duration_seconds",
			Help:    "Duration of full pipeline runs by source type",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"source"}),
	}
}

// IncrementItem records one examined source item.
func (m *Metrics) IncrementItem(source, outcome string) {
	if m != nil {
		m.Items.WithLabelValues(source, outcome).Inc()
	}
}

// IncrementEvidence records one materialized evidence record.
func (m *Metrics) IncrementEvidence(source string) {
	if m != nil {
		m.EvidenceCreated.WithLabelValues(source).Inc()
	}
}

// IncrementRegistryFetch records one registry fetch outcome.
func (m *Metrics) IncrementRegistryFetch(outcome string) {
	if m != nil {
		m.RegistryFetches.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun records the duration of one pipeline run.
func (m *Metrics) ObserveRun(source string, start time.Time) {
	if m != nil {
		m.RunDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}
}
