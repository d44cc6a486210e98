package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching module.
type Metrics struct {
	// Link decisions by tier
	Decisions *prometheus.CounterVec

	// Validator calls by outcome: confirmed, declined, error
	ValidatorCalls *prometheus.CounterVec

	// Committed link operations by result: ok, failed
	LinkCommits *prometheus.CounterVec

	// Composite score distribution by source type
	Scores *prometheus.HistogramVec

	// End-to-end commit latency per evidence record
	CommitLatency prometheus.Histogram
}

// New creates a new Metrics instance with all matching module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_link_decisions_total",
			Help: "Total link decisions by tier",
		}, []string{"tier"}),

		ValidatorCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_validator_calls_total",
			Help: "Total relevance validator calls by outcome",
		}, []string{"outcome"}),

		LinkCommits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pledgewatch_link_commits_total",
			Help: "Total link store operations by result",
		}, []string{"result"}),

		Scores: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pledgewatch_similarity_scores",
			Help:    "Distribution of composite similarity scores by source type",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"source"}),

		CommitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pledgewatch_commit_duration_seconds",
			Help:    "Duration of scoring and committing one evidence record",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// IncrementDecision records one link decision.
func (m *Metrics) IncrementDecision(tier string) {
	if m != nil {
		m.Decisions.WithLabelValues(tier).Inc()
	}
}

// IncrementValidatorCall records a validator outcome.
func (m *Metrics) IncrementValidatorCall(outcome string) {
	if m != nil {
		m.ValidatorCalls.WithLabelValues(outcome).Inc()
	}
}

// IncrementLinkCommit records a link store operation result.
func (m *Metrics) IncrementLinkCommit(result string) {
	if m != nil {
		m.LinkCommits.WithLabelValues(result).Inc()
	}
}

// ObserveScore records a composite similarity score.
func (m *Metrics) ObserveScore(source string, score float64) {
	if m != nil {
		m.Scores.WithLabelValues(source).Observe(score)
	}
}

// ObserveCommit records the duration of one commit pass.
func (m *Metrics) ObserveCommit(start time.Time) {
	if m != nil {
		m.CommitLatency.Observe(time.Since(start).Seconds())
	}
}
