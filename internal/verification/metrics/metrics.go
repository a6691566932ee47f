package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for document verification.
type Metrics struct {
	// Per-stage latency, including capability round-trips
	StageDuration *prometheus.HistogramVec

	// Run outcomes by status and the stage a failure stopped at
	Outcomes *prometheus.CounterVec

	// Overall pipeline latency
	PipelineDuration prometheus.Histogram

	// Vision capability errors by operation and normalized category
	CapabilityErrors *prometheus.CounterVec

	// Circuit breaker transitions by new state
	BreakerTransitions *prometheus.CounterVec

	// Digest cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New registers the verification metrics on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_outcomes_total",
			Help: "Pipeline results by status and failing stage",
		}, []string{"status", "stage"}), // stage is "" for successes

		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "docverify_pipeline_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		CapabilityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_capability_errors_total",
			Help: "Vision capability errors by operation and category",
		}, []string{"operation", "category"}),

		BreakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_breaker_transitions_total",
			Help: "Vision circuit breaker state changes",
		}, []string{"state"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_cache_lookups_total",
			Help: "Result cache lookups by image digest",
		}, []string{"result"}), // "hit", "miss", "error"
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(status, stage string) {
	if m != nil {
		m.Outcomes.WithLabelValues(status, stage).Inc()
	}
}

func (m *Metrics) ObservePipeline(d time.Duration) {
	if m != nil {
		m.PipelineDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCapabilityError(operation, category string) {
	if m != nil {
		m.CapabilityErrors.WithLabelValues(operation, category).Inc()
	}
}

func (m *Metrics) IncrementBreakerTransition(state string) {
	if m != nil {
		m.BreakerTransitions.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
