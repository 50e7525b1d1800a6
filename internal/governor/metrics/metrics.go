package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the governance pipeline.
type Metrics struct {
	// Governed request outcomes: denied, succeeded, failed.
	Outcomes *prometheus.CounterVec

	// End-to-end latency from request received to response returned.
	ExecuteLatency prometheus.Histogram

	// Audit append failures after the retry cycle; these fail requests.
	AppendFailures prometheus.Counter
}

// New creates and registers the governor metrics.
func New() *Metrics {
	return &Metrics{
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_governed_actions_total",
			Help: "Governed action outcomes by result and action type",
		}, []string{"outcome", "action_type"}),

		ExecuteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_execute_duration_seconds",
			Help:    "Duration of governed execution including permission check and audit append",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30},
		}),

		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "warden_audit_append_failures_total",
			Help: "Audit ledger append failures that failed the governed request",
		}),
	}
}

// IncrementOutcome records one governed action outcome.
func (m *Metrics) IncrementOutcome(outcome, actionType string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome, actionType).Inc()
	}
}

// ObserveExecuteLatency records the full pipeline duration.
func (m *Metrics) ObserveExecuteLatency(d time.Duration) {
	if m != nil {
		m.ExecuteLatency.Observe(d.Seconds())
	}
}

// IncrementAppendFailure records a fatal ledger write failure.
func (m *Metrics) IncrementAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}
