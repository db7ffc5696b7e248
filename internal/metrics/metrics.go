package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"frizo/margin_engine/internal/audit"
)

const namespace = "margin_engine"

// Metrics Prometheus collectors of the margin engine.
// It is also an audit.Sink: every audit record bumps the events counter.
type Metrics struct {
	Events       *prometheus.CounterVec // audit events by name and reason
	Decisions    *prometheus.CounterVec // http outcomes by status
	AuditDropped *prometheus.CounterVec // audit records lost by the log sink
	Latency      prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_events_total",
				Help:      "Audit events emitted by the margin validator",
			},
			[]string{"event", "reason"},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Margin validation requests by outcome (ok, error, rejected)",
			},
			[]string{"status"},
		),
		AuditDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_dropped_total",
				Help:      "Audit records dropped because the sink queue was full or closed",
			},
			[]string{"event"},
		),
		Latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_latency_seconds",
				Help:      "Latency in seconds to validate a margin request",
				Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
			},
		),
	}

	reg.MustRegister(m.Events, m.Decisions, m.AuditDropped, m.Latency)
	return m
}

// Emit implements audit.Sink.
func (m *Metrics) Emit(event string, fields audit.Fields) {
	reason, _ := fields[audit.FieldReason].(string)
	m.Events.WithLabelValues(event, reason).Inc()
}

// AuditDrop matches audit.WithDropHandler.
func (m *Metrics) AuditDrop(event string) {
	m.AuditDropped.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveValidation(status string, elapsed time.Duration) {
	m.Decisions.WithLabelValues(status).Inc()
	m.Latency.Observe(elapsed.Seconds())
}
