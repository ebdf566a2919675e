// Package metrics holds the Prometheus collectors of the command bus and
// the projection. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	CommandsHandled      *prometheus.CounterVec
	ConcurrencyConflicts *prometheus.CounterVec
	EventsProjected      *prometheus.CounterVec
	CatchUpDuration      prometheus.Histogram
	ProjectionLag        prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgraph_commands_handled_total",
				Help: "Commands handled, by command type and outcome",
			},
			[]string{"command", "outcome"},
		),
		ConcurrencyConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgraph_concurrency_conflicts_total",
				Help: "Expected-version conflicts while appending, by command type",
			},
			[]string{"command"},
		),
		EventsProjected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgraph_events_projected_total",
				Help: "Events applied to the content graph projection, by event type",
			},
			[]string{"event"},
		),
		CatchUpDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contentgraph_projection_catchup_duration_seconds",
				Help:    "Duration of projection catch-up runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		ProjectionLag: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "contentgraph_projection_lag_events",
				Help: "Events in the log not yet applied by the projection",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.CommandsHandled, m.ConcurrencyConflicts, m.EventsProjected, m.CatchUpDuration, m.ProjectionLag)
	}
	return m
}

// Outcomes of a handled command.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

func (m *Metrics) CommandHandled(commandType, outcome string) {
	if m == nil {
		return
	}
	m.CommandsHandled.WithLabelValues(commandType, outcome).Inc()
}

func (m *Metrics) ConcurrencyConflict(commandType string) {
	if m == nil {
		return
	}
	m.ConcurrencyConflicts.WithLabelValues(commandType).Inc()
}

func (m *Metrics) EventProjected(eventType string) {
	if m == nil {
		return
	}
	m.EventsProjected.WithLabelValues(eventType).Inc()
}

func (m *Metrics) CatchUp(d time.Duration, lag int64) {
	if m == nil {
		return
	}
	m.CatchUpDuration.Observe(d.Seconds())
	m.ProjectionLag.Set(float64(lag))
}
