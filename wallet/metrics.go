/*
metrics.go - Prometheus collectors for the engine

PURPOSE:
  Counts what operators page on: transitions by resulting status,
  settlements, reservation failures, recurring outcomes and run duration.
  Metrics are optional - services nil-check their collector so tests and
  embedded usage pay nothing.
*/
package wallet

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects engine-level Prometheus metrics.
type Metrics struct {
	transitions         *prometheus.CounterVec
	settlements         prometheus.Counter
	reservationFailures prometheus.Counter
	recurringExecutions *prometheus.CounterVec
	recurringRunSeconds prometheus.Histogram
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_transitions_total",
				Help:      "Transaction status transitions by resulting status",
			},
			[]string{"to"},
		),
		settlements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Completed two-account settlements",
			},
		),
		reservationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_failures_total",
				Help:      "Reservations rejected for insufficient funds",
			},
		),
		recurringExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recurring_executions_total",
				Help:      "Recurring template execution attempts by outcome",
			},
			[]string{"outcome"},
		),
		recurringRunSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "recurring_run_seconds",
				Help:      "Duration of a full recurring execution run",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(
		m.transitions,
		m.settlements,
		m.reservationFailures,
		m.recurringExecutions,
		m.recurringRunSeconds,
	)
	return m
}

func (m *Metrics) transition(to Status) {
	if m != nil {
		m.transitions.WithLabelValues(string(to)).Inc()
	}
}

func (m *Metrics) settlement() {
	if m != nil {
		m.settlements.Inc()
	}
}

func (m *Metrics) reservationFailure() {
	if m != nil {
		m.reservationFailures.Inc()
	}
}

func (m *Metrics) recurringExecution(outcome Outcome) {
	if m != nil {
		m.recurringExecutions.WithLabelValues(string(outcome)).Inc()
	}
}

func (m *Metrics) recurringRun(seconds float64) {
	if m != nil {
		m.recurringRunSeconds.Observe(seconds)
	}
}
