// Package metrics exposes Prometheus counters for roster engine events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives engine events. A nil *Metrics is a valid no-op recorder.
type Recorder interface {
	Assignment(kind string)
	Directive(t string)
	StatusChange()
	Reconciled(repaired int)
}

// Metrics holds the engine counters
type Metrics struct {
	assignments   *prometheus.CounterVec
	directives    *prometheus.CounterVec
	statusChanges prometheus.Counter
	reconcileRuns prometheus.Counter
	repairs       prometheus.Counter
}

// New creates the counters and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "assignment_events_total",
			Help:      "Position changes written by the assignment engine, by kind.",
		}, []string{"kind"}),
		directives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "directives_issued_total",
			Help:      "Directives issued, by type.",
		}, []string{"type"}),
		statusChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "status_changes_total",
			Help:      "Readiness status changes recorded.",
		}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs.",
		}),
		repairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster",
			Name:      "reconcile_repairs_total",
			Help:      "Persons whose assignment fields were rewritten from their slot.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.assignments, m.directives, m.statusChanges, m.reconcileRuns, m.repairs)
	}
	return m
}

func (m *Metrics) Assignment(kind string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(kind).Inc()
}

func (m *Metrics) Directive(t string) {
	if m == nil {
		return
	}
	m.directives.WithLabelValues(t).Inc()
}

func (m *Metrics) StatusChange() {
	if m == nil {
		return
	}
	m.statusChanges.Inc()
}

func (m *Metrics) Reconciled(repaired int) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	m.repairs.Add(float64(repaired))
}
