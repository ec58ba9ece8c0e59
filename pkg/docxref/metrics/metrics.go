// Package metrics exposes Prometheus instrumentation for correlation runs.
// Metrics are registered on a caller-supplied registerer so that several
// engines (and tests) never collide on the global registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "docxref"

// Metrics holds the collectors updated by the engine.
type Metrics struct {
	documents       prometheus.Counter
	extractedValues *prometheus.CounterVec
	crossReferences *prometheus.CounterVec
	masterJoins     prometheus.Counter
	analyses        *prometheus.CounterVec
	duration        prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is useful for throwaway engines.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents passed through entity extraction.",
		}),
		extractedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_values_total",
			Help:      "Distinct extracted values by pattern type.",
		}, []string{"pattern_type"}),
		crossReferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cross_references_total",
			Help:      "Cross references emitted by pattern type.",
		}, []string{"pattern_type"}),
		masterJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "master_joins_total",
			Help:      "Joins found between master tables.",
		}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of one analysis.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.documents, m.extractedValues, m.crossReferences, m.masterJoins, m.analyses, m.duration)
	}
	return m
}

// Outcomes for ObserveAnalysis.
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeCancelled = "cancelled"
)

// ObserveDocument records one extracted document and its values by type.
func (m *Metrics) ObserveDocument(valuesByType map[string]int) {
	if m == nil {
		return
	}
	m.documents.Inc()
	for typ, n := range valuesByType {
		m.extractedValues.WithLabelValues(typ).Add(float64(n))
	}
}

// ObserveCrossReference counts one emitted cross reference.
func (m *Metrics) ObserveCrossReference(patternType string) {
	if m == nil {
		return
	}
	m.crossReferences.WithLabelValues(patternType).Inc()
}

// ObserveJoins counts master joins.
func (m *Metrics) ObserveJoins(n int) {
	if m == nil {
		return
	}
	m.masterJoins.Add(float64(n))
}

// ObserveAnalysis records the outcome and duration of one run.
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}
