// Package metrics exposes per-run Prometheus counters for population synthesis.
//
// A batch run has no scrape endpoint, so the registry is written to a
// node-exporter textfile at the end of the run instead of being served.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of one generation run. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	evidenceTriples *prometheus.CounterVec
	duplicateRows   *prometheus.CounterVec
	modelCalls      *prometheus.CounterVec
	generatedRows   *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
}

// New creates a registry labelled with the run ID.
func New(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"run_id": runID}

	m := &Metrics{
		registry: reg,
		evidenceTriples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "doppelganger_evidence_triples_total",
			Help:        "Distinct serial numbers extracted from allocated rows",
			ConstLabels: constLabels,
		}, []string{"table"}),
		duplicateRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "doppelganger_duplicate_rows_skipped_total",
			Help:        "Allocated rows skipped because their serial number was already seen",
			ConstLabels: constLabels,
		}, []string{"table"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "doppelganger_model_calls_total",
			Help:        "Generate calls issued to a model",
			ConstLabels: constLabels,
		}, []string{"table"}),
		generatedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "doppelganger_generated_rows_total",
			Help:        "Synthetic rows appended to the output table",
			ConstLabels: constLabels,
		}, []string{"table"}),
		modelDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "doppelganger_model_generate_seconds",
			Help:        "Latency of model Generate calls",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
		}, []string{"table"}),
	}

	reg.MustRegister(m.evidenceTriples, m.duplicateRows, m.modelCalls, m.generatedRows, m.modelDuration)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTriple counts one extracted evidence triple.
func (m *Metrics) ObserveTriple(tableName string) {
	if m == nil {
		return
	}
	m.evidenceTriples.WithLabelValues(tableName).Inc()
}

// ObserveDuplicates counts allocated rows skipped during extraction.
func (m *Metrics) ObserveDuplicates(tableName string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicateRows.WithLabelValues(tableName).Add(float64(n))
}

// ObserveModelCall records one Generate call, its latency and the rows it produced.
func (m *Metrics) ObserveModelCall(tableName string, seconds float64, rows int) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(tableName).Inc()
	m.modelDuration.WithLabelValues(tableName).Observe(seconds)
	m.generatedRows.WithLabelValues(tableName).Add(float64(rows))
}

// WriteTextfile dumps the registry in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
