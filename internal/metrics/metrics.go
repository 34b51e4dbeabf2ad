// Package metrics exposes Prometheus instrumentation for document processing.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labtext"

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	documents     *prometheus.CounterVec
	duration      prometheus.Histogram
	ocrRequests   *prometheus.CounterVec
	fieldMisses   *prometheus.CounterVec
	testResults   *prometheus.CounterVec
	activeWorkers prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "End-to-end processing time of one document.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ocrRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_requests_total",
			Help:      "Calls to OCR providers, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		fieldMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_misses_total",
			Help:      "Header fields neither extraction nor correction could recover.",
		}, []string{"field"}),
		testResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_results_total",
			Help:      "Test result rows produced, by category.",
		}, []string{"category"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Documents currently being processed.",
		}),
	}

	m.registry.MustRegister(
		m.documents,
		m.duration,
		m.ocrRequests,
		m.fieldMisses,
		m.testResults,
		m.activeWorkers,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDocument records the outcome and duration of one document
func (m *Metrics) ObserveDocument(success bool, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	m.documents.WithLabelValues(status).Inc()
	m.duration.Observe(d.Seconds())
}

// ObserveOCR records one OCR provider call
func (m *Metrics) ObserveOCR(provider, outcome string) {
	if m == nil {
		return
	}
	m.ocrRequests.WithLabelValues(provider, outcome).Inc()
}

// ObserveFieldMisses counts every field the parser could not recover
func (m *Metrics) ObserveFieldMisses(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.fieldMisses.WithLabelValues(f).Inc()
	}
}

// ObserveTestResult counts one produced test row
func (m *Metrics) ObserveTestResult(category string) {
	if m == nil {
		return
	}
	m.testResults.WithLabelValues(category).Inc()
}

// WorkerStarted and WorkerDone track in-flight documents
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

func (m *Metrics) WorkerDone() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}
