// Package metrics records CLI activity as Prometheus metrics and exports
// them in the node_exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation results.
const (
	ResultMatch    = "match"
	ResultMismatch = "mismatch"
	ResultError    = "error"
)

// Metrics holds the collectors, registered on a private registry so
// repeated construction in tests never collides.
type Metrics struct {
	registry *prometheus.Registry

	packages     *prometheus.CounterVec
	packageBytes prometheus.Histogram
	validations  *prometheus.CounterVec
	erasedFiles  prometheus.Counter
	erasedBytes  prometheus.Counter
	errors       *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		packages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "machinebind_packages_total",
			Help: "Total number of packages processed",
		}, []string{"op"}), // op: pack, unpack, inspect
		packageBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "machinebind_package_bytes",
			Help:    "Size of processed packages in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "machinebind_validations_total",
			Help: "Total number of host binding validations",
		}, []string{"result"}),
		erasedFiles: factory.NewCounter(prometheus.CounterOpts{
			Name: "machinebind_erased_files_total",
			Help: "Total number of files securely erased",
		}),
		erasedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "machinebind_erased_bytes_total",
			Help: "Total number of file bytes securely erased, counted once per file",
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "machinebind_errors_total",
			Help: "Total number of failed operations",
		}, []string{"op"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPackage records a processed package of size bytes.
func (m *Metrics) RecordPackage(op string, size int) {
	m.packages.WithLabelValues(op).Inc()
	m.packageBytes.Observe(float64(size))
}

// RecordValidation records the outcome of a binding check.
func (m *Metrics) RecordValidation(match bool, err error) {
	switch {
	case err != nil:
		m.validations.WithLabelValues(ResultError).Inc()
	case match:
		m.validations.WithLabelValues(ResultMatch).Inc()
	default:
		m.validations.WithLabelValues(ResultMismatch).Inc()
	}
}

// RecordErasedFile records one erased file of size bytes.
func (m *Metrics) RecordErasedFile(size int64) {
	m.erasedFiles.Inc()
	m.erasedBytes.Add(float64(size))
}

// RecordError records a failed operation.
func (m *Metrics) RecordError(op string) {
	m.errors.WithLabelValues(op).Inc()
}

// WriteTextfile writes all metrics to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
