// Package metrics collects Prometheus metrics for bundle builds and
// verifications. sgc is a short-lived CLI, so metrics are exported through
// the node_exporter textfile format rather than an HTTP endpoint.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultMu       sync.Mutex
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// Registry holds all sgc metrics.
type Registry struct {
	reg *prometheus.Registry

	bundlesBuilt     *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	artifactsWritten prometheus.Counter
	artifactBytes    prometheus.Counter
	verifications    *prometheus.CounterVec
	verifyFailures   *prometheus.CounterVec
	objectsPublished prometheus.Counter
	bytesPublished   prometheus.Counter
}

// NewRegistry creates a registry with every sgc collector registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		bundlesBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "bundles_built_total",
			Help:      "OTA bundle directories produced, by build mode.",
		}, []string{"mode"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sgc",
			Name:      "build_duration_seconds",
			Help:      "Wall time of ota-bundle invocations, by build mode.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"mode"}),
		artifactsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "artifacts_written_total",
			Help:      "Artifacts written into bundles.",
		}),
		artifactBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "artifact_bytes_total",
			Help:      "Bytes written into bundles as artifacts.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "verifications_total",
			Help:      "Bundle verifications, by input form and result.",
		}, []string{"form", "result"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "verify_failures_total",
			Help:      "Verification failures, by reason.",
		}, []string{"reason"}),
		objectsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "objects_published_total",
			Help:      "Objects uploaded by ota-publish.",
		}),
		bytesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sgc",
			Name:      "published_bytes_total",
			Help:      "Bytes uploaded by ota-publish.",
		}),
	}
	r.reg.MustRegister(
		r.bundlesBuilt,
		r.buildDuration,
		r.artifactsWritten,
		r.artifactBytes,
		r.verifications,
		r.verifyFailures,
		r.objectsPublished,
		r.bytesPublished,
	)
	return r
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordBuild records a finished build invocation.
func (r *Registry) RecordBuild(mode string, bundles int, duration time.Duration) {
	r.bundlesBuilt.WithLabelValues(mode).Add(float64(bundles))
	r.buildDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordArtifact records one artifact written.
func (r *Registry) RecordArtifact(sizeBytes int64) {
	r.artifactsWritten.Inc()
	r.artifactBytes.Add(float64(sizeBytes))
}

// RecordVerify records a verification outcome. reasons lists the failure
// codes reported, one entry per failure.
func (r *Registry) RecordVerify(form string, ok bool, reasons []string) {
	result := "pass"
	if !ok {
		result = "fail"
	}
	r.verifications.WithLabelValues(form, result).Inc()
	for _, reason := range reasons {
		r.verifyFailures.WithLabelValues(reason).Inc()
	}
}

// RecordPublish records one uploaded object.
func (r *Registry) RecordPublish(sizeBytes int64) {
	r.objectsPublished.Inc()
	r.bytesPublished.Add(float64(sizeBytes))
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
