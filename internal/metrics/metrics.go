// Package metrics exposes conversion and storage counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace         = "docgraph"
	SubsystemConvert  = "convert"
	SubsystemStore    = "store"
	SubsystemPipeline = "pipeline"
	SubsystemHTTP     = "http"
)

// Metrics holds the collectors registered on a private registry. All
// methods are safe on a nil receiver so callers without metrics can pass nil.
type Metrics struct {
	registry *prometheus.Registry

	conversions *prometheus.CounterVec
	blocks      *prometheus.CounterVec
	ambiguities *prometheus.CounterVec
	malformed   *prometheus.CounterVec
	duration    *prometheus.HistogramVec

	storeWrites *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	jobs        *prometheus.CounterVec

	apiTime *prometheus.HistogramVec

	// Latency keeps a rolling window of conversion times for /api/stats.
	Latency *Window
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Latency:  NewWindow(time.Hour),
	}
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.conversions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemConvert,
		Name:      "documents_total",
		Help:      "Documents converted, by source format and outcome.",
	}, []string{"format", "outcome"})
	m.registry.MustRegister(m.conversions)

	m.blocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemConvert,
		Name:      "blocks_total",
		Help:      "Blocks walked by the outline builder, by kind.",
	}, []string{"kind"})
	m.registry.MustRegister(m.blocks)

	m.ambiguities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemConvert,
		Name:      "ambiguities_total",
		Help:      "Structural ambiguities resolved by best-effort placement.",
	}, []string{"kind"})
	m.registry.MustRegister(m.ambiguities)

	m.malformed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemConvert,
		Name:      "malformed_blocks_total",
		Help:      "Blocks skipped or emitted without payload.",
	}, []string{"kind"})
	m.registry.MustRegister(m.malformed)

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemConvert,
		Name:      "duration_seconds",
		Help:      "Time to parse and structure one document.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"format"})
	m.registry.MustRegister(m.duration)

	m.storeWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemStore,
		Name:      "writes_total",
		Help:      "Sink writes, by sink and outcome.",
	}, []string{"sink", "outcome"})
	m.registry.MustRegister(m.storeWrites)

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: SubsystemPipeline,
		Name:      "queue_depth",
		Help:      "Jobs waiting for a worker.",
	})
	m.registry.MustRegister(m.queueDepth)

	m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: SubsystemPipeline,
		Name:      "jobs_total",
		Help:      "Finished ingest jobs, by final status.",
	}, []string{"status"})
	m.registry.MustRegister(m.jobs)

	m.apiTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: SubsystemHTTP,
		Name:      "time_seconds",
		Help:      "Time to execute the api handler.",
	}, []string{"method", "status_code"})
	m.registry.MustRegister(m.apiTime)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveConversion records a successful conversion.
func (m *Metrics) ObserveConversion(format string, res *doctree.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, "ok").Inc()
	m.duration.WithLabelValues(format).Observe(elapsed.Seconds())
	m.Latency.Record(elapsed.Milliseconds())
	for kind, n := range res.Counts() {
		m.blocks.WithLabelValues(kind).Add(float64(n))
	}
	for _, a := range res.Ambiguities {
		m.ambiguities.WithLabelValues(a.Kind).Inc()
	}
	for _, el := range res.Elements {
		if el.Block.Kind == doctree.KindImage && len(el.Block.Image) == 0 {
			m.malformed.WithLabelValues(el.Block.Kind.String()).Inc()
		}
	}
}

// ConversionFailed records a conversion aborted before a result existed.
func (m *Metrics) ConversionFailed(format string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, "error").Inc()
}

// StoreWrite records one sink write attempt.
func (m *Metrics) StoreWrite(sink string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.storeWrites.WithLabelValues(sink, outcome).Inc()
}

// SetQueueDepth reports the current job queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// JobFinished counts a job that reached a terminal status.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
}

// ObserveAPI records the duration of an HTTP request.
func (m *Metrics) ObserveAPI(method, statusCode string, elapsed float64) {
	if m == nil {
		return
	}
	m.apiTime.WithLabelValues(method, statusCode).Observe(elapsed)
}
