package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the daemon's self-observability surface, served at /metrics.
// Everything lives on a private registry so tests can create instances
// freely.
type Metrics struct {
	registry *prometheus.Registry

	Ticks           prometheus.Counter
	CaptureFailures *prometheus.CounterVec
	ParseSkipped    prometheus.Counter
	Appends         *prometheus.CounterVec
	LastSampleTS    prometheus.Gauge
	LastWindowTS    prometheus.Gauge
	LastUniquePeers prometheus.Gauge
	CaptureDuration prometheus.Histogram
}

// New creates and registers the metric set.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dhtspectra_ticks_total",
		Help: "Scheduler ticks executed.",
	})
	m.CaptureFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dhtspectra_capture_failures_total",
		Help: "Capture windows lost, by failure reason.",
	}, []string{"reason"})
	m.ParseSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dhtspectra_capture_lines_skipped_total",
		Help: "Malformed capture-tool output lines skipped by the parser.",
	})
	m.Appends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dhtspectra_store_appends_total",
		Help: "Records appended to the store, by kind.",
	}, []string{"kind"})
	m.LastSampleTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dhtspectra_last_sample_timestamp_seconds",
		Help: "Unix time of the newest stored system sample.",
	})
	m.LastWindowTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dhtspectra_last_window_timestamp_seconds",
		Help: "Unix time of the newest stored traffic window.",
	})
	m.LastUniquePeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dhtspectra_last_window_unique_peers",
		Help: "Unique peers observed in the newest traffic window.",
	})
	m.CaptureDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dhtspectra_capture_duration_seconds",
		Help:    "Wall-clock duration of capture windows, successful or not.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	m.registry.MustRegister(
		m.Ticks, m.CaptureFailures, m.ParseSkipped, m.Appends,
		m.LastSampleTS, m.LastWindowTS, m.LastUniquePeers, m.CaptureDuration,
	)
	return m
}

// ObserveCapture records one finished capture attempt.
func (m *Metrics) ObserveCapture(started time.Time) {
	m.CaptureDuration.Observe(time.Since(started).Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
