package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters.
type Metrics struct {
	// Frame counters
	Ticks          atomic.Uint64
	FramesRead     atomic.Uint64
	FramesSkipped  atomic.Uint64 // no model loaded
	SourcesOpened  atomic.Uint64
	SourcesStopped atomic.Uint64

	// Detection counters
	Detections   atomic.Uint64
	RecordsSaved atomic.Uint64
	CropsSaved   atomic.Uint64
	CropsSkipped atomic.Uint64

	// Error counters
	ReadErrors     atomic.Uint64
	DetectErrors   atomic.Uint64
	WriteErrors    atomic.Uint64
	PresenterDrops atomic.Uint64

	// Latency
	TickLatencyUs atomic.Uint64 // last tick duration in microseconds

	// Running is 1 while a source is open
	Running atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) gauge(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("pipeline_ticks_total", "Total controller ticks", &m.Ticks)
	m.gauge("pipeline_frames_read_total", "Total frames pulled from sources", &m.FramesRead)
	m.gauge("pipeline_frames_skipped_total", "Frames shown raw because no model was loaded", &m.FramesSkipped)
	m.gauge("pipeline_sources_opened_total", "Sources opened", &m.SourcesOpened)
	m.gauge("pipeline_sources_stopped_total", "Sessions stopped or exhausted", &m.SourcesStopped)

	m.gauge("pipeline_detections_total", "Detections above threshold", &m.Detections)
	m.gauge("pipeline_records_saved_total", "Records appended to the detection log", &m.RecordsSaved)
	m.gauge("pipeline_crops_saved_total", "Crops written", &m.CropsSaved)
	m.gauge("pipeline_crops_skipped_total", "Crops skipped for degenerate boxes", &m.CropsSkipped)

	m.gauge("pipeline_read_errors_total", "Source read errors", &m.ReadErrors)
	m.gauge("pipeline_detect_errors_total", "Inference errors", &m.DetectErrors)
	m.gauge("pipeline_write_errors_total", "Log, crop or mirror write errors", &m.WriteErrors)
	m.gauge("pipeline_presenter_drops_total", "Payloads dropped because viewers were busy", &m.PresenterDrops)

	m.gauge("pipeline_tick_latency_us", "Duration of the last tick in microseconds", &m.TickLatencyUs)
	m.gauge("pipeline_running", "1 while a source is open", &m.Running)
}

// ObserveTick records the duration of one tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.Ticks.Add(1)
	m.TickLatencyUs.Store(uint64(d.Microseconds()))
}

// SetRunning flips the running gauge.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.Running.Store(1)
	} else {
		m.Running.Store(0)
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
