// Package metrics provides Prometheus metrics for the extraction pipeline and
// the HTTP server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"patentlint/internal/analysis"
	"patentlint/internal/extract"
	"patentlint/internal/ocr"
)

// Metrics holds all Prometheus metrics. Each instance has its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Extraction metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	// OCR metrics
	OCRPagesTotal   *prometheus.CounterVec
	OCRPageDuration *prometheus.HistogramVec

	// Analysis metrics
	PromptsTotal   *prometheus.CounterVec
	PromptDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers all metrics on a new registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.ExtractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentlint_extractions_total",
			Help: "Total number of completed extractions by path taken",
		},
		[]string{"path"},
	)

	m.ExtractionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentlint_extraction_duration_seconds",
			Help:    "Duration of extractions in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"path"},
	)

	m.OCRPagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentlint_ocr_pages_total",
			Help: "Total number of OCRed pages by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	m.OCRPageDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentlint_ocr_page_duration_seconds",
			Help:    "Duration of single page OCR in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 15, 25, 40, 60},
		},
		[]string{"engine"},
	)

	m.PromptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentlint_prompts_total",
			Help: "Total number of dispatched analysis prompts by status",
		},
		[]string{"prompt", "status"},
	)

	m.PromptDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentlint_prompt_duration_seconds",
			Help:    "Duration of analysis prompts in seconds, retries included",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"prompt"},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patentlint_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "patentlint_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	m.HTTPRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "patentlint_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ExtractionFinished implements extract.Observer.
func (m *Metrics) ExtractionFinished(path extract.Path, duration time.Duration) {
	m.ExtractionsTotal.WithLabelValues(string(path)).Inc()
	m.ExtractionDuration.WithLabelValues(string(path)).Observe(duration.Seconds())
}

// OCRPageFinished implements extract.Observer.
func (m *Metrics) OCRPageFinished(engine string, failure *ocr.Failure, duration time.Duration) {
	outcome := "ok"
	if failure != nil {
		outcome = string(failure.Kind)
	}
	m.OCRPagesTotal.WithLabelValues(engine, outcome).Inc()
	m.OCRPageDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// RecordPrompt implements analysis.Observer.
func (m *Metrics) RecordPrompt(name string, failed bool, duration time.Duration) {
	status := "success"
	if failed {
		status = "error"
	}
	m.PromptsTotal.WithLabelValues(name, status).Inc()
	m.PromptDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(route string, code string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

var (
	_ extract.Observer  = (*Metrics)(nil)
	_ analysis.Observer = (*Metrics)(nil)
)
