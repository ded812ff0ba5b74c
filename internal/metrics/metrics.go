// Package metrics exposes Prometheus instrumentation for the service.
//
// Each Metrics value owns its own registry so tests can create as many as
// they like without colliding on the global default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/chemequip/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chemequip"

// Metrics implements core.Recorder and HTTP instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	uploadRows     *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	uploadDuration prometheus.Histogram
	pruned         prometheus.Counter
	tokensPurged   prometheus.Counter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ core.Recorder = (*Metrics)(nil)

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "CSV uploads by outcome (ok or an error code).",
		}, []string{"result"}),
		uploadRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_rows_total",
			Help:      "CSV data rows by ingestion outcome.",
		}, []string{"outcome"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Raw CSV bytes ingested by successful uploads.",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time from receiving a CSV to committing it and pruning old uploads.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_pruned_total",
			Help:      "Uploads deleted by the retention window.",
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_purged_total",
			Help:      "Expired API tokens deleted by the purge job.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.uploads,
		m.uploadRows,
		m.uploadBytes,
		m.uploadDuration,
		m.pruned,
		m.tokensPurged,
		m.requests,
		m.requestDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterGateGauges exposes upload gate occupancy, read on each scrape.
func (m *Metrics) RegisterGateGauges(status func() core.UploadGateStatus) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_active",
			Help:      "Uploads currently being processed.",
		}, func() float64 { return float64(status().Active) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_waiting_users",
			Help:      "Users with an upload queued behind one already running.",
		}, func() float64 { return float64(status().WaitingUsers) }),
	)
}

// UploadSucceeded counts a stored upload and its row outcomes.
func (m *Metrics) UploadSucceeded(stats core.IngestStats, elapsed time.Duration) {
	m.uploads.WithLabelValues("ok").Inc()
	m.uploadRows.WithLabelValues("accepted").Add(float64(stats.Accepted))
	m.uploadRows.WithLabelValues("dropped").Add(float64(stats.Dropped))
	m.uploadRows.WithLabelValues("malformed").Add(float64(stats.Malformed))
	m.uploadBytes.Add(float64(stats.Bytes))
	m.uploadDuration.Observe(elapsed.Seconds())
}

// UploadFailed counts a rejected or failed upload by error code.
func (m *Metrics) UploadFailed(code string) {
	m.uploads.WithLabelValues(code).Inc()
}

// UploadsPruned counts uploads removed by retention.
func (m *Metrics) UploadsPruned(n int) {
	m.pruned.Add(float64(n))
}

// TokensPurged counts expired tokens deleted by the purge job.
func (m *Metrics) TokensPurged(n int64) {
	m.tokensPurged.Add(float64(n))
}

// Middleware records request counts and latency. Routes are labelled by
// their chi pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
