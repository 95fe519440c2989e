package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	cacheLookupsTotal     *prometheus.CounterVec
	cacheEntries          *prometheus.GaugeVec
	cacheEvictions        *prometheus.GaugeVec
	strategyDuration      *prometheus.HistogramVec
	strategyFailuresTotal *prometheus.CounterVec
	fusionCandidates      *prometheus.HistogramVec
	fusionDegradedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "cache_lookups_total",
			Help:      "Retrieval cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	cacheEntries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "cache_entries",
			Help:      "Current number of cached retrieval results.",
		},
		[]string{"service"},
	)
	cacheEvictions := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "cache_evictions",
			Help:      "Cumulative retrieval cache evictions, sampled from cache stats.",
		},
		[]string{"service"},
	)
	strategyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "strategy_duration_seconds",
			Help:      "Per-strategy execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	strategyFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "strategy_failures_total",
			Help:      "Total failed strategy executions.",
		},
		[]string{"service", "strategy"},
	)
	fusionCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "fusion_candidates",
			Help:      "Distribution of fused candidates per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	fusionDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "fusion_degraded_total",
			Help:      "Total retrievals where every strategy failed.",
		},
		[]string{"service"},
	)
	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		cacheLookupsTotal,
		cacheEntries,
		cacheEvictions,
		strategyDuration,
		strategyFailuresTotal,
		fusionCandidates,
		fusionDegradedTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		cacheLookupsTotal:     cacheLookupsTotal,
		cacheEntries:          cacheEntries,
		cacheEvictions:        cacheEvictions,
		strategyDuration:      strategyDuration,
		strategyFailuresTotal: strategyFailuresTotal,
		fusionCandidates:      fusionCandidates,
		fusionDegradedTotal:   fusionDegradedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RetrievalObserver adapts the metrics registry to the retrieval
// orchestrator's observer hook.
type RetrievalObserver struct {
	service string
	metrics *HTTPServerMetrics
}

func (m *HTTPServerMetrics) RetrievalObserver(service string) *RetrievalObserver {
	return &RetrievalObserver{service: service, metrics: m}
}

func (o *RetrievalObserver) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	o.metrics.cacheLookupsTotal.WithLabelValues(o.service, outcome).Inc()
}

func (o *RetrievalObserver) StrategyCompleted(strategy string, duration time.Duration, err error) {
	o.metrics.strategyDuration.WithLabelValues(o.service, strategy).Observe(duration.Seconds())
	if err != nil {
		o.metrics.strategyFailuresTotal.WithLabelValues(o.service, strategy).Inc()
	}
}

func (o *RetrievalObserver) FusionCompleted(candidates int, degraded bool) {
	o.metrics.fusionCandidates.WithLabelValues(o.service).Observe(float64(candidates))
	if degraded {
		o.metrics.fusionDegradedTotal.WithLabelValues(o.service).Inc()
	}
}

// RecordCacheStats publishes a sampled snapshot of the result cache.
// Size is a live gauge; evictions is the cache's cumulative counter.
func (m *HTTPServerMetrics) RecordCacheStats(service string, size int, evictions uint64) {
	m.cacheEntries.WithLabelValues(service).Set(float64(size))
	m.cacheEvictions.WithLabelValues(service).Set(float64(evictions))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
