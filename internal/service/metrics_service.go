package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/attendance-sheet/internal/models"
	"github.com/noah-isme/attendance-sheet/pkg/sheetclient"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	remoteDuration  *prometheus.HistogramVec
	remoteTotal     *prometheus.CounterVec
	bindingDuration *prometheus.HistogramVec
	entries         prometheus.Gauge
	inflight        prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	remoteCount          uint64
	remoteFailures       uint64
	remoteDurationTotal  uint64
}

var _ sheetclient.Observer = (*MetricsService)(nil)

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sheet_remote_call_duration_seconds",
		Help:    "Duration of calls to the spreadsheet endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"action", "outcome"})

	remoteTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_remote_calls_total",
		Help: "Total number of calls to the spreadsheet endpoint",
	}, []string{"action", "outcome"})

	bindingDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "binding_store_duration_seconds",
		Help:    "Duration of binding store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	entries := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_entries",
		Help: "Number of entries held in the local store",
	})

	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_operations_in_flight",
		Help: "Number of attendance operations waiting on the remote endpoint",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, remoteDuration, remoteTotal, bindingDuration, entries, inflight, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		remoteDuration:  remoteDuration,
		remoteTotal:     remoteTotal,
		bindingDuration: bindingDuration,
		entries:         entries,
		inflight:        inflight,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveRemoteCall records one spreadsheet endpoint round trip.
func (m *MetricsService) ObserveRemoteCall(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(action, outcome).Observe(duration.Seconds())
	m.remoteTotal.WithLabelValues(action, outcome).Inc()
	atomic.AddUint64(&m.remoteCount, 1)
	atomic.AddUint64(&m.remoteDurationTotal, uint64(duration.Nanoseconds()))
	if outcome != sheetclient.OutcomeSuccess {
		atomic.AddUint64(&m.remoteFailures, 1)
	}
}

// ObserveBindingOperation records binding store timing.
func (m *MetricsService) ObserveBindingOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.bindingDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetEntryCount publishes the size of the local store.
func (m *MetricsService) SetEntryCount(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// SetInFlight publishes the number of pending operations.
func (m *MetricsService) SetInFlight(n int64) {
	if m == nil {
		return
	}
	m.inflight.Set(float64(n))
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.MetricsSnapshot {
	if m == nil {
		return models.MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	remote := atomic.LoadUint64(&m.remoteCount)
	remoteDuration := atomic.LoadUint64(&m.remoteDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgRemoteMs float64
	if remote > 0 {
		avgRemoteMs = float64(remoteDuration) / float64(remote) / float64(time.Millisecond)
	}

	return models.MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		RemoteCallsTotal:         remote,
		RemoteFailuresTotal:      atomic.LoadUint64(&m.remoteFailures),
		AverageRemoteDurationMs:  avgRemoteMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
