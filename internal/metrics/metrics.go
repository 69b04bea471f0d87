// Package metrics exposes Prometheus collectors for the sync service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncRunsTotal          *prometheus.CounterVec
	syncRowsFetchedTotal   prometheus.Counter
	syncRowsUpsertedTotal  *prometheus.CounterVec
	syncRunDurationSeconds prometheus.Histogram
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_runs_total",
				Help: "Total number of sync runs, labeled by outcome.",
			},
			[]string{"status"},
		)

		syncRowsFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gscsync_rows_fetched_total",
				Help: "Total number of analytics rows fetched from the GSC API.",
			},
		)

		syncRowsUpsertedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gscsync_rows_upserted_total",
				Help: "Total number of rows written, labeled by insert/update outcome.",
			},
			[]string{"outcome"},
		)

		syncRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gscsync_run_duration_seconds",
				Help:    "Histogram of end-to-end sync run latencies.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSyncRun records one completed run and its duration.
func ObserveSyncRun(status string, duration time.Duration) {
	if syncRunsTotal == nil {
		return
	}
	syncRunsTotal.WithLabelValues(status).Inc()
	syncRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveRowsFetched adds to the fetched-row counter.
func ObserveRowsFetched(n int) {
	if syncRowsFetchedTotal == nil || n <= 0 {
		return
	}
	syncRowsFetchedTotal.Add(float64(n))
}

// ObserveRowsUpserted records insert/update counts for one load.
func ObserveRowsUpserted(inserted, updated int) {
	if syncRowsUpsertedTotal == nil {
		return
	}
	if inserted > 0 {
		syncRowsUpsertedTotal.WithLabelValues("inserted").Add(float64(inserted))
	}
	if updated > 0 {
		syncRowsUpsertedTotal.WithLabelValues("updated").Add(float64(updated))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
