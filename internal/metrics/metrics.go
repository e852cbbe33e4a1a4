// Package metrics exposes Prometheus collectors for the import pipeline.
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
	importDocumentsTotal     *prometheus.CounterVec
	importMatchesTotal       prometheus.Counter
	importPlayersTotal       prometheus.Counter
	importDurationSeconds    *prometheus.HistogramVec
	importActiveWorkers      prometheus.Gauge
	fetchRetriesTotal        prometheus.Counter
	extractionTierTotal      *prometheus.CounterVec
	syncRunsTotal            *prometheus.CounterVec
	syncCandidatesDiscovered prometheus.Counter
	rateLimitWaitSeconds     prometheus.Histogram
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		importDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrimport_documents_total",
				Help: "Total documents processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		importMatchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rrimport_matches_total",
				Help: "Total match rows written.",
			},
		)

		importPlayersTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rrimport_player_stats_total",
				Help: "Total per-tournament player stat rows written.",
			},
		)

		importDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rrimport_document_duration_seconds",
				Help:    "Histogram of per-document pipeline latency, labeled by kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"kind"},
		)

		importActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rrimport_active_workers",
				Help: "Number of workers currently importing a document.",
			},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rrimport_fetch_retries_total",
				Help: "Total fetch attempts beyond the first.",
			},
		)

		extractionTierTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrimport_extraction_tier_total",
				Help: "Documents extracted per tier, labeled by tier name.",
			},
			[]string{"tier"},
		)

		syncRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrimport_sync_runs_total",
				Help: "Total sync runs, labeled by result.",
			},
			[]string{"result"},
		)

		syncCandidatesDiscovered = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rrimport_candidates_discovered_total",
				Help: "Total candidate documents discovered on the results page.",
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rrimport_rate_limit_wait_seconds",
				Help:    "Histogram of time spent waiting on the source rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rrimport_http_requests_total",
				Help: "Total ops-server HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rrimport_http_request_duration_seconds",
				Help:    "Histogram of ops-server request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDocument records one processed document and its written row counts.
// Like the other observers it is a no-op before Init runs, so library
// packages may call it unconditionally.
func ObserveDocument(outcome, kind string, matches, players int, duration time.Duration) {
	if importDocumentsTotal == nil {
		return
	}
	importDocumentsTotal.WithLabelValues(outcome).Inc()
	importDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if matches > 0 {
		importMatchesTotal.Add(float64(matches))
	}
	if players > 0 {
		importPlayersTotal.Add(float64(players))
	}
}

// ObserveSyncRun records a completed sync run.
func ObserveSyncRun(result string) {
	if syncRunsTotal == nil {
		return
	}
	syncRunsTotal.WithLabelValues(result).Inc()
}

// ObserveCandidates records the discovered candidate count for a run.
func ObserveCandidates(n int) {
	if syncCandidatesDiscovered == nil {
		return
	}
	if n > 0 {
		syncCandidatesDiscovered.Add(float64(n))
	}
}

// ObserveFetchRetry counts one retried fetch attempt.
func ObserveFetchRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveExtractionTier counts which tier finally produced groups.
func ObserveExtractionTier(tier string) {
	if extractionTierTotal == nil {
		return
	}
	extractionTierTotal.WithLabelValues(tier).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if importActiveWorkers == nil {
		return
	}
	importActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if importActiveWorkers == nil {
		return
	}
	importActiveWorkers.Dec()
}

// ObserveRateLimitWait records time a worker spent blocked on source pacing.
func ObserveRateLimitWait(d time.Duration) {
	if rateLimitWaitSeconds == nil {
		return
	}
	rateLimitWaitSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one ops-server request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
