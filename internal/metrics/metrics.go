// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal         *prometheus.CounterVec
	crawlOutcomesTotal         *prometheus.CounterVec
	articlesIngestedTotal      *prometheus.CounterVec
	crawlDurationSeconds       *prometheus.HistogramVec
	activeCrawlers             prometheus.Gauge
	politenessDelaySeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_fetch_attempts_total",
				Help: "Page fetch attempts, labeled by host and result (ok, retry, failed).",
			},
			[]string{"host", "result"},
		)

		crawlOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_crawl_outcomes_total",
				Help: "Per-source crawl outcomes, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		articlesIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_articles_ingested_total",
				Help: "Articles written to the store, labeled by source and kind (inserted, updated, skipped).",
			},
			[]string{"source", "kind"},
		)

		crawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_crawl_duration_seconds",
				Help:    "Wall time of one source crawl including ingestion.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"source"},
		)

		activeCrawlers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_crawlers",
				Help: "Number of sources currently being crawled.",
			},
		)

		politenessDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_politeness_delay_seconds",
				Help:    "Time spent waiting before a fetch, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 10},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of ops HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of ops HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from rawURL, or "unknown".
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one navigation attempt against rawURL's host.
func ObserveFetchAttempt(rawURL, result string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(SanitizeHost(rawURL), result).Inc()
}

// ObserveCrawlOutcome records the final status and duration of one source crawl.
func ObserveCrawlOutcome(sourceID, status string, duration time.Duration) {
	Init()
	crawlOutcomesTotal.WithLabelValues(sourceID, status).Inc()
	crawlDurationSeconds.WithLabelValues(sourceID).Observe(duration.Seconds())
}

// ObserveIngest adds inserted, updated, and skipped counts for sourceID.
func ObserveIngest(sourceID string, inserted, updated, skipped int) {
	Init()
	if inserted > 0 {
		articlesIngestedTotal.WithLabelValues(sourceID, "inserted").Add(float64(inserted))
	}
	if updated > 0 {
		articlesIngestedTotal.WithLabelValues(sourceID, "updated").Add(float64(updated))
	}
	if skipped > 0 {
		articlesIngestedTotal.WithLabelValues(sourceID, "skipped").Add(float64(skipped))
	}
}

// IncActiveCrawlers increments the active crawlers gauge.
func IncActiveCrawlers() {
	Init()
	activeCrawlers.Inc()
}

// DecActiveCrawlers decrements the active crawlers gauge.
func DecActiveCrawlers() {
	Init()
	activeCrawlers.Dec()
}

// ObservePolitenessDelay records time spent waiting before a fetch.
func ObservePolitenessDelay(host string, duration time.Duration) {
	Init()
	politenessDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the ops HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
