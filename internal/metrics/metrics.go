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
	pagesTotal                 *prometheus.CounterVec
	pageBytesTotal             *prometheus.CounterVec
	itemsTotal                 *prometheus.CounterVec
	downloadsTotal             *prometheus.CounterVec
	downloadBytesTotal         prometheus.Counter
	transcodesTotal            *prometheus.CounterVec
	activeJobs                 prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sermons_pages_total",
				Help: "Total number of pages read, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		pageBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sermons_page_bytes_total",
				Help: "Total number of page bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sermons_items_total",
				Help: "Total number of item pages parsed, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sermons_downloads_total",
				Help: "Total number of download attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sermons_download_bytes_total",
				Help: "Total number of audio bytes transferred.",
			},
		)

		transcodesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sermons_transcodes_total",
				Help: "Total number of transcoder runs, labeled by status.",
			},
			[]string{"status"},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sermons_active_jobs",
				Help: "Number of dispatched jobs currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sermons_rate_limit_delays_seconds",
				Help:    "Histogram of politeness delay waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests to the ops endpoint, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of ops endpoint latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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

// ObservePage counts one listing or item page fetch.
func ObservePage(pageURL string, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(pageURL)
	pagesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		pageBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveItem counts one parsed item.
func ObserveItem(source string, status string) {
	Init()
	itemsTotal.WithLabelValues(source, status).Inc()
}

// ObserveDownload counts one download outcome and the bytes it moved.
func ObserveDownload(outcome string, bytesTransferred int64) {
	Init()
	downloadsTotal.WithLabelValues(outcome).Inc()
	if bytesTransferred > 0 {
		downloadBytesTotal.Add(float64(bytesTransferred))
	}
}

// ObserveTranscode counts one transcoder run.
func ObserveTranscode(status string) {
	Init()
	transcodesTotal.WithLabelValues(status).Inc()
}

// IncActiveJobs increments the active jobs gauge.
func IncActiveJobs() {
	Init()
	activeJobs.Inc()
}

// DecActiveJobs decrements the active jobs gauge.
func DecActiveJobs() {
	Init()
	activeJobs.Dec()
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the ops endpoint request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
