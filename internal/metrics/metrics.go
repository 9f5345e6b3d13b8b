// Package metrics exposes Prometheus collectors for the extraction engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal               *prometheus.CounterVec
	scrapeFallbacksTotal       *prometheus.CounterVec
	queueDepth                 prometheus.Gauge
	queueInFlight              prometheus.Gauge
	queueTaskDurationSeconds   *prometheus.HistogramVec
	queueTimeoutsTotal         prometheus.Counter
	browserLaunchesTotal       prometheus.Counter
	browserRecyclesTotal       prometheus.Counter
	proxyRejectionsTotal       *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_scrapes_total",
				Help: "Total extractions, labeled by path (fast, advanced, reader) and status.",
			},
			[]string{"path", "status"},
		)

		scrapeFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_scrape_fallbacks_total",
				Help: "Fast-path misses that fell back to the browser, labeled by reason.",
			},
			[]string{"reason"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "extractor_queue_pending",
				Help: "Extraction tasks waiting for queue admission.",
			},
		)

		queueInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "extractor_queue_in_flight",
				Help: "Extraction tasks currently holding a queue slot.",
			},
		)

		queueTaskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extractor_queue_task_duration_seconds",
				Help:    "Histogram of queued task runtimes, labeled by task name.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 45},
			},
			[]string{"task"},
		)

		queueTimeoutsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extractor_queue_timeouts_total",
				Help: "Tasks whose submitters gave up before completion.",
			},
		)

		browserLaunchesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extractor_browser_launches_total",
				Help: "Headless browser launches, including recycles and crash recoveries.",
			},
		)

		browserRecyclesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "extractor_browser_recycles_total",
				Help: "Browser restarts triggered by the recycle request ceiling.",
			},
		)

		proxyRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extractor_proxy_rejections_total",
				Help: "Image proxy requests rejected before fetch, labeled by code.",
			},
			[]string{"code"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 45},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveScrape records one extraction outcome.
func ObserveScrape(path, status string) {
	if scrapesTotal == nil {
		return
	}
	scrapesTotal.WithLabelValues(path, status).Inc()
}

// ObserveFallback records a fast-path miss and the criterion that failed.
func ObserveFallback(reason string) {
	if scrapeFallbacksTotal == nil {
		return
	}
	scrapeFallbacksTotal.WithLabelValues(reason).Inc()
}

// SetQueueDepth publishes the number of waiting tasks.
func SetQueueDepth(n int64) {
	if queueDepth == nil {
		return
	}
	queueDepth.Set(float64(n))
}

// SetQueueInFlight publishes the number of running tasks.
func SetQueueInFlight(n int64) {
	if queueInFlight == nil {
		return
	}
	queueInFlight.Set(float64(n))
}

// ObserveTask records a completed queue task's runtime.
func ObserveTask(task string, d time.Duration) {
	if queueTaskDurationSeconds == nil {
		return
	}
	queueTaskDurationSeconds.WithLabelValues(task).Observe(d.Seconds())
}

// ObserveQueueTimeout counts a submitter abandoning its task.
func ObserveQueueTimeout() {
	if queueTimeoutsTotal == nil {
		return
	}
	queueTimeoutsTotal.Inc()
}

// ObserveBrowserLaunch counts a browser process launch.
func ObserveBrowserLaunch() {
	if browserLaunchesTotal == nil {
		return
	}
	browserLaunchesTotal.Inc()
}

// ObserveBrowserRecycle counts a recycle-ceiling restart.
func ObserveBrowserRecycle() {
	if browserRecyclesTotal == nil {
		return
	}
	browserRecyclesTotal.Inc()
}

// ObserveProxyRejection counts a rejected proxy request by error code.
func ObserveProxyRejection(code string) {
	if proxyRejectionsTotal == nil {
		return
	}
	proxyRejectionsTotal.WithLabelValues(code).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
