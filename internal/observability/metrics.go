package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	registry *prometheus.Registry

	// Routing fetch outcomes per route. Watch for: failed/success ratio drift.
	RouteFetchesTotal *prometheus.CounterVec

	// Individual routing attempts by result label. Watch for: retries per route creeping up.
	RouteFetchAttemptsTotal *prometheus.CounterVec

	// HTTP 429 responses from the routing upstream. Watch for: key quota pressure.
	RateLimitHitsTotal prometheus.Counter

	// Weather fetch outcomes (success, failed, cached, skipped).
	WeatherFetchesTotal *prometheus.CounterVec

	// Records appended to the dataset, by sink.
	RecordsAppendedTotal *prometheus.CounterVec

	// Wall-clock duration of a full collection cycle. Backoffs dominate the tail.
	CycleDurationSeconds prometheus.Histogram
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	RouteFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeFetchesTotal",
			Help: "Total route fetches by final outcome",
		},
		[]string{"outcome"},
	)
	RouteFetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeFetchAttemptsTotal",
			Help: "Total routing API attempts by result",
		},
		[]string{"result"},
	)
	RateLimitHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitHitsTotal",
			Help: "Total HTTP 429 responses from the routing API",
		},
	)
	WeatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherFetchesTotal",
			Help: "Total weather snapshot fetches by result",
		},
		[]string{"result"},
	)
	RecordsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordsAppendedTotal",
			Help: "Total records appended to the dataset",
		},
		[]string{"sink"},
	)
	CycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cycleDurationSeconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	registry.MustRegister(
		RouteFetchesTotal,
		RouteFetchAttemptsTotal,
		RateLimitHitsTotal,
		WeatherFetchesTotal,
		RecordsAppendedTotal,
		CycleDurationSeconds,
	)
}

// Handler exposes the collector registry for scraping while a cycle runs.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// PushMetrics pushes the registry to a Prometheus Pushgateway. A cycle is
// usually gone before a scraper comes around, so the gateway is the normal
// delivery path for batch runs.
func PushMetrics(gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(registry).Push()
}
