// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zulu7_http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the dashboard backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// TTL caches
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zulu7_cache_hits_total",
			Help: "Total number of fresh cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zulu7_cache_misses_total",
			Help: "Total number of cache misses, including stale entries",
		},
		[]string{"cache"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zulu7_cache_entries",
			Help: "Number of entries held by a cache, stale ones included",
		},
		[]string{"cache"},
	)

	// Outbound calls
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zulu7_upstream_requests_total",
			Help: "Total number of upstream requests by target and outcome",
		},
		[]string{"target", "outcome"}, // outcome: "success", "error"
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zulu7_upstream_request_duration_seconds",
			Help:    "Duration of upstream requests until response headers",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	// Health checks
	HealthCheckResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zulu7_health_check_results_total",
			Help: "Health check classifications by probe type and status",
		},
		[]string{"type", "status"},
	)

	// Published configs
	PublishedConfigsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zulu7_published_configs_created_total",
			Help: "Total number of published dashboard configs",
		},
	)

	PublishedConfigsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zulu7_published_configs_purged_total",
			Help: "Total number of published configs removed by the cleanup sweep",
		},
	)

	// Streamer
	StreamerWebsocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zulu7_streamer_websocket_sessions",
			Help: "Currently bridged streamer websocket sessions",
		},
	)
)

// ObserveUpstream records the outcome of one upstream call.
func ObserveUpstream(target string, seconds float64, err error) {
	UpstreamDuration.WithLabelValues(target).Observe(seconds)
	if err != nil {
		UpstreamRequests.WithLabelValues(target, "error").Inc()
		return
	}
	UpstreamRequests.WithLabelValues(target, "success").Inc()
}
