// Package metrics defines the Prometheus collectors exported by the server and the CLI.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamsave_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Resolution
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_resolutions_total",
			Help: "Total number of watch-page resolutions by outcome",
		},
		[]string{"source", "outcome"},
	)

	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamsave_resolution_duration_seconds",
			Help:    "Time spent extracting formats for one video",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	ResolvedFormats = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamsave_resolved_formats",
			Help:    "Number of formats left after normalization",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)

	// Scanning
	ScansTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsave_scans_total",
			Help: "Total number of page scans",
		},
	)

	CandidatesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_candidates_detected_total",
			Help: "Total number of video candidates detected by platform",
		},
		[]string{"platform"},
	)

	// Dispatch
	DispatchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_dispatch_requests_total",
			Help: "Total number of coordinator requests by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)

	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_downloads_total",
			Help: "Total number of download requests by outcome",
		},
		[]string{"outcome"},
	)

	TrackedTabs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsave_tracked_tabs",
			Help: "Number of tabs with registry state",
		},
	)

	// Cache
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsave_cache_lookups_total",
			Help: "Resolution cache lookups by result",
		},
		[]string{"result"},
	)
)

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordResolution records a resolution outcome. source is "server" or "client".
func RecordResolution(source, outcome string, duration float64, formats int) {
	ResolutionsTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "success" {
		ResolutionDuration.Observe(duration)
		ResolvedFormats.Observe(float64(formats))
	}
}

// RecordScan records one completed page scan and its candidates per platform.
func RecordScan(platforms []string) {
	ScansTotal.Inc()
	for _, p := range platforms {
		CandidatesDetected.WithLabelValues(p).Inc()
	}
}

// RecordDispatch records the outcome of one coordinator request.
func RecordDispatch(verb, outcome string) {
	DispatchRequestsTotal.WithLabelValues(verb, outcome).Inc()
}

// RecordDownload records a download outcome.
func RecordDownload(outcome string) {
	DownloadsTotal.WithLabelValues(outcome).Inc()
}

// SetTrackedTabs publishes the number of tabs with registry state.
func SetTrackedTabs(n int) {
	TrackedTabs.Set(float64(n))
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}
