// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency by method and route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OSMTilesTotal counts processed import tiles by outcome (ok, failed).
	OSMTilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osm_tiles_total",
			Help: "Total number of OSM import tiles processed",
		},
		[]string{"outcome"},
	)

	// TrailsImportedTotal counts upserted trails by source.
	TrailsImportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osm_trails_imported_total",
			Help: "Total number of trails upserted by imports",
		},
		[]string{"source"},
	)

	// OverpassRequestDuration tracks Overpass API latency by outcome.
	OverpassRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overpass_request_duration_seconds",
			Help:    "Duration of Overpass API requests in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	// RecommendationDuration tracks end-to-end recommendation latency.
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// TileCacheLookups counts vector tile cache lookups by layer and result
	// (hit, miss, expired).
	TileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_lookups_total",
			Help: "Total number of vector tile cache lookups",
		},
		[]string{"layer", "result"},
	)

	// TileCacheEvictions counts tiles dropped from the cache by reason
	// (capacity, invalidated).
	TileCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_cache_evictions_total",
			Help: "Total number of vector tiles evicted from the cache",
		},
		[]string{"reason"},
	)

	// CircuitBreakerState reports breaker state per service (0 closed, 1 open, 2 half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// RecordHTTPRequest records one served API request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordTile records one processed import tile.
func RecordTile(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	OSMTilesTotal.WithLabelValues(outcome).Inc()
}

// RecordTrailsImported adds n upserted trails for source.
func RecordTrailsImported(source string, n int) {
	if n <= 0 {
		return
	}
	TrailsImportedTotal.WithLabelValues(source).Add(float64(n))
}

// RecordOverpassRequest records one Overpass HTTP round trip.
func RecordOverpassRequest(err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	OverpassRequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRecommendation records one recommendation request.
func ObserveRecommendation(d time.Duration) {
	RecommendationDuration.Observe(d.Seconds())
}

// RecordTileLookup records one tile cache lookup.
func RecordTileLookup(layer, result string) {
	TileCacheLookups.WithLabelValues(layer, result).Inc()
}

// RecordTileEvictions adds n evicted tiles for reason.
func RecordTileEvictions(reason string, n int) {
	if n <= 0 {
		return
	}
	TileCacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// SetCircuitState publishes a breaker state.
func SetCircuitState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
