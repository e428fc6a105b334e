package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// the default registry panics on duplicate registration
	once sync.Once

	// HTTPRequestsTotal counts finished requests. route is the matched
	// pattern (/urls/:id), never the raw path, to keep cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// CacheOperationsTotal: cache is "listing", "detail" or "code"; result is
	// "hit", "miss", "negative_hit", "bloom_reject" or "invalidate".
	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache lookups and invalidations by cache and result.",
		},
		[]string{"cache", "result"},
	)

	URLRedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "url_redirects_total",
			Help: "Short code redirects served.",
		},
	)

	RealtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Currently connected event stream subscribers.",
		},
	)

	// RealtimeEventsTotal: outcome is "delivered" or "dropped" per subscriber.
	RealtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Realtime events fanned out to subscribers.",
		},
		[]string{"type", "outcome"},
	)

	// RefreshRotationsTotal: result is "rotated", "not_found", "expired" or "orphaned".
	RefreshRotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_rotations_total",
			Help: "Refresh token rotation attempts by result.",
		},
		[]string{"result"},
	)

	RefreshTokensSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refresh_tokens_swept_total",
			Help: "Expired refresh tokens removed by the sweeper.",
		},
	)

	ClickEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "click_events_dropped_total",
			Help: "Click events dropped because the queue was full or the sink failed.",
		},
	)
)

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			CacheOperationsTotal,
			URLRedirectsTotal,
			RealtimeSubscribers,
			RealtimeEventsTotal,
			RefreshRotationsTotal,
			RefreshTokensSweptTotal,
			ClickEventsDroppedTotal,
		)
	})
}
