package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Price calculator
	PriceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "club_price_cache_hits_total",
			Help: "Total number of memoized price lookups",
		},
	)

	PriceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "club_price_cache_misses_total",
			Help: "Total number of price lookups that had to be computed",
		},
	)

	PriceCacheFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_price_cache_flushes_total",
			Help: "Total number of price cache invalidations by origin",
		},
		[]string{"origin"}, // "local", "remote"
	)

	// Discount reconciler
	DiscountsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_discounts_reconciled_total",
			Help: "Expired discounts processed by the reconciler",
		},
		[]string{"result"}, // "deleted", "failed"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "club_reconcile_duration_seconds",
			Help:    "Duration of reconciler runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Recommendations
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_recommendation_requests_total",
			Help: "Recommendation requests by variant and outcome",
		},
		[]string{"variant", "outcome"}, // variant: "similar", "filtered", "activity"
	)

	// Push announcements
	PushNotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "club_push_notifications_total",
			Help: "Discount push notifications by result",
		},
		[]string{"result"}, // "sent", "gone", "failed"
	)

	// HTTP API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "club_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAPIRequest records one served HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordReconcile records the outcome of one reconciler run.
func RecordReconcile(duration time.Duration, deleted, failed int) {
	ReconcileDuration.Observe(duration.Seconds())
	if deleted > 0 {
		DiscountsReconciled.WithLabelValues("deleted").Add(float64(deleted))
	}
	if failed > 0 {
		DiscountsReconciled.WithLabelValues("failed").Add(float64(failed))
	}
}
