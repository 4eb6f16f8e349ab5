// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by outcome (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_cache_lookups_total",
		Help: "Cache-aside lookups by outcome",
	}, []string{"outcome"})

	// DatabaseQueryLatency records query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chorus_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ModerationDecisions counts comment deletion decisions by matching rule.
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_moderation_decisions_total",
		Help: "Comment deletion authorization decisions by rule",
	}, []string{"rule", "allowed"})

	// LikeToggles counts like toggles by entity and resulting state.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_like_toggles_total",
		Help: "Like toggles by entity and resulting state",
	}, []string{"entity", "state"})

	// CascadeDeletes records how many replies a top-level deletion soft-deleted.
	CascadeDeletes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chorus_comment_cascade_size",
		Help:    "Replies soft-deleted together with their top-level comment",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// ListingWindow records the effective page size of listing requests.
	ListingWindow = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chorus_listing_window_size",
		Help:    "Effective limit of listing requests by collection",
		Buckets: []float64{1, 5, 10, 20, 50, 100},
	}, []string{"collection"})

	// OnlineUsers is the number of users currently marked online.
	OnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chorus_presence_online_users",
		Help: "Users currently online",
	})

	// WebSocketConnectionsTotal is the gauge of active websocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chorus_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts websocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped because a client fell behind.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorus_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordModeration counts one authorization decision.
func RecordModeration(rule string, allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	ModerationDecisions.WithLabelValues(rule, label).Inc()
}

// RecordLikeToggle counts one like toggle.
func RecordLikeToggle(entity string, liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	LikeToggles.WithLabelValues(entity, state).Inc()
}
