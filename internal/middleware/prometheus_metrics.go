package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/threadline/backend/internal/metrics"
)

// MetricsMiddleware collects HTTP metrics for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method

		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime).Seconds()

		// Use the route template, not the raw path, so ids don't explode
		// label cardinality
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		// Numeric status as string lets Grafana match status=~"5.."
		statusStr := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)
	}
}

// RecordVote counts a vote write by entity kind
func RecordVote(kind string) {
	metrics.Get().VotesTotal.WithLabelValues(kind).Inc()
}

// RecordPostCreated counts a new post
func RecordPostCreated() {
	metrics.Get().PostsCreatedTotal.Inc()
}

// RecordCommentCreated counts a new comment
func RecordCommentCreated() {
	metrics.Get().CommentsTotal.Inc()
}

// RecordCacheHit counts a cache hit for the named cache
func RecordCacheHit(cacheName string) {
	metrics.Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordCacheMiss counts a cache miss for the named cache
func RecordCacheMiss(cacheName string) {
	metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
}

// ObserveFeedGeneration records how long one feed page took to assemble
func ObserveFeedGeneration(feed string, d time.Duration) {
	metrics.Get().FeedGenerationTime.WithLabelValues(feed).Observe(d.Seconds())
}
