package mw

import (
	"time"

	"github.com/gin-gonic/gin"

	"computer-club-backend/internal/metrics"
)

// Metrics records the latency of every request by its route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordAPIRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
