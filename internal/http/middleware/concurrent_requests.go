package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitConcurrentRequests rejects requests with 429 while maxConcurrent
// requests are already in flight. It guards the routes that fan out to the
// telemetry provider (topology, input-status, alert checks).
//
//	api.Use(LimitConcurrentRequests(64))
func LimitConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	semaphore := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			c.Next()
		default:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many concurrent requests",
			})
		}
	}
}
