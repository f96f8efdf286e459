package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/testflow-app/testflow-web/internal/ratelimit"
)

// RateLimitMiddleware throttles form posts per client IP. A nil limiter
// disables throttling (the cookie and memory backends run without Redis).
func RateLimitMiddleware(limiter *ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), ipKey(c), limit, window)
		if err != nil {
			// A broken limiter must not take the login form down with it.
			c.Next()
			return
		}

		if !allowed {
			c.String(http.StatusTooManyRequests, "Too many attempts. Try again in a minute.")
			c.Abort()
			return
		}

		c.Next()
	}
}

func ipKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}
