package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/testtrack-io/testtrack/pkg/errors"
	"github.com/testtrack-io/testtrack/pkg/metrics"
	"github.com/testtrack-io/testtrack/pkg/response"
)

// RateLimitConfig describes one limiter scope.
type RateLimitConfig struct {
	// Scope labels the limiter in metrics, e.g. "auth" or "api".
	Scope       string
	MaxRequests int
	Window      time.Duration
}

// RateLimit limits requests per (client IP, route) within a fixed window.
// Exceeding the limit yields 429 with a Retry-After header.
func RateLimit(store RateStore, cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || cfg.MaxRequests <= 0 || cfg.Window <= 0 {
			c.Next()
			return
		}

		key := cfg.Scope + "|" + c.ClientIP() + "|" + c.FullPath()
		count, ttl, err := store.Increment(c.Request.Context(), key, cfg.Window)
		if err != nil {
			// A broken limiter should not take the API down
			c.Next()
			return
		}

		remaining := cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > cfg.MaxRequests {
			retryAfter := int(math.Ceil(ttl.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			metrics.RateLimited.WithLabelValues(cfg.Scope).Inc()
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
