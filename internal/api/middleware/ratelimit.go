package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"tasktracker/internal/api/response"
	"tasktracker/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimit applies a per-client-IP token bucket. Limiter errors let the request through.
func RateLimit(limiter Limiter, bucket, message string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		allowed, retryAfter, err := limiter.Allow(ctx, bucket+":"+c.ClientIP())
		cancel()
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable",
					slog.String("bucket", bucket),
					slog.String("error", err.Error()),
				)
			}
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitRejectedTotal.WithLabelValues(bucket).Inc()
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			response.AbortFail(c, http.StatusTooManyRequests, message)
			return
		}
		c.Next()
	}
}
