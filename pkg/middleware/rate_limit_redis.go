package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var windowClock = time.Now

// RedisRateLimitMiddleware enforces a fixed-window budget of rps*window+burst
// requests per client key, shared by every replica talking to the same Redis.
// A nil client falls back to the in-process token bucket.
func RedisRateLimitMiddleware(client *redis.Client, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	if window < time.Second {
		window = time.Second
	}
	secs := int64(window / time.Second)
	budget := int64(rps*float64(secs)) + int64(burst)
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		now := windowClock().Unix()
		slot := now / secs
		key := fmt.Sprintf("rl:%s:%d", limitKey(c), slot)

		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.Expire(ctx, key, window+time.Second)
			return nil
		})
		if err != nil {
			logger.Errorf("rate limit: redis pipeline failed: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limit check unavailable"})
			return
		}
		used := incr.Val()
		remaining := budget - used
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(budget, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if used > budget {
			c.Header("Retry-After", strconv.FormatInt((slot+1)*secs-now, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
