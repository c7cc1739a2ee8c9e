package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/feedloop/paygate/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBucketSize    = 100 // Maximum number of tokens
	defaultRefillRate    = 10  // Tokens per second
	defaultWindowSeconds = 1   // Time window in seconds
	defaultKeyPrefix     = "paygate:rate_limit"
)

// RateLimiter implements a token bucket per caller, kept in Redis so every
// gateway replica shares the same budget.
type RateLimiter struct {
	rdb         *redis.Client
	bucketSize  int
	refillRate  int
	windowInSec int
	keyPrefix   string
}

// NewRateLimiter creates a new rate limiter instance
func NewRateLimiter(rdb *redis.Client, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		rdb:         rdb,
		bucketSize:  defaultBucketSize,
		refillRate:  defaultRefillRate,
		windowInSec: defaultWindowSeconds,
		keyPrefix:   defaultKeyPrefix,
	}

	for _, opt := range opts {
		opt(rl)
	}

	return rl
}

// RateLimiterOption defines a function to configure RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithBucketSize sets the bucket size
func WithBucketSize(size int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if size > 0 {
			rl.bucketSize = size
		}
	}
}

// WithRefillRate sets the refill rate
func WithRefillRate(rate int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if rate > 0 {
			rl.refillRate = rate
		}
	}
}

// WithWindow sets the time window in seconds
func WithWindow(seconds int) RateLimiterOption {
	return func(rl *RateLimiter) {
		if seconds > 0 {
			rl.windowInSec = seconds
		}
	}
}

// WithKeyPrefix namespaces the Redis keys
func WithKeyPrefix(prefix string) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.keyPrefix = prefix
	}
}

func (rl *RateLimiter) fail(c *gin.Context, err error, message string) {
	c.Error(err)
	apiErr := models.NewInternalError(message)
	c.AbortWithStatusJSON(apiErr.StatusCode, apiErr.ToResponse())
}

// RateLimit returns a middleware that limits request rates using the token bucket algorithm
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Authenticated admin callers are limited per token, everyone else per IP
		clientID := c.ClientIP()
		if token := c.GetString(TokenIDKey); token != "" {
			clientID = token
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s", rl.keyPrefix, clientID)
		bucketKey := key + ":bucket"
		lastUpdateKey := key + ":last_update"
		now := time.Now().Unix()

		tokens, err := rl.rdb.Get(ctx, bucketKey).Int()
		if err == redis.Nil {
			tokens = rl.bucketSize
		} else if err != nil {
			rl.fail(c, err, "rate limit check failed")
			return
		}

		lastUpdate, err := rl.rdb.Get(ctx, lastUpdateKey).Int64()
		if err == redis.Nil {
			lastUpdate = now
		} else if err != nil {
			rl.fail(c, err, "rate limit check failed")
			return
		}

		refill := int(now-lastUpdate) * rl.refillRate
		tokens = min(tokens+refill, rl.bucketSize)

		if tokens <= 0 {
			retryAfter := float64(1) / float64(rl.refillRate)
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.bucketSize))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(now+1, 10))
			c.Header("Retry-After", fmt.Sprintf("%.2f", retryAfter))
			apiErr := models.NewTooManyRequests("rate limit exceeded")
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr.ToResponse())
			return
		}

		// Consume token and update bucket atomically
		tokens--
		pipe := rl.rdb.TxPipeline()
		pipe.Set(ctx, bucketKey, tokens, time.Duration(rl.windowInSec)*time.Second)
		pipe.Set(ctx, lastUpdateKey, now, time.Duration(rl.windowInSec)*time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			rl.fail(c, err, "rate limit update failed")
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.bucketSize))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(tokens))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(now+int64(rl.windowInSec), 10))

		c.Next()
	}
}
