package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Payphone-Digital/portfolio-service/internal/constants"
	"github.com/Payphone-Digital/portfolio-service/pkg/cache"
	"github.com/Payphone-Digital/portfolio-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter hands each client IP a token bucket that allows maxRequest
// calls per duration. Idle buckets expire after duration, by which time they
// would have refilled anyway.
type RateLimiter struct {
	name       string
	maxRequest int
	duration   time.Duration
	every      rate.Limit
	buckets    *cache.Cache[*rate.Limiter]
}

func NewRateLimiter(name string, maxRequest int, duration time.Duration) *RateLimiter {
	if maxRequest < 1 {
		maxRequest = 1
	}
	if duration <= 0 {
		duration = time.Minute
	}
	return &RateLimiter{
		name:       name,
		maxRequest: maxRequest,
		duration:   duration,
		every:      rate.Every(duration / time.Duration(maxRequest)),
		buckets:    cache.New[*rate.Limiter](duration),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	if l, ok := rl.buckets.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.every, rl.maxRequest)
	if stored, _ := rl.buckets.SetIfAbsent(key, l, rl.duration); stored {
		return l
	}
	if existing, ok := rl.buckets.Get(key); ok {
		return existing
	}
	return l
}

func (rl *RateLimiter) Stop() { rl.buckets.Stop() }

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		r := rl.bucket(ip).Reserve()
		if !r.OK() {
			rl.reject(c, ip, rl.duration)
			return
		}
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			rl.reject(c, ip, delay)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.maxRequest))
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, ip string, retryAfter time.Duration) {
	logger.GetLogger().Warn("Rate limit exceeded",
		zap.String("limiter", rl.name),
		zap.String("client_ip", ip),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("max_requests", rl.maxRequest),
		zap.Duration("duration", rl.duration),
	)

	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	c.Header(constants.HeaderRetryAfter, strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, constants.BuildErrorResponse(
		constants.MsgRateExceeded, "RATE_LIMIT_EXCEEDED", nil))
}
