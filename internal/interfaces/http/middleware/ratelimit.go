package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(key string) (bool, RateLimitInfo)
}

// RateLimitInfo is the limiter state reported in the response headers.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// KeyFunc extracts the limiter key; the client IP when nil.
	KeyFunc   func(c *gin.Context) string
	SkipPaths []string
	// CleanupInterval is how often idle limiters are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig limits each client IP to 10 requests per second
// with bursts of 20.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		CleanupInterval:   5 * time.Minute,
	}
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one token bucket per key.
type KeyedLimiter struct {
	rps     rate.Limit
	burst   int
	idle    time.Duration
	mu      sync.Mutex
	buckets map[string]*keyedLimiter
	stop    chan struct{}
	once    sync.Once
}

// NewKeyedLimiter returns a limiter allowing rps requests per second per key
// with the given burst. Limiters idle for cleanupInterval are dropped by a
// background sweep when cleanupInterval is positive.
func NewKeyedLimiter(rps float64, burst int, cleanupInterval time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(rps)))
	}
	l := &KeyedLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    cleanupInterval,
		buckets: make(map[string]*keyedLimiter),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.sweep()
	}
	return l
}

// Allow consumes one token of key.
func (l *KeyedLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &keyedLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	info := RateLimitInfo{Limit: l.burst, Remaining: int(math.Max(0, math.Floor(tokens)))}
	if tokens < 1 && l.rps > 0 {
		info.ResetAt = now.Add(time.Duration((1 - tokens) / float64(l.rps) * float64(time.Second)))
	} else {
		info.ResetAt = now
	}
	return allowed, info
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the background sweep.
func (l *KeyedLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *KeyedLimiter) sweep() {
	t := time.NewTicker(l.idle)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.evictIdle(time.Now().Add(-l.idle))
		case <-l.stop:
			return
		}
	}
}

func (l *KeyedLimiter) evictIdle(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, b := range l.buckets {
		if b.lastSeen.Before(before) {
			delete(l.buckets, k)
		}
	}
}

// RateLimit rejects requests over the limit with 429 and Retry-After.
func RateLimit(limiter RateLimiter, config RateLimitConfig) gin.HandlerFunc {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}
		allowed, info := limiter.Allow(keyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
		if allowed {
			c.Next()
			return
		}

		retry := int(math.Ceil(time.Until(info.ResetAt).Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    errors.CodeRateLimit,
			"message": "rate limit exceeded, please retry later",
		})
	}
}
