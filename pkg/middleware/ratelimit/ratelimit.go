// Package ratelimit provides per-client token bucket limiting for gin routes.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/learnhub/learnhub/pkg/auth"
	"github.com/learnhub/learnhub/pkg/controller"
)

// RateLimiter defines the interface for rate limiting implementations.
// Implementations must be safe for concurrent use.
type RateLimiter interface {
	// Allow reports whether a request for key may proceed and, when it may
	// not, how long the caller should wait.
	Allow(key string) (bool, time.Duration)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter keeps one token bucket per key. Buckets idle for longer
// than the idle TTL are dropped by Sweep.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewTokenBucketLimiter creates a limiter that allows requestsPerSecond on
// average with bursts up to burst. idleTTL <= 0 keeps buckets forever.
func NewTokenBucketLimiter(requestsPerSecond float64, burst int, idleTTL time.Duration) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow consumes one token for key.
func (l *TokenBucketLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Second
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return true, 0
	}
	reservation.CancelAt(now)
	return false, delay
}

// Sweep drops buckets not used within the idle TTL and returns how many were removed.
func (l *TokenBucketLimiter) Sweep() int {
	if l.idleTTL <= 0 {
		return 0
	}
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartSweeper runs Sweep every idle TTL until stop is closed.
func (l *TokenBucketLimiter) StartSweeper(stop <-chan struct{}) {
	if l.idleTTL <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(l.idleTTL)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Config defines the configuration for rate limiting middleware.
type Config struct {
	// KeyFunc extracts the rate limiting key. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
	// Message is returned in the error envelope.
	Message string
}

// RateLimit rejects requests over the limit with 429, a Retry-After header and
// the standard error envelope.
func RateLimit(limiter RateLimiter, cfg Config) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return ExtractIPFromRequest(c.Request) }
	}
	if cfg.Message == "" {
		cfg.Message = "too many requests"
	}

	return func(c *gin.Context) {
		allowed, wait := limiter.Allow(cfg.KeyFunc(c))
		if !allowed {
			controller.Error(c, controller.NewRateLimitedError(cfg.Message, wait))
			return
		}
		c.Next()
	}
}

// ExtractIPFromRequest extracts the client IP address from the HTTP request.
// It checks X-Forwarded-For and X-Real-IP first, then falls back to RemoteAddr.
func ExtractIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ExtractUserID keys the limiter by the authenticated subject, falling back to the client IP.
func ExtractUserID(c *gin.Context) string {
	if claims := auth.GetClaims(c.Request.Context()); claims != nil && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	return ExtractIPFromRequest(c.Request)
}
