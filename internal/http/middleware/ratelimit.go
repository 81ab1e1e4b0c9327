package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByOperatorOrIP buckets authenticated operators by key id and everyone
// else by client IP.
func KeyByOperatorOrIP() keyFunc {
	return func(c *gin.Context) string {
		if op := OperatorFrom(c); op != "" {
			return "op:" + op
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token bucket per key. Buckets idle for ttl
// are dropped during lookups.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

const gcEvery = 5000

// NewRateLimiter returns a limiter allowing rps requests per second per key
// with the given burst (at least 1).
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Collect before touching key so a stale bucket for key is replaced too.
	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects requests over the limit with 429 and Retry-After: 1.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limiterFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		abortJSON(c, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
	}
}
