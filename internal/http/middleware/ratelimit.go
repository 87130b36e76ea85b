// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the per-caller token-bucket limiter. Signed-in
// callers get a bucket per actor ID, anonymous callers one per client IP.
// Rendering a receipt PDF or an export workbook is far more expensive than a
// list read, so those routes draw a configurable number of tokens per call.
// Idempotent replays flagged by IdempotencyValidator are never limited.
//
// The limiter is process-local.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	visitorTTL   = 10 * time.Minute
	sweepAfterN  = 5000
	retryAfterS  = 1
	rateCodeBusy = "rate_limited"
)

// KeyFunc selects the bucket a request draws from.
type KeyFunc func(*gin.Context) string

// CostFunc returns how many tokens a request consumes (>= 1).
type CostFunc func(*gin.Context) int

// KeyByActorOrIP keys signed-in callers by actor ID and everyone else by IP.
func KeyByActorOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if a, ok := ActorFrom(c); ok {
			return "actor:" + a.ID
		}
		return "ip:" + c.ClientIP()
	}
}

// RenderCost charges n tokens for routes that render a document (PDF or
// workbook) and one token for everything else.
func RenderCost(n int) CostFunc {
	if n < 1 {
		n = 1
	}
	return func(c *gin.Context) int {
		if isRenderPath(c.Request.URL.Path) {
			return n
		}
		return 1
	}
}

func isRenderPath(p string) bool {
	return strings.HasSuffix(p, ".pdf") || strings.HasSuffix(p, ".xlsx")
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  KeyFunc
	costFn CostFunc
	now    func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  int
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (coerced to at least 1). A nil cost charges one token per request.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc, costFn CostFunc) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if costFn == nil {
		costFn = func(*gin.Context) int { return 1 }
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		costFn:   costFn,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// bucket returns the limiter for key. Every sweepAfterN lookups, buckets
// idle for visitorTTL are dropped first, so a stale entry for key itself is
// replaced by a full one.
func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= sweepAfterN {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= visitorTTL {
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

// cost clamps the request cost to the bucket size; a cost above burst could
// never be satisfied.
func (rl *RateLimiter) cost(c *gin.Context) int {
	n := rl.costFn(c)
	switch {
	case n < 1:
		return 1
	case n > rl.burst:
		return rl.burst
	}
	return n
}

// IsRateBypass reports whether IdempotencyValidator found a stored result for
// this request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler enforces the limit, answering 429 with Retry-After when the bucket
// cannot cover the request's cost.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		if rl.bucket(rl.keyFn(c)).AllowN(rl.now(), rl.cost(c)) {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterS))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       rateCodeBusy,
			"message":    "rate limit exceeded",
		})
	}
}
