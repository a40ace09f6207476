package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"vitaeforge/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	defaultMaxBuckets     = 10000
)

// RateLimitRule is a token bucket refilled at Rate tokens per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// full reports how long an empty bucket takes to refill completely.
func (r RateLimitRule) full() time.Duration {
	return time.Duration(float64(r.Burst) / r.Rate * float64(time.Second))
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one bucket per principal and group. When the number of
// buckets reaches MaxBuckets, buckets that have refilled completely are
// dropped, since a fresh bucket would behave the same.
type RateLimiter struct {
	MaxBuckets int

	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
	idle   time.Duration
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		MaxBuckets: defaultMaxBuckets,
		buckets:    make(map[string]*rateBucket),
		now:        now,
	}
}

// RateLimit rejects requests over the rule of their group with 429 and a
// Retry-After header. Groups without a rule are not limited.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		principal := UserIDFromContext(c)
		if principal == "" {
			principal = "ip:" + c.ClientIP()
		}
		allowed, wait := cfg.Limiter.Allow(principal+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		retryMs := wait.Milliseconds()
		if retryMs <= 0 {
			retryMs = 1000
		}
		c.Header("Retry-After", strconv.FormatInt((retryMs+999)/1000, 10))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests", gin.H{
			"retryAfterMs": retryMs,
		})
	}
}

// Allow takes one token from the bucket at key. When the bucket is empty it
// reports how long until a token is available.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if l.MaxBuckets > 0 && len(l.buckets) >= l.MaxBuckets {
			l.evictLocked(now)
		}
		b = &rateBucket{tokens: float64(rule.Burst), last: now, idle: rule.full()}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

// Len returns the number of tracked buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) >= b.idle {
			delete(l.buckets, key)
		}
	}
}
