package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/shared/server/respond"
)

const defaultRateLimitGroup = "DEFAULT"

// MsgRateLimited is returned with 429 responses.
const MsgRateLimited = "Too many requests. Please wait a moment and try again."

// RateLimitRule allows Limit requests per principal within each Window.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimitResult describes the state of a principal's window after a hit.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed-window counter keyed by principal and group.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     now,
	}
}

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
		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = strings.TrimSpace(c.ClientIP())
		}
		res := cfg.Limiter.Allow(principal+"|"+group, rule)

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetEpochSeconds(res.ResetAt), 10))
		if res.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(res.ResetAt.Sub(cfg.Limiter.now()).Seconds()))
		if retryAfter <= 0 {
			retryAfter = 1
		}
		h.Set("Retry-After", strconv.Itoa(retryAfter))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", MsgRateLimited, nil)
	}
}

// Allow records a hit for key and reports whether it fits the rule.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) RateLimitResult {
	if l == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return RateLimitResult{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit}
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(rule.Window)}
		l.windows[key] = w
	}
	w.count++
	if w.count > rule.Limit {
		return RateLimitResult{Allowed: false, Limit: rule.Limit, Remaining: 0, ResetAt: w.resetAt}
	}
	return RateLimitResult{Allowed: true, Limit: rule.Limit, Remaining: rule.Limit - w.count, ResetAt: w.resetAt}
}

// Sweep drops expired windows and returns how many were removed.
func (l *RateLimiter) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked windows.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartSweeper evicts expired windows every interval until ctx is done.
func (l *RateLimiter) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

func resetEpochSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return int64(math.Ceil(float64(t.UnixMilli()) / 1000.0))
}
