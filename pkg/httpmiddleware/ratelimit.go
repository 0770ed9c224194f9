package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per window.
	Max int
	// Window is the length of one counting window.
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
	// Skip exempts matching requests, e.g. health probes.
	Skip func(*http.Request) bool
}

// counter approximates a sliding window with two fixed windows: the previous
// window's count is weighted by how much of it the sliding window still
// covers.
type counter struct {
	start time.Time
	prev  float64
	curr  float64
}

// decision is the outcome of one limiter check.
type decision struct {
	allowed   bool
	remaining int
	reset     time.Time
}

type limiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &limiter{cfg: cfg, counters: make(map[string]*counter)}
}

func (l *limiter) take(key string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{start: now.Truncate(l.cfg.Window)}
		l.counters[key] = c
	}
	c.advance(now, l.cfg.Window)

	covered := 1 - float64(now.Sub(c.start))/float64(l.cfg.Window)
	used := c.prev*math.Max(covered, 0) + c.curr
	d := decision{reset: c.start.Add(l.cfg.Window)}
	if used >= float64(l.cfg.Max) {
		return d
	}

	c.curr++
	d.allowed = true
	d.remaining = max(l.cfg.Max-int(math.Ceil(used+1)), 0)
	return d
}

// advance rolls the counter forward so that now falls in its current window.
func (c *counter) advance(now time.Time, window time.Duration) {
	switch elapsed := now.Sub(c.start); {
	case elapsed < window:
		return
	case elapsed < 2*window:
		c.prev = c.curr
	default:
		c.prev = 0
	}
	c.curr = 0
	c.start = now.Truncate(window)
}

// evict drops counters that no longer influence any decision.
func (l *limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.counters, key)
		}
	}
}

func (l *limiter) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

// RateLimit limits each client to cfg.Max requests per sliding window.
// Responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejected requests get 429 with Retry-After.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background sweep of idle clients
// that runs until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go l.evictLoop(ctx)
	return l.middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.Skip != nil && l.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		d := l.take(l.cfg.KeyFunc(r), now)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.reset.Unix(), 10))

		if !d.allowed {
			wait := max(d.reset.Sub(now), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the host of
// RemoteAddr, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SkipPaths exempts requests whose path is one of paths.
func SkipPaths(paths ...string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}
