package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/videotube/backend/internal/config"
)

// Scope names a throttled credential action.
type Scope string

const (
	ScopeLogin   Scope = "login"
	ScopeRefresh Scope = "refresh"
)

// RequestLimiter decides whether a request may perform a scoped action.
type RequestLimiter interface {
	AllowRequest(r *http.Request, scope Scope) bool
}

// LimitedWriter renders the response for a throttled request.
type LimitedWriter func(w http.ResponseWriter, r *http.Request, scope Scope)

type bucketKey struct {
	scope  Scope
	client string
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per scope and client address. Idle
// buckets are dropped once they have been unused for longer than the TTL.
type ClientLimiter struct {
	mu        sync.Mutex
	buckets   map[bucketKey]*bucket
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	clock     clockwork.Clock
	lastSweep time.Time
}

// NewClientLimiter builds a limiter allowing cfg.Requests events per
// cfg.Window with cfg.Burst extra capacity. A nil clock uses wall time.
func NewClientLimiter(cfg config.RateLimitConfig, clock clockwork.Clock) *ClientLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	requests, window, burst, ttl := cfg.Requests, cfg.Window, cfg.Burst, cfg.TTL
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ClientLimiter{
		buckets:   make(map[bucketKey]*bucket),
		limit:     rate.Every(window / time.Duration(requests)),
		burst:     burst,
		ttl:       ttl,
		clock:     clock,
		lastSweep: clock.Now(),
	}
}

// AllowRequest consumes one token from the bucket of r's client under scope.
func (l *ClientLimiter) AllowRequest(r *http.Request, scope Scope) bool {
	key := bucketKey{scope: scope, client: ClientIP(r)}
	if key.client == "" {
		key.client = "unknown"
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.ttl {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Len reports how many buckets are currently tracked.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *ClientLimiter) sweepLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles next under scope. A nil limiter lets every request through.
func RateLimit(limiter RequestLimiter, scope Scope, onLimited LimitedWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.AllowRequest(r, scope) {
				onLimited(w, r, scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating client address, preferring the first
// X-Forwarded-For entry set by a fronting proxy.
func ClientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
