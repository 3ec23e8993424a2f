// Package limiter throttles HTTP requests per client with token buckets.
package limiter

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sweetpotato0/agentgate/clock"
	"github.com/sweetpotato0/agentgate/middleware"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a client's bucket is kept after its last request.
const DefaultIdleTTL = 10 * time.Minute

// KeyFunc extracts the client key a bucket is tracked under.
type KeyFunc func(r *http.Request) string

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows rps requests per second per client with bursts of
// burst requests. Rejected requests get 429 with a JSON error body.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	keyFunc KeyFunc
	clock   clock.Clock

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithKeyFunc overrides the default client key (the remote IP).
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *RateLimiter) {
		if fn != nil {
			l.keyFunc = fn
		}
	}
}

// WithClock sets the time source used for token accounting.
func WithClock(c clock.Clock) Option {
	return func(l *RateLimiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithIdleTTL sets how long idle client buckets are retained.
func WithIdleTTL(d time.Duration) Option {
	return func(l *RateLimiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

// NewRateLimiter creates a rate limiting middleware
func NewRateLimiter(rps float64, burst int, opts ...Option) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		keyFunc: ClientIP,
		clock:   clock.System{},
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the middleware name
func (l *RateLimiter) Name() string {
	return "RateLimiter"
}

// Wrap rejects requests from clients that ran out of tokens.
func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.keyFunc(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			middleware.WriteError(w, http.StatusTooManyRequests, middleware.ErrRateLimitExceeded.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow consumes one token for key and reports whether it was available.
func (l *RateLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked client buckets.
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Reset drops every client bucket.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *RateLimiter) retryAfter() int {
	if l.rps <= 0 {
		return 1
	}
	secs := int(1 / float64(l.rps))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// ClientIP keys requests by the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
