package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long a client bucket may sit unused before it is dropped.
const idleTTL = 10 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP. Buckets unused for
// idleTTL are swept lazily so the map does not grow with every address seen.
type IPRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter creates a per-IP rate limiter. limit is events per second;
// for N per minute use PerMinute(N).
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// PerMinute converts a per-minute budget to a rate.Limit.
func PerMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(n))
}

func (l *IPRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func (l *IPRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// clientIP returns the host part of RemoteAddr. chi's RealIP runs first, so
// proxy headers are already folded in.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware answers 429 with Retry-After once the client IP runs out of tokens.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			if l.limit > 0 {
				retry := int(time.Duration(float64(time.Second) / float64(l.limit)).Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			}
			writeJSONError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthRateLimiter guards /token and registration: perMinute per IP, burst 5.
func AuthRateLimiter(perMinute int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return NewIPRateLimiter(PerMinute(perMinute), 5)
}
