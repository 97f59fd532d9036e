package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter bounds request rates per key (client IP, owner id). Each key
// gets a token bucket sized to the configured window: limit requests
// are available immediately and refill evenly across the window.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New creates a keyed limiter allowing limit requests per window. A
// non-positive limit disables limiting.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*bucket),
		burst:     limit,
		window:    window,
		lastSweep: time.Now(),
	}
	if limit > 0 && window > 0 {
		l.limit = rate.Limit(float64(limit) / window.Seconds())
	}
	return l
}

// Allow reports whether the request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.allowAt(key, time.Now())
}

func (l *Limiter) allowAt(key string, now time.Time) bool {
	if l.burst <= 0 || l.window <= 0 {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	return b.lim.AllowN(now, 1)
}

// sweep drops buckets idle for at least a full window; an idle bucket
// has fully refilled, so dropping it changes nothing. Caller holds mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.window {
			delete(l.buckets, key)
		}
	}
}

// Size returns the number of tracked keys, for tests and metrics.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
