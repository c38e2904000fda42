// Package ratelimit throttles unauthenticated callers with an in-process
// sliding window per key.
package ratelimit

import (
	"sync"
	"time"
)

// maxKeys bounds the window map; idle windows are swept once it is reached.
const maxKeys = 50000

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest hit leaves the window.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter tracks request timestamps per key. Not distributed: each replica
// enforces its own budget.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a hit for key if the window has room.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := prune(l.windows[key], now.Add(-l.window))
	if len(hits) >= l.limit {
		l.windows[key] = hits
		return Result{Limit: l.limit, ResetAt: hits[0].Add(l.window)}
	}

	hits = append(hits, now)
	if _, ok := l.windows[key]; !ok && len(l.windows) >= maxKeys {
		l.sweep(now)
	}
	l.windows[key] = hits
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(hits),
		ResetAt:   hits[0].Add(l.window),
	}
}

// sweep drops windows with no hits left. Caller holds mu.
func (l *Limiter) sweep(now time.Time) {
	cutoff := now.Add(-l.window)
	for key, hits := range l.windows {
		if len(prune(hits, cutoff)) == 0 {
			delete(l.windows, key)
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(hits); i++ {
		if hits[i].After(cutoff) {
			break
		}
	}
	return hits[i:]
}
