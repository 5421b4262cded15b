// Package ratelimit spaces out requests per source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter gates requests per source with a minimum interval between grants.
//
// Thread Safety: safe for concurrent use. Each source has its own
// rate.Limiter, so waiting on one source never blocks another.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	sources  map[string]*rate.Limiter
}

// New creates a Limiter whose sources default to interval. A zero interval
// disables spacing.
func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval, sources: map[string]*rate.Limiter{}}
}

// SetInterval overrides the interval for one source.
func (l *Limiter) SetInterval(source string, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.sources[source]; ok {
		lim.SetLimit(limitFor(interval))
		return
	}
	l.sources[source] = newLimiter(interval)
}

// Acquire blocks until source may issue its next request or ctx is done and
// returns how long the caller waited.
func (l *Limiter) Acquire(ctx context.Context, source string) (time.Duration, error) {
	lim := l.limiter(source)

	start := time.Now()
	if err := lim.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return time.Since(start), ctxErr
		}
		// Wait refuses up front when the deadline is shorter than the delay.
		return time.Since(start), context.DeadlineExceeded
	}
	return time.Since(start), nil
}

func (l *Limiter) limiter(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.sources[source]
	if !ok {
		lim = newLimiter(l.interval)
		l.sources[source] = lim
	}
	return lim
}

func newLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(limitFor(interval), 1)
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}
