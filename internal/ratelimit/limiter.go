// Package ratelimit paces the start of fetch operations across all workers
// of a crawl.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum delay between the starts of consecutive
// acquisitions. A single Limiter is shared by every worker, so the crawl as
// a whole issues roughly one request per delay.
//
// The token bucket paces the average rate; the start of each acquisition is
// then checked against the previous recorded start, so two starts are never
// closer than delay even when a waiter wakes late.
type Limiter struct {
	delay   time.Duration
	limiter *rate.Limiter

	// gate serializes the spacing check and the start record.
	gate chan struct{}

	mu        sync.Mutex
	lastStart time.Time
	acquired  int
}

// New creates a limiter. A non-positive delay disables pacing.
func New(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	} else {
		delay = 0
	}
	return &Limiter{
		delay:   delay,
		limiter: rate.NewLimiter(limit, 1),
		gate:    make(chan struct{}, 1),
	}
}

// Acquire suspends the caller until at least delay has passed since the
// previous acquisition started, then records and returns the new start time.
// It returns the context error if ctx is done before the slot opens; a
// cancelled acquisition records nothing.
func (l *Limiter) Acquire(ctx context.Context) (time.Time, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return time.Time{}, err
	}

	select {
	case l.gate <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}
	defer func() { <-l.gate }()

	if wait := l.remaining(); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return time.Time{}, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastStart = now
	l.acquired++
	return now, nil
}

// remaining returns how long until delay has passed since the last start.
func (l *Limiter) remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.delay == 0 || l.lastStart.IsZero() {
		return 0
	}
	return l.delay - time.Since(l.lastStart)
}

// Delay returns the configured minimum spacing.
func (l *Limiter) Delay() time.Duration {
	return l.delay
}

// LastStart returns the time of the most recent acquisition.
func (l *Limiter) LastStart() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStart
}

// Acquired returns how many acquisitions have succeeded.
func (l *Limiter) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}
