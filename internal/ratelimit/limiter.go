// Package ratelimit paces ledger submissions for nodes that cannot absorb
// transactions as fast as the simulator produces them.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter issues permits no faster than a fixed rate. Unlike a token bucket
// it keeps a strict minimum interval between permits, so it never bursts.
type Limiter struct {
	mu       sync.Mutex
	next     time.Time
	interval time.Duration
}

// New creates a Limiter issuing ratePerSec permits per second. Rates below
// one permit per minute are raised to that floor.
func New(ratePerSec float64) *Limiter {
	ratePerSec = max(ratePerSec, 1.0/60)
	return &Limiter{
		next:     time.Now(),
		interval: time.Duration(float64(time.Second) / ratePerSec),
	}
}

// Wait blocks until a permit is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	now := time.Now()
	if l.next.Before(now) {
		// Idle time is not banked: a slow caller does not earn a burst.
		l.next = now
	}
	permit := l.next
	l.next = permit.Add(l.interval)
	l.mu.Unlock()

	wait := time.Until(permit)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.release(permit)
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// release hands back an unused permit if no later one has been issued.
func (l *Limiter) release(permit time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.next.Equal(permit.Add(l.interval)) {
		l.next = permit
	}
}
