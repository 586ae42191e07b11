package providers

import (
	"context"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between outbound LLM calls.
const DefaultMinInterval = 2 * time.Second

// RateLimiter enforces a minimum wall-clock interval between admitted calls.
// Each client owns its own limiter; there is no package-level state.
type RateLimiter struct {
	mu sync.Mutex

	// Configuration
	interval time.Duration

	// next is the earliest time the next call may be admitted.
	next time.Time

	// Statistics
	lastCall      time.Time
	totalAdmitted int64
	totalWaited   time.Duration
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	Interval       time.Duration `json:"interval"`
	LastCall       time.Time     `json:"last_call,omitempty"`
	TimeUntilReady time.Duration `json:"time_until_ready"`
	TotalAdmitted  int64         `json:"total_admitted"`
	TotalWaited    time.Duration `json:"total_waited"`
}

// NewRateLimiter creates a limiter admitting at most one call per interval.
// A zero interval disables waiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	return &RateLimiter{interval: interval}
}

// Wait blocks until the interval since the previously admitted call has
// elapsed, or the context is cancelled. The slot is reserved under the lock
// so that overlapping callers are spaced out as well.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	now := time.Now()
	admitAt := now
	if r.next.After(now) {
		admitAt = r.next
	}
	r.next = admitAt.Add(r.interval)
	r.mu.Unlock()

	waitTime := admitAt.Sub(now)
	if waitTime > 0 {
		timer := time.NewTimer(waitTime)
		defer timer.Stop()

		// Wait outside lock
		select {
		case <-ctx.Done():
			r.release(admitAt)
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.mu.Lock()
	r.lastCall = time.Now()
	r.totalAdmitted++
	r.totalWaited += waitTime
	r.mu.Unlock()
	return nil
}

// release gives back a reservation made for admitAt that was never used.
// Only the latest reservation can be returned; earlier ones are already
// followed by other waiters.
func (r *RateLimiter) release(admitAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next.Equal(admitAt.Add(r.interval)) {
		r.next = admitAt
	}
}

// Interval returns the configured minimum interval.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	var untilReady time.Duration
	if d := time.Until(r.next); d > 0 {
		untilReady = d
	}

	return RateLimiterStatus{
		Interval:       r.interval,
		LastCall:       r.lastCall,
		TimeUntilReady: untilReady,
		TotalAdmitted:  r.totalAdmitted,
		TotalWaited:    r.totalWaited,
	}
}
