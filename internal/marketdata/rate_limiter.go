package marketdata

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a sliding-window request limiter shared by the providers.
// Public market-data endpoints ban aggressively, so the fetcher paces itself
// rather than reacting to 429s.
type RateLimiter struct {
	mu sync.Mutex

	window      time.Duration
	maxRequests int
	timestamps  []time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		window:      window,
		maxRequests: maxRequests,
		timestamps:  make([]time.Time, 0, maxRequests),
	}
}

// Wait blocks until a request slot is available or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.tryAcquire()
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records the request and returns 0, or returns the time until
// the oldest in-window request slides out.
func (r *RateLimiter) tryAcquire() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	kept := r.timestamps[:0]
	for _, ts := range r.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	r.timestamps = kept

	if len(r.timestamps) < r.maxRequests {
		r.timestamps = append(r.timestamps, now)
		return 0
	}

	return r.timestamps[0].Sub(cutoff)
}
