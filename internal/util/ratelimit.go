package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a single-token bucket that refills at a fixed rate. A nil
// RateLimiter never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration // time to earn one token
	tokens   float64
	last     time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. A non-positive rate returns nil, meaning unlimited.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		tokens:   1,
		last:     time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}
	for {
		rl.mu.Lock()
		now := time.Now()
		rl.tokens += float64(now.Sub(rl.last)) / float64(rl.interval)
		if rl.tokens > 1 {
			rl.tokens = 1
		}
		rl.last = now

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		// Sleep roughly until the next token is due.
		wait := time.Duration((1 - rl.tokens) * float64(rl.interval))
		rl.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
