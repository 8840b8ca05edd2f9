package sources

import (
	"context"
	"sync"
	"time"
)

// RateLimiter bounds a connector's request rate: at most n requests per
// minute, with a minimum cooldown between consecutive requests. One limiter
// per source, never shared, since sources have independent quotas.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	cooldown time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing rpm requests per minute with the
// given cooldown between requests. rpm <= 0 disables the per-minute bound.
func NewRateLimiter(rpm int, cooldown time.Duration) *RateLimiter {
	var interval time.Duration
	if rpm > 0 {
		interval = time.Minute / time.Duration(rpm)
	}
	return &RateLimiter{
		interval: interval,
		cooldown: cooldown,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until the next request is permitted or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	gap := r.interval
	if r.cooldown > gap {
		gap = r.cooldown
	}
	var wait time.Duration
	if !r.last.IsZero() {
		elapsed := r.now().Sub(r.last)
		if elapsed < gap {
			wait = gap - elapsed
		}
	}
	r.last = r.now().Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return r.sleep(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
