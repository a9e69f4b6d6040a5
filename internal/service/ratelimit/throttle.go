package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between consecutive calls. It is the
// pacing half of rate limiting: a 12s interval keeps a source at 5 calls per
// minute regardless of how fast the pipeline wants to go.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewThrottle creates a throttle with the given minimum interval between
// calls. A zero or negative interval disables pacing.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// PerMinute creates a throttle allowing at most n calls per minute, spaced
// evenly.
func PerMinute(n int) *Throttle {
	if n <= 0 {
		return NewThrottle(0)
	}
	return NewThrottle(time.Minute / time.Duration(n))
}

// Wait blocks until the minimum interval since the previous call has elapsed,
// or the context is cancelled. The slot is reserved before sleeping, so
// concurrent callers queue up rather than pile through together.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := t.now()
	next := t.last.Add(t.interval)
	if next.Before(now) {
		next = now
	}
	t.last = next
	t.mu.Unlock()

	if d := next.Sub(now); d > 0 {
		return t.sleep(ctx, d)
	}
	return ctx.Err()
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
