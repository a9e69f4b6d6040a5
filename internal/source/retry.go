package source

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy retries transient failures with exponential backoff and full
// jitter. Permanent failures and context cancellation stop immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy creates a retry policy. Zero values fall back to 3 attempts,
// 1s base delay, doubling.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration, multiplier float64) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if multiplier <= 0 {
		multiplier = 2
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Multiplier:  multiplier,
		rand:        rand.Float64,
		sleep:       sleepCtx,
	}
}

// Do runs op up to MaxAttempts times. The delay before attempt n is a random
// fraction of BaseDelay * Multiplier^(n-2), so concurrent retries spread out
// instead of hammering the upstream in lockstep.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.rand == nil {
		p.rand = rand.Float64
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			ceiling := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-2))
			delay := time.Duration(p.rand() * ceiling)
			if serr := p.sleep(ctx, delay); serr != nil {
				return serr
			}
		}

		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
