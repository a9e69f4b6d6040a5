package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyBudgetExhaustion(t *testing.T) {
	b := NewDailyBudget(3)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Take())
	}
	assert.Equal(t, 0, b.Remaining())

	err := b.Take()
	assert.True(t, errors.Is(err, ErrBudgetExhausted))
}

func TestDailyBudgetResetsAtUTCMidnight(t *testing.T) {
	b := NewDailyBudget(1)
	day1 := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	b.now = func() time.Time { return day1 }

	require.NoError(t, b.Take())
	assert.Error(t, b.Take())

	b.now = func() time.Time { return day1.Add(2 * time.Minute) }
	assert.Equal(t, 1, b.Remaining())
	assert.NoError(t, b.Take())
}

func TestThrottleSpacesCalls(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	th := NewThrottle(10 * time.Second)
	th.now = func() time.Time { return clock }
	th.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, th.Wait(context.Background()))
	require.NoError(t, th.Wait(context.Background()))
	require.NoError(t, th.Wait(context.Background()))

	// First call goes straight through, subsequent calls queue behind the
	// reserved slots.
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, slept)
}

func TestThrottleZeroIntervalNoops(t *testing.T) {
	th := NewThrottle(0)
	assert.NoError(t, th.Wait(context.Background()))
}

func TestThrottleCancellation(t *testing.T) {
	th := NewThrottle(time.Hour)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := th.Wait(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPerMinute(t *testing.T) {
	th := PerMinute(10)
	assert.Equal(t, 6*time.Second, th.interval)

	assert.Equal(t, time.Duration(0), PerMinute(0).interval)
}
