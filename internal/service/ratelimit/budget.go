package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrBudgetExhausted is returned when the daily request budget is spent.
// Callers must not retry past it; the budget resets at UTC midnight.
var ErrBudgetExhausted = errors.New("daily request budget exhausted")

// DailyBudget tracks a fixed number of requests per UTC calendar day.
type DailyBudget struct {
	mu    sync.Mutex
	limit int
	used  int
	day   time.Time
	now   func() time.Time
}

// NewDailyBudget creates a budget of limit requests per UTC day.
func NewDailyBudget(limit int) *DailyBudget {
	return &DailyBudget{
		limit: limit,
		now:   time.Now,
	}
}

// Take consumes one unit of budget. It returns ErrBudgetExhausted once the
// daily limit is reached; the counter resets when the UTC day rolls over.
func (b *DailyBudget) Take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(b.day) {
		b.day = today
		b.used = 0
	}

	if b.used >= b.limit {
		return ErrBudgetExhausted
	}
	b.used++
	return nil
}

// Remaining reports how many requests are left for the current UTC day.
func (b *DailyBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := b.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(b.day) {
		return b.limit
	}
	return b.limit - b.used
}
