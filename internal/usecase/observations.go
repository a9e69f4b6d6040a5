package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
)

// ObservationsUseCase provides business logic for querying stored
// observations.
type ObservationsUseCase struct {
	store drepo.Store
}

func NewObservationsUseCase(store drepo.Store) *ObservationsUseCase {
	return &ObservationsUseCase{store: store}
}

// GetLatest returns the newest stored observation for an instrument.
func (uc *ObservationsUseCase) GetLatest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	if instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if !class.Valid() {
		return nil, fmt.Errorf("unknown asset class %q", class)
	}
	rec, err := uc.store.Latest(ctx, class, instrument)
	if err != nil {
		return nil, fmt.Errorf("get latest: %w", err)
	}
	return rec, nil
}

type GetRangeParams struct {
	Class      models.AssetClass
	Instrument string
	From       time.Time
	To         time.Time
	Limit      int
}

// GetRangeResult carries the observations in range plus the match count
// before the limit was applied, so callers can tell a truncated page apart
// from a complete one.
type GetRangeResult struct {
	Records []models.StoredRecord
	Total   int64
}

// GetRange returns observations in [from, to] ordered by observed_at.
func (uc *ObservationsUseCase) GetRange(ctx context.Context, p GetRangeParams) (*GetRangeResult, error) {
	if p.Instrument == "" {
		return nil, fmt.Errorf("instrument required")
	}
	if !p.Class.Valid() {
		return nil, fmt.Errorf("unknown asset class %q", p.Class)
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 10000
	}

	records, err := uc.store.Range(ctx, p.Class, p.Instrument, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("get range: %w", err)
	}
	total := int64(len(records))
	if len(records) > p.Limit {
		records = records[:p.Limit]
	}

	return &GetRangeResult{Records: records, Total: total}, nil
}

// Health reports whether the store is reachable.
func (uc *ObservationsUseCase) Health(ctx context.Context) error {
	return uc.store.Health(ctx)
}

// GetStats returns stored row counts per asset class.
func (uc *ObservationsUseCase) GetStats(ctx context.Context) (map[models.AssetClass]int64, error) {
	counts, err := uc.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return counts, nil
}
