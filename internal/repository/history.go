package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/pkg/cache"
)

// CachedHistory serves the validator's latest-observation lookups from a
// cache, falling back to the store on a miss. Only accepted observations are
// held: the price-jump rule anchors on the last clean price, and a flagged
// row sitting in front of it must not hide that anchor. The pipeline
// refreshes entries after each load, so the hot path during a run rarely
// touches the store.
type CachedHistory struct {
	cache cache.Service
	store drepo.Store
	ttl   time.Duration
}

// NewCachedHistory creates a cache-fronted history view over the store.
func NewCachedHistory(c cache.Service, store drepo.Store, ttl time.Duration) *CachedHistory {
	return &CachedHistory{cache: c, store: store, ttl: ttl}
}

func historyKey(class models.AssetClass, instrument string) string {
	return fmt.Sprintf("history:latest:%s:%s", class, instrument)
}

// Latest returns the most recent accepted observation for an instrument, or
// nil when none exists.
func (h *CachedHistory) Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	key := historyKey(class, instrument)

	var cached models.StoredRecord
	err := h.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("history cache get: %w", err)
	}

	rec, err := h.store.LatestAccepted(ctx, class, instrument)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		// Best effort: a failed backfill only costs the next lookup a
		// store round trip.
		_ = h.cache.Set(ctx, key, rec, h.ttl)
	}
	return rec, nil
}

// Put refreshes the cached latest observation after a load. Flagged records
// are dropped and older observations never displace a newer cached one.
func (h *CachedHistory) Put(ctx context.Context, rec *models.StoredRecord) {
	if rec.QualityFlag != "" {
		return
	}
	key := historyKey(rec.AssetClass, rec.InstrumentID)

	var cached models.StoredRecord
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		if cached.ObservedAt.After(rec.ObservedAt) {
			return
		}
	}
	_ = h.cache.Set(ctx, key, rec, h.ttl)
}
