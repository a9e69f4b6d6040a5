package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
)

// MemoryStore is the in-process Store backend, for development and tests.
// It applies the same upsert discipline as the ClickHouse backend: dedupe on
// (asset_class, instrument_id, observed_at), last write wins by collected_at.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.StoredRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.StoredRecord)}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }

// Upsert applies a batch atomically under one lock. A record lands when its
// key is new or its collected_at is strictly newer than the stored row;
// re-delivering an identical batch writes nothing.
func (s *MemoryStore) Upsert(ctx context.Context, records []models.StoredRecord) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written, conflicts int
	for i := range records {
		rec := records[i]
		key := rec.Key()
		existing, ok := s.records[key]
		if !ok {
			s.records[key] = &rec
			written++
			continue
		}
		conflicts++
		if rec.CollectedAt.After(existing.CollectedAt) {
			s.records[key] = &rec
			written++
		}
	}
	return written, conflicts, nil
}

// Latest returns the most recent observation for an instrument, or nil when
// none is stored.
func (s *MemoryStore) Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.StoredRecord
	for _, rec := range s.records {
		if rec.AssetClass != class || rec.InstrumentID != instrument {
			continue
		}
		if latest == nil || rec.ObservedAt.After(latest.ObservedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// LatestAccepted returns the most recent observation without a quality flag,
// or nil when the instrument has no clean rows.
func (s *MemoryStore) LatestAccepted(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.StoredRecord
	for _, rec := range s.records {
		if rec.AssetClass != class || rec.InstrumentID != instrument || rec.QualityFlag != "" {
			continue
		}
		if latest == nil || rec.ObservedAt.After(latest.ObservedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Range returns observations in [from, to] ordered by observed_at ascending.
func (s *MemoryStore) Range(ctx context.Context, class models.AssetClass, instrument string, from, to time.Time) ([]models.StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoredRecord
	for _, rec := range s.records {
		if rec.AssetClass != class || rec.InstrumentID != instrument {
			continue
		}
		if rec.ObservedAt.Before(from) || rec.ObservedAt.After(to) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out, nil
}

// Counts returns stored row counts per asset class.
func (s *MemoryStore) Counts(ctx context.Context) (map[models.AssetClass]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.AssetClass]int64)
	for _, rec := range s.records {
		counts[rec.AssetClass]++
	}
	return counts, nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
