package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/cache"
)

func TestCachedHistoryFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_, _, err := store.Upsert(ctx, []models.StoredRecord{
		record("IBM", t0, t0.Add(time.Hour), 188.0),
	})
	require.NoError(t, err)

	hist := NewCachedHistory(cache.NewMemoryCache(), store, time.Hour)

	rec, err := hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 188.0, rec.Price)

	// Second lookup is served from cache even if the store moves on.
	_, _, err = store.Upsert(ctx, []models.StoredRecord{
		record("IBM", t0.Add(24*time.Hour), t0.Add(25*time.Hour), 191.0),
	})
	require.NoError(t, err)

	rec, err = hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 188.0, rec.Price)
}

func TestCachedHistoryPutRefreshes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hist := NewCachedHistory(cache.NewMemoryCache(), store, time.Hour)

	newer := record("IBM", t0.Add(24*time.Hour), t0.Add(25*time.Hour), 191.0)
	hist.Put(ctx, &newer)

	rec, err := hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 191.0, rec.Price)

	// An older observation does not displace the cached one.
	older := record("IBM", t0, t0.Add(time.Hour), 188.0)
	hist.Put(ctx, &older)

	rec, err = hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	assert.Equal(t, 191.0, rec.Price)
}

func TestCachedHistoryIgnoresFlaggedRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	// A flagged jump lands after the clean anchor.
	flagged := record("IBM", t0.Add(24*time.Hour), t0.Add(25*time.Hour), 125.0)
	flagged.QualityFlag = models.ReasonPriceJump
	_, _, err := store.Upsert(ctx, []models.StoredRecord{
		record("IBM", t0, t0.Add(time.Hour), 100.0),
		flagged,
	})
	require.NoError(t, err)

	hist := NewCachedHistory(cache.NewMemoryCache(), store, time.Hour)

	// The store fallback skips the flagged row and surfaces the anchor.
	rec, err := hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 100.0, rec.Price)

	// Put never lets a flagged record displace the cached anchor either.
	newerFlagged := record("IBM", t0.Add(48*time.Hour), t0.Add(49*time.Hour), 160.0)
	newerFlagged.QualityFlag = models.ReasonPriceJump
	hist.Put(ctx, &newerFlagged)

	rec, err = hist.Latest(ctx, models.AssetEquity, "IBM")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 100.0, rec.Price)
}

func TestCachedHistoryUnknownInstrument(t *testing.T) {
	hist := NewCachedHistory(cache.NewMemoryCache(), NewMemoryStore(), time.Hour)
	rec, err := hist.Latest(context.Background(), models.AssetEquity, "GHOST")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
