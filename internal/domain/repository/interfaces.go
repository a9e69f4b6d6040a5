package repository

import (
	"context"
	"time"

	"MarketPull/internal/domain/models"
)

// Source fetches raw observations for one asset class. Partial success is the
// normal case: payloads and per-instrument errors come back side by side and
// a batch call never fails as a whole.
type Source interface {
	Class() models.AssetClass
	Fetch(ctx context.Context, instruments []string) ([]models.RawPayload, []models.SourceError)
}

// Store is the idempotent time-series persistence target. Upsert deduplicates
// on (asset_class, instrument_id, observed_at) with last-write-wins by
// collected_at; a batch is applied atomically.
type Store interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, records []models.StoredRecord) (written, conflicts int, err error)
	Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error)
	LatestAccepted(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error)
	Range(ctx context.Context, class models.AssetClass, instrument string, from, to time.Time) ([]models.StoredRecord, error)
	Counts(ctx context.Context) (map[models.AssetClass]int64, error)
	Health(ctx context.Context) error
	Close() error
}

// History is the read-only lookup the validator consults for price-jump
// detection. Latest returns only accepted observations: a flagged row must
// not shadow the clean anchor beneath it, or one suspicious price would make
// every following jump pass unflagged. The caller supplies it; the validator
// never mutates it.
type History interface {
	Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error)
}

// Publisher pushes stored records to a downstream broker after a successful
// load. Optional: a run works the same without one.
type Publisher interface {
	PublishBatch(ctx context.Context, records []models.StoredRecord) error
	Close() error
}

// Metrics records pipeline activity.
type Metrics interface {
	RecordFetched(source string, n int)
	RecordOutcome(source, verdict string, n int)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordPhaseDuration(phase string, seconds float64)
}
