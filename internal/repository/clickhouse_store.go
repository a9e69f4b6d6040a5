package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"MarketPull/internal/domain/models"
	pkgch "MarketPull/pkg/clickhouse"
	applogger "MarketPull/pkg/logger"
)

// CHObservationStore implements Store backed by ClickHouse. The table is a
// ReplacingMergeTree keyed on (asset_class, instrument_id, observed_at) with
// collected_at as the version column, so background merges converge on the
// last write; reads use FINAL to see the converged row before merges run.
type CHObservationStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger

	// Upserts are serialized so the pre-read that decides written/conflict
	// counts cannot race a concurrent insert of the same keys.
	upsertMu sync.Mutex
}

// NewCHObservationStore creates a ClickHouse-backed observation store.
func NewCHObservationStore(ch *pkgch.Client, database, table string) *CHObservationStore {
	return &CHObservationStore{db: ch.DB(), database: database, table: table}
}

// SetLogger injects a structured logger.
func (s *CHObservationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHObservationStore) fqTable() string {
	return s.database + "." + s.table
}

// Init creates the database and observation table if missing.
func (s *CHObservationStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            asset_class    LowCardinality(String),
            instrument_id  String,
            observed_at    DateTime64(3, 'UTC'),
            collected_at   DateTime64(3, 'UTC'),
            price          Float64,
            open_price     Nullable(Float64),
            high_price     Nullable(Float64),
            low_price      Nullable(Float64),
            volume         Nullable(Float64),
            market_cap     Nullable(Float64),
            change_pct_24h Nullable(Float64),
            extra          String,
            quality_flag   LowCardinality(String)
        ) ENGINE = ReplacingMergeTree(collected_at)
        ORDER BY (asset_class, instrument_id, observed_at)
    `, s.fqTable()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init observation schema: %w", err)
		}
	}
	return nil
}

// Upsert applies a batch with last-write-wins semantics. Existing versions of
// the batch keys are read first to decide which rows actually land and to
// count conflicts; the surviving rows go in as one atomic INSERT.
func (s *CHObservationStore) Upsert(ctx context.Context, records []models.StoredRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	start := time.Now()

	s.upsertMu.Lock()
	defer s.upsertMu.Unlock()

	existing, err := s.existingVersions(ctx, records)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: read batch versions: %s", ErrStoreUnavailable, err)
	}

	var written, conflicts int
	toInsert := make([]models.StoredRecord, 0, len(records))
	for i := range records {
		rec := records[i]
		prior, ok := existing[rec.Key()]
		if !ok {
			toInsert = append(toInsert, rec)
			written++
			continue
		}
		conflicts++
		if rec.CollectedAt.After(prior) {
			toInsert = append(toInsert, rec)
			written++
		}
	}

	if len(toInsert) > 0 {
		if err := s.insertBatch(ctx, toInsert); err != nil {
			return 0, 0, fmt.Errorf("%w: insert batch: %s", ErrStoreUnavailable, err)
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse upsert ok",
			applogger.Int("batch", len(records)),
			applogger.Int("written", written),
			applogger.Int("conflicts", conflicts),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return written, conflicts, nil
}

// existingVersions maps batch keys already present in the table to their
// stored collected_at.
func (s *CHObservationStore) existingVersions(ctx context.Context, records []models.StoredRecord) (map[string]time.Time, error) {
	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*3)
	for i := range records {
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, string(records[i].AssetClass), records[i].InstrumentID, records[i].ObservedAt.UTC())
	}

	q := fmt.Sprintf(`
        SELECT asset_class, instrument_id, observed_at, collected_at
        FROM %s FINAL
        WHERE (asset_class, instrument_id, observed_at) IN (%s)
    `, s.fqTable(), strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]time.Time)
	for rows.Next() {
		var class, instrument string
		var observedAt, collectedAt time.Time
		if err := rows.Scan(&class, &instrument, &observedAt, &collectedAt); err != nil {
			return nil, err
		}
		key := (&models.StoredRecord{MarketObservation: models.MarketObservation{
			AssetClass:   models.AssetClass(class),
			InstrumentID: instrument,
			ObservedAt:   observedAt,
		}}).Key()
		existing[key] = collectedAt
	}
	return existing, rows.Err()
}

func (s *CHObservationStore) insertBatch(ctx context.Context, records []models.StoredRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
        INSERT INTO %s (
            asset_class, instrument_id, observed_at, collected_at, price,
            open_price, high_price, low_price, volume, market_cap,
            change_pct_24h, extra, quality_flag
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.fqTable())

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		rec := records[i]
		extra := ""
		if len(rec.Extra) > 0 {
			b, err := json.Marshal(rec.Extra)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("marshal extra: %w", err)
			}
			extra = string(b)
		}
		if _, err := stmt.ExecContext(ctx,
			string(rec.AssetClass), rec.InstrumentID,
			rec.ObservedAt.UTC(), rec.CollectedAt.UTC(), rec.Price,
			optFloat(rec.Open), optFloat(rec.High), optFloat(rec.Low),
			optFloat(rec.Volume), optFloat(rec.MarketCap), optFloat(rec.Change24h),
			extra, rec.QualityFlag,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const selectColumns = `
    asset_class, instrument_id, observed_at, collected_at, price,
    open_price, high_price, low_price, volume, market_cap,
    change_pct_24h, extra, quality_flag`

// Latest returns the newest observation for an instrument, or nil when the
// instrument has no rows.
func (s *CHObservationStore) Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	return s.latestWhere(ctx, class, instrument, "")
}

// LatestAccepted returns the newest observation without a quality flag. The
// price-jump anchor comes from here, so flagged rows never shift it.
func (s *CHObservationStore) LatestAccepted(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	return s.latestWhere(ctx, class, instrument, "AND quality_flag = ''")
}

func (s *CHObservationStore) latestWhere(ctx context.Context, class models.AssetClass, instrument, extraCond string) (*models.StoredRecord, error) {
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE asset_class = ? AND instrument_id = ? %s
        ORDER BY observed_at DESC
        LIMIT 1
    `, selectColumns, s.fqTable(), extraCond)

	rows, err := s.db.QueryContext(ctx, q, string(class), instrument)
	if err != nil {
		return nil, fmt.Errorf("latest observation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("scan observation: %w", err)
	}
	return rec, rows.Err()
}

// Range returns observations in [from, to] ordered by observed_at ascending.
func (s *CHObservationStore) Range(ctx context.Context, class models.AssetClass, instrument string, from, to time.Time) ([]models.StoredRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT %s
        FROM %s FINAL
        WHERE asset_class = ? AND instrument_id = ?
          AND observed_at >= ? AND observed_at <= ?
        ORDER BY observed_at ASC
    `, selectColumns, s.fqTable())

	rows, err := s.db.QueryContext(ctx, q, string(class), instrument, from.UTC(), to.UTC())
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse range query error",
				applogger.String("instrument", instrument),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("range observations: %w", err)
	}
	defer rows.Close()

	out := make([]models.StoredRecord, 0, 256)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse range ok",
			applogger.String("instrument", instrument),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// Counts returns stored row counts per asset class.
func (s *CHObservationStore) Counts(ctx context.Context) (map[models.AssetClass]int64, error) {
	q := fmt.Sprintf(`
        SELECT asset_class, count()
        FROM %s FINAL
        GROUP BY asset_class
    `, s.fqTable())

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AssetClass]int64)
	for rows.Next() {
		var class string
		var n int64
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.AssetClass(class)] = n
	}
	return counts, rows.Err()
}

func (s *CHObservationStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHObservationStore) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (*models.StoredRecord, error) {
	var rec models.StoredRecord
	var class, extra string
	var open, high, low, volume, marketCap, change sql.NullFloat64

	if err := rows.Scan(
		&class, &rec.InstrumentID, &rec.ObservedAt, &rec.CollectedAt, &rec.Price,
		&open, &high, &low, &volume, &marketCap, &change,
		&extra, &rec.QualityFlag,
	); err != nil {
		return nil, err
	}

	rec.AssetClass = models.AssetClass(class)
	rec.Open = nullFloat(open)
	rec.High = nullFloat(high)
	rec.Low = nullFloat(low)
	rec.Volume = nullFloat(volume)
	rec.MarketCap = nullFloat(marketCap)
	rec.Change24h = nullFloat(change)
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &rec.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	return &rec, nil
}

func optFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
