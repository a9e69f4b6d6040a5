package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/normalize"
	"MarketPull/internal/repository"
	"MarketPull/internal/validate"
	"MarketPull/pkg/logger"
)

// ErrRunInProgress is returned when a run is triggered while another one is
// still active. Overlapping runs would double-spend source budgets.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// History is the validator's read path plus the refresh hook the loading
// phase uses to keep it warm.
type History interface {
	drepo.History
	Put(ctx context.Context, rec *models.StoredRecord)
}

// RunnerConfig holds the per-run wiring.
type RunnerConfig struct {
	// Instruments maps each asset class to the universe fetched for it.
	Instruments map[models.AssetClass][]string
	// BatchSize chunks the loading phase's upserts.
	BatchSize int
}

// Runner drives one extract-normalize-validate-load pass over all configured
// sources. Sources are fetched concurrently; the later phases run once every
// source has reported in.
type Runner struct {
	cfg       RunnerConfig
	sources   []drepo.Source
	validator *validate.Validator
	store     drepo.Store
	history   History
	publisher drepo.Publisher
	metrics   drepo.Metrics
	log       *logger.Logger

	mu      sync.Mutex
	running bool
}

// NewRunner creates a pipeline runner. publisher may be nil.
func NewRunner(
	cfg RunnerConfig,
	sources []drepo.Source,
	validator *validate.Validator,
	store drepo.Store,
	history History,
	publisher drepo.Publisher,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Runner{
		cfg:       cfg,
		sources:   sources,
		validator: validator,
		store:     store,
		history:   history,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
	}
}

type sourceBatch struct {
	class    models.AssetClass
	payloads []models.RawPayload
}

// Run executes one full pipeline pass and returns its summary. Cancellation
// aborts the run cleanly: the summary comes back in the aborted phase with a
// nil error. A store failure during loading aborts the run with an error the
// scheduler must see.
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrRunInProgress
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	classes := make([]models.AssetClass, 0, len(r.sources))
	for _, src := range r.sources {
		classes = append(classes, src.Class())
	}
	summary := models.NewRunSummary(classes...)
	r.log.Info("pipeline run started", logger.Int("sources", len(r.sources)))

	batches := r.extract(ctx, summary)
	if aborted(ctx, summary) {
		r.finish(summary)
		return summary, nil
	}

	observations := r.normalizeAll(summary, batches)
	if aborted(ctx, summary) {
		r.finish(summary)
		return summary, nil
	}

	storable := r.validateAll(ctx, summary, observations)
	if aborted(ctx, summary) {
		r.finish(summary)
		return summary, nil
	}

	if err := r.load(ctx, summary, storable); err != nil {
		summary.Phase = models.PhaseAborted
		r.finish(summary)
		return summary, err
	}
	if aborted(ctx, summary) {
		r.finish(summary)
		return summary, nil
	}

	r.publish(ctx, storable)

	summary.Phase = models.PhaseCompleted
	r.finish(summary)
	return summary, nil
}

// extract fans out one goroutine per source and waits for all of them. Source
// fetches never fail as a whole, so the group only stops early on ctx
// cancellation.
func (r *Runner) extract(ctx context.Context, summary *models.RunSummary) []sourceBatch {
	summary.Phase = models.PhaseExtracting
	start := time.Now()

	results := make([]sourceBatch, len(r.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range r.sources {
		g.Go(func() error {
			class := src.Class()
			payloads, srcErrs := src.Fetch(gctx, r.cfg.Instruments[class])
			results[i] = sourceBatch{class: class, payloads: payloads}

			stats := summary.Stats(class)
			stats.Fetched = len(payloads)
			for _, se := range srcErrs {
				stats.Errors = append(stats.Errors, se.Error())
			}
			r.metrics.RecordFetched(string(class), len(payloads))
			if len(srcErrs) > 0 {
				r.metrics.RecordError("source_" + string(class))
			}
			r.log.Info("source extracted",
				logger.String("source", string(class)),
				logger.Int("payloads", len(payloads)),
				logger.Int("errors", len(srcErrs)))
			return gctx.Err()
		})
	}
	_ = g.Wait()

	r.metrics.RecordPhaseDuration(string(models.PhaseExtracting), time.Since(start).Seconds())
	return results
}

// normalizeAll maps raw payloads to canonical observations. A payload the
// normalizer cannot map is recorded and dropped before validation.
func (r *Runner) normalizeAll(summary *models.RunSummary, batches []sourceBatch) []*models.MarketObservation {
	summary.Phase = models.PhaseNormalizing
	start := time.Now()

	var observations []*models.MarketObservation
	for _, batch := range batches {
		normalizer, err := normalize.ForClass(batch.class)
		if err != nil {
			summary.Stats(batch.class).Errors = append(summary.Stats(batch.class).Errors, err.Error())
			continue
		}
		stats := summary.Stats(batch.class)
		for _, payload := range batch.payloads {
			obs, err := normalizer.Normalize(payload)
			if err != nil {
				stats.Errors = append(stats.Errors, err.Error())
				r.metrics.RecordError("malformed_payload")
				r.log.Warn("payload dropped",
					logger.String("source", string(batch.class)),
					logger.Error(err))
				continue
			}
			stats.Normalized++
			observations = append(observations, obs)
		}
	}

	r.metrics.RecordPhaseDuration(string(models.PhaseNormalizing), time.Since(start).Seconds())
	return observations
}

// validateAll classifies every observation and turns the storable ones into
// records, annotating flagged records with their reason.
func (r *Runner) validateAll(ctx context.Context, summary *models.RunSummary, observations []*models.MarketObservation) []models.StoredRecord {
	summary.Phase = models.PhaseValidating
	start := time.Now()

	storable := make([]models.StoredRecord, 0, len(observations))
	for _, obs := range observations {
		outcome := r.validator.Validate(ctx, obs, r.history)
		stats := summary.Stats(obs.AssetClass)

		r.metrics.RecordOutcome(string(obs.AssetClass), string(outcome.Verdict), 1)
		switch outcome.Verdict {
		case models.VerdictAccepted:
			stats.Accepted++
			r.metrics.RecordLastPrice(obs.InstrumentID, obs.Price)
		case models.VerdictFlagged:
			stats.Flagged++
			r.log.Warn("observation flagged",
				logger.String("instrument", obs.InstrumentID),
				logger.String("reason", outcome.Reason))
		case models.VerdictRejected:
			stats.Rejected++
			continue
		}

		storable = append(storable, models.StoredRecord{
			MarketObservation: *obs,
			QualityFlag:       outcome.Reason,
		})
	}

	r.metrics.RecordPhaseDuration(string(models.PhaseValidating), time.Since(start).Seconds())
	return storable
}

// load upserts storable records in batches and refreshes the history cache.
// A store failure is fatal to the run.
func (r *Runner) load(ctx context.Context, summary *models.RunSummary, records []models.StoredRecord) error {
	summary.Phase = models.PhaseLoading
	start := time.Now()

	for offset := 0; offset < len(records); offset += r.cfg.BatchSize {
		end := offset + r.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		written, conflicts, err := r.store.Upsert(ctx, records[offset:end])
		if err != nil {
			r.metrics.RecordError("store_upsert")
			if !errors.Is(err, repository.ErrStoreUnavailable) {
				err = fmt.Errorf("%w: %s", repository.ErrStoreUnavailable, err)
			}
			return err
		}
		summary.Written += written
		summary.Conflicts += conflicts
	}

	if r.history != nil {
		for i := range records {
			r.history.Put(ctx, &records[i])
		}
	}

	r.metrics.RecordPhaseDuration(string(models.PhaseLoading), time.Since(start).Seconds())
	return nil
}

// publish pushes the loaded batch downstream, best effort. A broker outage
// does not fail an otherwise clean run.
func (r *Runner) publish(ctx context.Context, records []models.StoredRecord) {
	if r.publisher == nil || len(records) == 0 {
		return
	}
	if err := r.publisher.PublishBatch(ctx, records); err != nil {
		r.metrics.RecordError("publish")
		r.log.Error("publish failed", logger.Error(err))
	}
}

func (r *Runner) finish(summary *models.RunSummary) {
	summary.FinishedAt = time.Now().UTC()
	r.log.Info("pipeline run finished",
		logger.String("phase", string(summary.Phase)),
		logger.Int("fetched", summary.TotalFetched()),
		logger.Int("written", summary.Written),
		logger.Int("conflicts", summary.Conflicts),
		logger.Duration("duration_ms", summary.FinishedAt.Sub(summary.StartedAt)))
}

func aborted(ctx context.Context, summary *models.RunSummary) bool {
	if ctx.Err() != nil {
		summary.Phase = models.PhaseAborted
		return true
	}
	return false
}
