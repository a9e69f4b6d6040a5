package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPull/internal/domain/models"
	"MarketPull/internal/repository"
	"MarketPull/pkg/cache"
	"MarketPull/pkg/logger"
)

type stubHistory struct {
	record *models.StoredRecord
	err    error
}

func (h *stubHistory) Latest(ctx context.Context, class models.AssetClass, instrument string) (*models.StoredRecord, error) {
	return h.record, h.err
}

func ptr(v float64) *float64 { return &v }

func testValidator() *Validator {
	return New(Config{
		ClockSkew: 2 * time.Minute,
		Lookback:  24 * time.Hour,
		JumpThresholds: map[models.AssetClass]float64{
			models.AssetEquity: 0.20,
			models.AssetCrypto: 0.50,
			models.AssetForex:  0.20,
		},
	}, logger.Nop())
}

var observedAt = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

func equityObs(price float64) *models.MarketObservation {
	return &models.MarketObservation{
		InstrumentID: "IBM",
		AssetClass:   models.AssetEquity,
		ObservedAt:   observedAt,
		CollectedAt:  observedAt.Add(21 * time.Hour),
		Price:        price,
	}
}

func TestValidateAcceptsCleanObservation(t *testing.T) {
	out := testValidator().Validate(context.Background(), equityObs(188.0), &stubHistory{})
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
	assert.True(t, out.Storable())
}

func TestValidateRejectsStructuralViolations(t *testing.T) {
	v := testValidator()

	obs := equityObs(188.0)
	obs.InstrumentID = ""
	out := v.Validate(context.Background(), obs, nil)
	assert.Equal(t, models.Rejected(models.ReasonStructural), out)

	// observed_at far ahead of collected_at
	obs = equityObs(188.0)
	obs.ObservedAt = obs.CollectedAt.Add(10 * time.Minute)
	out = v.Validate(context.Background(), obs, nil)
	assert.Equal(t, models.Rejected(models.ReasonStructural), out)
}

func TestValidateRejectsNonPositivePrice(t *testing.T) {
	v := testValidator()

	out := v.Validate(context.Background(), equityObs(0), nil)
	assert.Equal(t, models.Rejected(models.ReasonNonPositivePrice), out)

	out = v.Validate(context.Background(), equityObs(-3.5), nil)
	assert.Equal(t, models.Rejected(models.ReasonNonPositivePrice), out)
}

func TestValidateRejectsOHLCViolations(t *testing.T) {
	v := testValidator()

	obs := equityObs(188.0)
	obs.Open = ptr(187.15)
	obs.High = ptr(189.78)
	obs.Low = ptr(185.92)
	out := v.Validate(context.Background(), obs, &stubHistory{})
	assert.Equal(t, models.VerdictAccepted, out.Verdict)

	// price above high
	obs = equityObs(191.0)
	obs.High = ptr(189.78)
	obs.Low = ptr(185.92)
	out = v.Validate(context.Background(), obs, nil)
	assert.Equal(t, models.Rejected(models.ReasonOHLCOrder), out)

	// open below low
	obs = equityObs(188.0)
	obs.Open = ptr(185.00)
	obs.High = ptr(189.78)
	obs.Low = ptr(185.92)
	out = v.Validate(context.Background(), obs, nil)
	assert.Equal(t, models.Rejected(models.ReasonOHLCOrder), out)
}

func TestValidateOHLCRuleIsEquityOnly(t *testing.T) {
	obs := &models.MarketObservation{
		InstrumentID: "bitcoin",
		AssetClass:   models.AssetCrypto,
		ObservedAt:   observedAt,
		CollectedAt:  observedAt,
		Price:        200.0,
		High:         ptr(150.0),
	}
	out := testValidator().Validate(context.Background(), obs, &stubHistory{})
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
}

func prior(class models.AssetClass, instrument string, price float64, age time.Duration) *models.StoredRecord {
	return &models.StoredRecord{MarketObservation: models.MarketObservation{
		InstrumentID: instrument,
		AssetClass:   class,
		ObservedAt:   observedAt.Add(-age),
		CollectedAt:  observedAt.Add(-age),
		Price:        price,
	}}
}

func TestValidateFlagsPriceJump(t *testing.T) {
	v := testValidator()
	hist := &stubHistory{record: prior(models.AssetEquity, "IBM", 100.0, time.Hour)}

	// 25% move over a 20% threshold flags, never rejects.
	out := v.Validate(context.Background(), equityObs(125.0), hist)
	assert.Equal(t, models.Flagged(models.ReasonPriceJump), out)
	assert.True(t, out.Storable())

	// 15% move passes.
	out = v.Validate(context.Background(), equityObs(115.0), hist)
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
}

func TestValidatePriceJumpThresholdPerClass(t *testing.T) {
	v := testValidator()
	hist := &stubHistory{record: prior(models.AssetCrypto, "bitcoin", 100.0, time.Hour)}

	obs := &models.MarketObservation{
		InstrumentID: "bitcoin",
		AssetClass:   models.AssetCrypto,
		ObservedAt:   observedAt,
		CollectedAt:  observedAt,
		Price:        140.0,
	}
	// 40% is inside the crypto threshold of 50%.
	out := v.Validate(context.Background(), obs, hist)
	assert.Equal(t, models.VerdictAccepted, out.Verdict)

	obs.Price = 160.0
	out = v.Validate(context.Background(), obs, hist)
	assert.Equal(t, models.Flagged(models.ReasonPriceJump), out)
}

func TestValidatePriceJumpIgnoresStalePrior(t *testing.T) {
	hist := &stubHistory{record: prior(models.AssetEquity, "IBM", 100.0, 48*time.Hour)}
	out := testValidator().Validate(context.Background(), equityObs(125.0), hist)
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
}

func TestValidatePriceJumpAnchorsOnAcceptedPrior(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	// A flagged jump sits in front of the clean anchor; the comparison must
	// still run against the accepted price, not go quiet.
	anchor := prior(models.AssetEquity, "IBM", 100.0, 2*time.Hour)
	jump := prior(models.AssetEquity, "IBM", 125.0, time.Hour)
	jump.QualityFlag = models.ReasonPriceJump
	_, _, err := store.Upsert(ctx, []models.StoredRecord{*anchor, *jump})
	require.NoError(t, err)

	hist := repository.NewCachedHistory(cache.NewMemoryCache(), store, time.Hour)

	// 30% over the accepted anchor, threshold 20%.
	out := testValidator().Validate(ctx, equityObs(130.0), hist)
	assert.Equal(t, models.Flagged(models.ReasonPriceJump), out)

	// 15% over the anchor still passes.
	out = testValidator().Validate(ctx, equityObs(115.0), hist)
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
}

func TestValidateHistoryFailureSkipsJumpRule(t *testing.T) {
	hist := &stubHistory{err: errors.New("cache down")}
	out := testValidator().Validate(context.Background(), equityObs(125.0), hist)
	assert.Equal(t, models.VerdictAccepted, out.Verdict)
}
