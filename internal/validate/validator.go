package validate

import (
	"context"
	"math"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/pkg/logger"
)

// Config holds the data-quality thresholds.
type Config struct {
	// ClockSkew is how far observed_at may run ahead of collected_at before
	// the record is structurally invalid.
	ClockSkew time.Duration
	// Lookback bounds how old a prior observation may be and still anchor
	// the price-jump comparison.
	Lookback time.Duration
	// JumpThresholds maps asset class to the relative price change above
	// which a record is flagged, e.g. 0.20 for 20%.
	JumpThresholds map[models.AssetClass]float64
}

// Validator classifies canonical observations as accepted, flagged, or
// rejected. Rules run in a fixed order and the first rejection wins; the
// price-jump rule can only flag, never reject.
type Validator struct {
	cfg Config
	log *logger.Logger
}

// New creates a validator.
func New(cfg Config, log *logger.Logger) *Validator {
	return &Validator{cfg: cfg, log: log}
}

// Validate classifies one observation. history supplies the prior accepted
// observation anchoring the price-jump comparison; a history read failure
// skips that rule rather than failing the record.
func (v *Validator) Validate(ctx context.Context, obs *models.MarketObservation, history drepo.History) models.ValidationOutcome {
	if err := obs.Invariant(v.cfg.ClockSkew); err != nil {
		v.log.Debug("observation rejected",
			logger.String("instrument", obs.InstrumentID),
			logger.String("reason", models.ReasonStructural),
			logger.Error(err))
		return models.Rejected(models.ReasonStructural)
	}

	if obs.Price <= 0 {
		return models.Rejected(models.ReasonNonPositivePrice)
	}

	if obs.AssetClass == models.AssetEquity && !ohlcOrdered(obs) {
		return models.Rejected(models.ReasonOHLCOrder)
	}

	if v.priceJumped(ctx, obs, history) {
		return models.Flagged(models.ReasonPriceJump)
	}

	return models.Accepted()
}

// ohlcOrdered checks low <= {open, price} <= high for whichever of the OHLC
// fields are present.
func ohlcOrdered(obs *models.MarketObservation) bool {
	if obs.High != nil {
		if obs.Price > *obs.High {
			return false
		}
		if obs.Open != nil && *obs.Open > *obs.High {
			return false
		}
		if obs.Low != nil && *obs.Low > *obs.High {
			return false
		}
	}
	if obs.Low != nil {
		if obs.Price < *obs.Low {
			return false
		}
		if obs.Open != nil && *obs.Open < *obs.Low {
			return false
		}
	}
	return true
}

func (v *Validator) priceJumped(ctx context.Context, obs *models.MarketObservation, history drepo.History) bool {
	threshold, ok := v.cfg.JumpThresholds[obs.AssetClass]
	if !ok || threshold <= 0 || history == nil {
		return false
	}

	prior, err := history.Latest(ctx, obs.AssetClass, obs.InstrumentID)
	if err != nil {
		v.log.Warn("history lookup failed, skipping price-jump check",
			logger.String("instrument", obs.InstrumentID),
			logger.Error(err))
		return false
	}
	if prior == nil || prior.Price <= 0 {
		return false
	}
	if v.cfg.Lookback > 0 {
		age := obs.ObservedAt.Sub(prior.ObservedAt)
		if age < 0 {
			age = -age
		}
		if age > v.cfg.Lookback {
			return false
		}
	}

	change := math.Abs(obs.Price-prior.Price) / prior.Price
	return change > threshold
}
