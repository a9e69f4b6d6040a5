package normalize

import (
	"fmt"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/util"
)

// ForexNormalizer maps exchange-rate payloads to canonical observations.
// The instrument id is the "BASE/TARGET" pair.
type ForexNormalizer struct{}

func (ForexNormalizer) Class() models.AssetClass { return models.AssetForex }

func (ForexNormalizer) Normalize(payload models.RawPayload) (*models.MarketObservation, error) {
	rate, ok := payload.(*models.ForexRate)
	if !ok {
		return nil, wrongVariant(models.AssetForex, payload)
	}
	if rate.Base == "" || rate.Target == "" {
		return nil, fmt.Errorf("%w: rate has no base/target", ErrMalformedPayload)
	}

	// Rate tables are published per day. Anchor to midnight UTC of the
	// published date when present, otherwise to the fetch time.
	observedAt := rate.FetchedAt
	if day, ok := util.ParseDay(rate.RateDate); ok {
		observedAt = day
	}

	return &models.MarketObservation{
		InstrumentID: rate.Base + "/" + rate.Target,
		AssetClass:   models.AssetForex,
		ObservedAt:   observedAt,
		CollectedAt:  rate.FetchedAt,
		Price:        rate.Rate,
		Extra: map[string]string{
			"base":   rate.Base,
			"target": rate.Target,
		},
	}, nil
}
