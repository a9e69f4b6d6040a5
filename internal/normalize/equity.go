package normalize

import (
	"fmt"
	"strings"

	"MarketPull/internal/domain/models"
	"MarketPull/pkg/util"
)

// EquityNormalizer maps quote-snapshot payloads to canonical observations.
// All numeric fields arrive as wire strings and are parsed here; price is
// required, the OHLC and volume fields are optional.
type EquityNormalizer struct{}

func (EquityNormalizer) Class() models.AssetClass { return models.AssetEquity }

func (EquityNormalizer) Normalize(payload models.RawPayload) (*models.MarketObservation, error) {
	quote, ok := payload.(*models.EquityQuote)
	if !ok {
		return nil, wrongVariant(models.AssetEquity, payload)
	}
	if quote.Symbol == "" {
		return nil, fmt.Errorf("%w: quote has no symbol", ErrMalformedPayload)
	}

	price, err := parseFloat("price", quote.Price)
	if err != nil {
		return nil, err
	}
	open, err := parseOptFloat("open", quote.Open)
	if err != nil {
		return nil, err
	}
	high, err := parseOptFloat("high", quote.High)
	if err != nil {
		return nil, err
	}
	low, err := parseOptFloat("low", quote.Low)
	if err != nil {
		return nil, err
	}
	volume, err := parseOptFloat("volume", quote.Volume)
	if err != nil {
		return nil, err
	}

	// Daily snapshots carry a trading day, not a timestamp. Pin the
	// observation to midnight UTC of that day; without one, the fetch time
	// is the best anchor available.
	observedAt := quote.FetchedAt
	if day, ok := util.ParseDay(quote.LatestTradingDay); ok {
		observedAt = day
	}

	extra := make(map[string]string)
	for key, value := range map[string]string{
		"previous_close": quote.PreviousClose,
		"change":         quote.Change,
		"change_percent": strings.TrimSuffix(quote.ChangePercent, "%"),
	} {
		if value != "" {
			extra[key] = value
		}
	}
	if len(extra) == 0 {
		extra = nil
	}

	return &models.MarketObservation{
		InstrumentID: quote.Symbol,
		AssetClass:   models.AssetEquity,
		ObservedAt:   observedAt,
		CollectedAt:  quote.FetchedAt,
		Price:        price,
		Open:         open,
		High:         high,
		Low:          low,
		Volume:       volume,
		Extra:        extra,
	}, nil
}
