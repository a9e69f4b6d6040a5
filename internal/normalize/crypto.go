package normalize

import (
	"fmt"

	"MarketPull/internal/domain/models"
)

// CryptoNormalizer maps batch spot-price payloads to canonical observations.
// The upstream timestamps nothing, so observations are anchored to the fetch
// time.
type CryptoNormalizer struct{}

func (CryptoNormalizer) Class() models.AssetClass { return models.AssetCrypto }

func (CryptoNormalizer) Normalize(payload models.RawPayload) (*models.MarketObservation, error) {
	coin, ok := payload.(*models.CryptoCoin)
	if !ok {
		return nil, wrongVariant(models.AssetCrypto, payload)
	}
	if coin.ID == "" {
		return nil, fmt.Errorf("%w: coin has no id", ErrMalformedPayload)
	}
	if coin.PriceUSD == nil {
		return nil, fmt.Errorf("%w: coin %s has no usd price", ErrMalformedPayload, coin.ID)
	}

	var extra map[string]string
	if coin.Name != "" && coin.Name != coin.ID {
		extra = map[string]string{"name": coin.Name}
	}

	return &models.MarketObservation{
		InstrumentID: coin.ID,
		AssetClass:   models.AssetCrypto,
		ObservedAt:   coin.FetchedAt,
		CollectedAt:  coin.FetchedAt,
		Price:        *coin.PriceUSD,
		Volume:       coin.Volume24hUSD,
		MarketCap:    coin.MarketCapUSD,
		Change24h:    coin.Change24hPct,
		Extra:        extra,
	}, nil
}
