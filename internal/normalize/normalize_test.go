package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPull/internal/domain/models"
)

var fetchedAt = time.Date(2024, 1, 5, 21, 3, 17, 0, time.UTC)

func TestEquityNormalize(t *testing.T) {
	obs, err := EquityNormalizer{}.Normalize(&models.EquityQuote{
		Symbol:           "IBM",
		Price:            "188.0000",
		Open:             "187.1500",
		High:             "189.7800",
		Low:              "185.9200",
		Volume:           "4021500",
		LatestTradingDay: "2024-01-05",
		PreviousClose:    "186.0000",
		Change:           "2.0000",
		ChangePercent:    "1.0753%",
		FetchedAt:        fetchedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "IBM", obs.InstrumentID)
	assert.Equal(t, models.AssetEquity, obs.AssetClass)
	assert.Equal(t, 188.0, obs.Price)
	require.NotNil(t, obs.Open)
	assert.Equal(t, 187.15, *obs.Open)
	require.NotNil(t, obs.Volume)
	assert.Equal(t, 4021500.0, *obs.Volume)

	// Observation anchors to the trading day, collection to the fetch.
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), obs.ObservedAt)
	assert.Equal(t, fetchedAt, obs.CollectedAt)

	assert.Equal(t, "186.0000", obs.Extra["previous_close"])
	assert.Equal(t, "1.0753", obs.Extra["change_percent"])

	assert.NoError(t, obs.Invariant(2*time.Minute))
}

func TestEquityNormalizeOptionalFieldsAbsent(t *testing.T) {
	obs, err := EquityNormalizer{}.Normalize(&models.EquityQuote{
		Symbol:    "IBM",
		Price:     "188.0000",
		FetchedAt: fetchedAt,
	})
	require.NoError(t, err)
	assert.Nil(t, obs.Open)
	assert.Nil(t, obs.High)
	assert.Nil(t, obs.Volume)
	assert.Equal(t, fetchedAt, obs.ObservedAt)
	assert.Nil(t, obs.Extra)
}

func TestEquityNormalizeMalformedPrice(t *testing.T) {
	_, err := EquityNormalizer{}.Normalize(&models.EquityQuote{
		Symbol:    "IBM",
		Price:     "not-a-number",
		FetchedAt: fetchedAt,
	})
	assert.True(t, errors.Is(err, ErrMalformedPayload))

	_, err = EquityNormalizer{}.Normalize(&models.EquityQuote{
		Symbol:    "IBM",
		Price:     "188.00",
		Open:      "garbage",
		FetchedAt: fetchedAt,
	})
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func ptr(v float64) *float64 { return &v }

func TestCryptoNormalize(t *testing.T) {
	obs, err := CryptoNormalizer{}.Normalize(&models.CryptoCoin{
		ID:           "bitcoin",
		Name:         "Bitcoin",
		PriceUSD:     ptr(43250.5),
		MarketCapUSD: ptr(847e9),
		Volume24hUSD: ptr(21e9),
		Change24hPct: ptr(2.35),
		FetchedAt:    fetchedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "bitcoin", obs.InstrumentID)
	assert.Equal(t, models.AssetCrypto, obs.AssetClass)
	assert.Equal(t, 43250.5, obs.Price)
	assert.Equal(t, fetchedAt, obs.ObservedAt)
	assert.Equal(t, fetchedAt, obs.CollectedAt)
	require.NotNil(t, obs.MarketCap)
	assert.Equal(t, 847e9, *obs.MarketCap)
	assert.Equal(t, "Bitcoin", obs.Extra["name"])

	assert.NoError(t, obs.Invariant(2*time.Minute))
}

func TestCryptoNormalizeMissingPrice(t *testing.T) {
	_, err := CryptoNormalizer{}.Normalize(&models.CryptoCoin{
		ID:        "bitcoin",
		FetchedAt: fetchedAt,
	})
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestForexNormalize(t *testing.T) {
	obs, err := ForexNormalizer{}.Normalize(&models.ForexRate{
		Base:      "USD",
		Target:    "EUR",
		Rate:      0.9132,
		RateDate:  "2024-01-05",
		FetchedAt: fetchedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "USD/EUR", obs.InstrumentID)
	assert.Equal(t, models.AssetForex, obs.AssetClass)
	assert.Equal(t, 0.9132, obs.Price)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), obs.ObservedAt)
	assert.Equal(t, "USD", obs.Extra["base"])
	assert.Equal(t, "EUR", obs.Extra["target"])

	assert.NoError(t, obs.Invariant(2*time.Minute))
}

func TestForexNormalizeNoDateFallsBackToFetchTime(t *testing.T) {
	obs, err := ForexNormalizer{}.Normalize(&models.ForexRate{
		Base:      "USD",
		Target:    "JPY",
		Rate:      144.72,
		FetchedAt: fetchedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, fetchedAt, obs.ObservedAt)
}

func TestForClass(t *testing.T) {
	for _, class := range []models.AssetClass{models.AssetEquity, models.AssetCrypto, models.AssetForex} {
		n, err := ForClass(class)
		require.NoError(t, err)
		assert.Equal(t, class, n.Class())
	}
	_, err := ForClass("bonds")
	assert.Error(t, err)
}

func TestNormalizeWrongVariant(t *testing.T) {
	_, err := EquityNormalizer{}.Normalize(&models.ForexRate{Base: "USD", Target: "EUR", Rate: 1})
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}
