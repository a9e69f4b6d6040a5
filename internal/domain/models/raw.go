package models

import "time"

// RawPayload is the tagged-variant shape source clients hand to the
// normalizers. Each variant carries only the fields its upstream actually
// returns; the paired normalizer is the sole consumer of a variant.
type RawPayload interface {
	Class() AssetClass
	// Collected reports when the pipeline fetched the payload.
	Collected() time.Time
}

// EquityQuote is one Alpha Vantage style GLOBAL_QUOTE payload. Numeric fields
// stay as the wire strings; parsing them is the normalizer's job.
type EquityQuote struct {
	Symbol           string
	Price            string
	Open             string
	High             string
	Low              string
	Volume           string
	LatestTradingDay string
	PreviousClose    string
	Change           string
	ChangePercent    string
	FetchedAt        time.Time
}

func (q *EquityQuote) Class() AssetClass    { return AssetEquity }
func (q *EquityQuote) Collected() time.Time { return q.FetchedAt }

// CryptoCoin is one coin object out of a CoinGecko batch price response.
// Pointers distinguish "field absent" from zero.
type CryptoCoin struct {
	ID           string
	Name         string
	PriceUSD     *float64
	MarketCapUSD *float64
	Volume24hUSD *float64
	Change24hPct *float64
	FetchedAt    time.Time
}

func (c *CryptoCoin) Class() AssetClass    { return AssetCrypto }
func (c *CryptoCoin) Collected() time.Time { return c.FetchedAt }

// ForexRate is a single base/target exchange rate.
type ForexRate struct {
	Base      string
	Target    string
	Rate      float64
	RateDate  string // upstream "date" field, YYYY-MM-DD, may be empty
	FetchedAt time.Time
}

func (f *ForexRate) Class() AssetClass    { return AssetForex }
func (f *ForexRate) Collected() time.Time { return f.FetchedAt }

// SourceError is a per-instrument extraction failure. Partial success is the
// normal case for a batch fetch, so these are data, not control flow.
type SourceError struct {
	InstrumentID string
	Err          error
}

func (e SourceError) Error() string {
	if e.InstrumentID == "" {
		return e.Err.Error()
	}
	return e.InstrumentID + ": " + e.Err.Error()
}

func (e SourceError) Unwrap() error { return e.Err }
