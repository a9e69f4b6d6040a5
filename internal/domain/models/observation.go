package models

import (
	"fmt"
	"math"
	"time"
)

// AssetClass identifies the market segment an instrument belongs to.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetCrypto AssetClass = "crypto"
	AssetForex  AssetClass = "forex"
)

// Valid reports whether the asset class is one of the known segments.
func (a AssetClass) Valid() bool {
	switch a {
	case AssetEquity, AssetCrypto, AssetForex:
		return true
	}
	return false
}

// MarketObservation is the canonical, source-agnostic record every upstream
// payload is normalized into. Optional fields are pointers: nil means the
// source does not supply the value for this asset class.
type MarketObservation struct {
	InstrumentID string     `json:"instrument_id"`
	AssetClass   AssetClass `json:"asset_class"`
	ObservedAt   time.Time  `json:"observed_at"`
	CollectedAt  time.Time  `json:"collected_at"`

	// Price is the last traded price for equity/crypto and the exchange
	// rate for forex.
	Price float64 `json:"price"`

	Open   *float64 `json:"open_price,omitempty"`
	High   *float64 `json:"high_price,omitempty"`
	Low    *float64 `json:"low_price,omitempty"`
	Volume *float64 `json:"volume,omitempty"`

	MarketCap *float64 `json:"market_cap,omitempty"`
	Change24h *float64 `json:"change_pct_24h,omitempty"`

	// Extra carries source attributes not promoted to first-class fields
	// (crypto display name, equity previous close, ...).
	Extra map[string]string `json:"extra,omitempty"`
}

// Invariant checks the construction invariants of the canonical record:
// identity fields present, observed_at not ahead of collected_at beyond the
// clock-skew tolerance, numeric fields finite and correctly signed.
// OHLC ordering is a validator rule, not a construction invariant.
func (o *MarketObservation) Invariant(clockSkew time.Duration) error {
	if o.InstrumentID == "" {
		return fmt.Errorf("instrument_id is empty")
	}
	if !o.AssetClass.Valid() {
		return fmt.Errorf("unknown asset class %q", o.AssetClass)
	}
	if o.ObservedAt.IsZero() || o.CollectedAt.IsZero() {
		return fmt.Errorf("observed_at/collected_at not set")
	}
	if o.ObservedAt.After(o.CollectedAt.Add(clockSkew)) {
		return fmt.Errorf("observed_at %s ahead of collected_at %s",
			o.ObservedAt.Format(time.RFC3339), o.CollectedAt.Format(time.RFC3339))
	}
	if !finite(o.Price) {
		return fmt.Errorf("price is not finite")
	}
	for name, v := range map[string]*float64{
		"open_price": o.Open, "high_price": o.High, "low_price": o.Low,
	} {
		if v != nil && (!finite(*v) || *v <= 0) {
			return fmt.Errorf("%s must be a positive finite number", name)
		}
	}
	for name, v := range map[string]*float64{
		"volume": o.Volume, "market_cap": o.MarketCap,
	} {
		if v != nil && (!finite(*v) || *v < 0) {
			return fmt.Errorf("%s must be a non-negative finite number", name)
		}
	}
	if o.Change24h != nil && !finite(*o.Change24h) {
		return fmt.Errorf("change_pct_24h is not finite")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// StoredRecord is the persisted form of an observation: the canonical record
// plus the data-quality annotation attached by the validator. Records with an
// empty QualityFlag passed validation clean.
type StoredRecord struct {
	MarketObservation
	QualityFlag string `json:"quality_flag,omitempty"`
}

// Key returns the uniqueness key a store deduplicates on.
func (r *StoredRecord) Key() string {
	return fmt.Sprintf("%s|%s|%d", r.AssetClass, r.InstrumentID, r.ObservedAt.UnixMilli())
}
