package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"MarketPull/internal/domain/models"
)

// ErrMalformedPayload marks a payload whose required fields cannot be parsed
// into the canonical record.
var ErrMalformedPayload = errors.New("malformed payload")

// Normalizer turns one raw source payload into the canonical observation.
type Normalizer interface {
	Class() models.AssetClass
	Normalize(payload models.RawPayload) (*models.MarketObservation, error)
}

// ForClass returns the normalizer for a payload's asset class.
func ForClass(class models.AssetClass) (Normalizer, error) {
	switch class {
	case models.AssetEquity:
		return EquityNormalizer{}, nil
	case models.AssetCrypto:
		return CryptoNormalizer{}, nil
	case models.AssetForex:
		return ForexNormalizer{}, nil
	}
	return nil, fmt.Errorf("no normalizer for asset class %q", class)
}

// parseFloat parses a required numeric wire string.
func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrMalformedPayload, field, s)
	}
	return v, nil
}

// parseOptFloat parses an optional numeric wire string. Empty is absent;
// anything else must parse.
func parseOptFloat(field, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func wrongVariant(want models.AssetClass, got models.RawPayload) error {
	return fmt.Errorf("%w: want %s payload, got %T", ErrMalformedPayload, want, got)
}
