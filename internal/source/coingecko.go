package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/service/ratelimit"
	httpkit "MarketPull/pkg/http"
	"MarketPull/pkg/logger"
)

// CryptoConfig configures the CoinGecko style crypto client.
type CryptoConfig struct {
	BaseURL   string
	PerMinute int
	Retry     RetryPolicy
}

// CryptoClient pulls spot prices for a whole id list in one batch request.
type CryptoClient struct {
	baseURL  string
	httpc    *httpkit.Client
	throttle *ratelimit.Throttle
	retry    RetryPolicy
	log      *logger.Logger
	now      func() time.Time
}

// NewCryptoClient creates the crypto source.
func NewCryptoClient(cfg CryptoConfig, httpc *httpkit.Client, log *logger.Logger) drepo.Source {
	return &CryptoClient{
		baseURL:  cfg.BaseURL,
		httpc:    httpc,
		throttle: ratelimit.PerMinute(cfg.PerMinute),
		retry:    cfg.Retry,
		log:      log,
		now:      time.Now,
	}
}

func (c *CryptoClient) Class() models.AssetClass { return models.AssetCrypto }

// simplePriceResponse maps coin id to its priced fields, e.g.
// {"bitcoin": {"usd": 43000.5, "usd_market_cap": ..., "usd_24h_vol": ...,
// "usd_24h_change": ...}}. Fields the upstream has no data for are absent.
type simplePriceResponse map[string]map[string]*float64

// Fetch pulls the whole id list in a single batch call. A batch-level failure
// fans out to one error per id; ids missing from a non-empty response fail
// individually. An empty response body means the upstream has nothing for any
// id, which is not an error.
func (c *CryptoClient) Fetch(ctx context.Context, ids []string) ([]models.RawPayload, []models.SourceError) {
	if len(ids) == 0 {
		return nil, nil
	}

	if err := c.throttle.Wait(ctx); err != nil {
		return nil, batchErrors(ids, err)
	}

	var resp simplePriceResponse
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp = nil
		return c.httpc.GetJSON(ctx, &httpkit.RequestOptions{
			URL: c.baseURL + "/simple/price",
			QueryParams: map[string]string{
				"ids":                 strings.Join(ids, ","),
				"vs_currencies":       "usd",
				"include_market_cap":  "true",
				"include_24hr_vol":    "true",
				"include_24hr_change": "true",
			},
		}, &resp)
	})
	if err != nil {
		c.log.Error("crypto batch fetch failed", logger.Error(err))
		return nil, batchErrors(ids, err)
	}

	if len(resp) == 0 {
		return nil, nil
	}

	fetchedAt := c.now().UTC()
	payloads := make([]models.RawPayload, 0, len(ids))
	var srcErrs []models.SourceError

	for _, id := range ids {
		fields, ok := resp[id]
		if !ok {
			srcErrs = append(srcErrs, models.SourceError{
				InstrumentID: id,
				Err:          Permanent(fmt.Errorf("unknown id %q", id)),
			})
			continue
		}
		payloads = append(payloads, &models.CryptoCoin{
			ID:           id,
			Name:         id,
			PriceUSD:     fields["usd"],
			MarketCapUSD: fields["usd_market_cap"],
			Volume24hUSD: fields["usd_24h_vol"],
			Change24hPct: fields["usd_24h_change"],
			FetchedAt:    fetchedAt,
		})
	}

	return payloads, srcErrs
}

func batchErrors(ids []string, err error) []models.SourceError {
	errs := make([]models.SourceError, len(ids))
	for i, id := range ids {
		errs[i] = models.SourceError{InstrumentID: id, Err: err}
	}
	return errs
}
