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

// ForexConfig configures the exchange-rate client.
type ForexConfig struct {
	BaseURL   string
	APIKey    string
	PerMinute int
	Retry     RetryPolicy
}

// ForexClient pulls currency rates. The upstream returns every rate for one
// base currency per call, so pairs are grouped by base and each group costs a
// single request.
type ForexClient struct {
	baseURL  string
	apiKey   string
	httpc    *httpkit.Client
	throttle *ratelimit.Throttle
	retry    RetryPolicy
	log      *logger.Logger
	now      func() time.Time
}

// NewForexClient creates the forex source.
func NewForexClient(cfg ForexConfig, httpc *httpkit.Client, log *logger.Logger) drepo.Source {
	return &ForexClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		httpc:    httpc,
		throttle: ratelimit.PerMinute(cfg.PerMinute),
		retry:    cfg.Retry,
		log:      log,
		now:      time.Now,
	}
}

func (c *ForexClient) Class() models.AssetClass { return models.AssetForex }

type latestRatesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// Fetch pulls rates for "BASE/TARGET" pairs. Pairs sharing a base share one
// request and therefore one fate on a request-level failure; a target missing
// from the rate table fails just that pair.
func (c *ForexClient) Fetch(ctx context.Context, pairs []string) ([]models.RawPayload, []models.SourceError) {
	byBase := make(map[string][]string)
	var bases []string
	var srcErrs []models.SourceError

	for _, pair := range pairs {
		base, target, ok := strings.Cut(pair, "/")
		if !ok || base == "" || target == "" {
			srcErrs = append(srcErrs, models.SourceError{
				InstrumentID: pair,
				Err:          Permanent(fmt.Errorf("malformed pair %q, want BASE/TARGET", pair)),
			})
			continue
		}
		if _, seen := byBase[base]; !seen {
			bases = append(bases, base)
		}
		byBase[base] = append(byBase[base], target)
	}

	var payloads []models.RawPayload
	for _, base := range bases {
		targets := byBase[base]

		if err := c.throttle.Wait(ctx); err != nil {
			for _, target := range targets {
				srcErrs = append(srcErrs, models.SourceError{InstrumentID: base + "/" + target, Err: err})
			}
			continue
		}

		resp, err := c.fetchBase(ctx, base)
		if err != nil {
			c.log.Error("forex fetch failed",
				logger.String("base", base),
				logger.Error(err))
			for _, target := range targets {
				srcErrs = append(srcErrs, models.SourceError{InstrumentID: base + "/" + target, Err: err})
			}
			continue
		}

		fetchedAt := c.now().UTC()
		for _, target := range targets {
			rate, ok := resp.Rates[target]
			if !ok {
				srcErrs = append(srcErrs, models.SourceError{
					InstrumentID: base + "/" + target,
					Err:          Permanent(fmt.Errorf("no rate for %s in %s table", target, base)),
				})
				continue
			}
			payloads = append(payloads, &models.ForexRate{
				Base:      base,
				Target:    target,
				Rate:      rate,
				RateDate:  resp.Date,
				FetchedAt: fetchedAt,
			})
		}
	}

	return payloads, srcErrs
}

func (c *ForexClient) fetchBase(ctx context.Context, base string) (*latestRatesResponse, error) {
	opts := &httpkit.RequestOptions{
		URL: c.baseURL + "/" + base,
	}
	if c.apiKey != "" {
		opts.QueryParams = map[string]string{"api_key": c.apiKey}
	}

	var resp latestRatesResponse
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp = latestRatesResponse{}
		return c.httpc.GetJSON(ctx, opts, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Rates) == 0 {
		return nil, Permanent(fmt.Errorf("empty rate table for base %s", base))
	}
	return &resp, nil
}
