package source

import (
	"context"
	"fmt"
	"time"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/service/ratelimit"
	httpkit "MarketPull/pkg/http"
	"MarketPull/pkg/logger"
)

// EquityConfig configures the Alpha Vantage style equity client.
type EquityConfig struct {
	BaseURL     string
	APIKey      string
	DailyBudget int
	Pace        time.Duration
	Retry       RetryPolicy
}

// EquityClient pulls per-symbol quote snapshots from an Alpha Vantage style
// endpoint. The upstream allows one symbol per request and a small daily
// request budget, so fetches are paced and budget-gated.
type EquityClient struct {
	baseURL string
	apiKey  string
	httpc   *httpkit.Client
	budget  *ratelimit.DailyBudget
	pace    *ratelimit.Throttle
	retry   RetryPolicy
	log     *logger.Logger
	now     func() time.Time
}

// NewEquityClient creates the equity source.
func NewEquityClient(cfg EquityConfig, httpc *httpkit.Client, log *logger.Logger) drepo.Source {
	return &EquityClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   httpc,
		budget:  ratelimit.NewDailyBudget(cfg.DailyBudget),
		pace:    ratelimit.NewThrottle(cfg.Pace),
		retry:   cfg.Retry,
		log:     log,
		now:     time.Now,
	}
}

func (c *EquityClient) Class() models.AssetClass { return models.AssetEquity }

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
	Note         string `json:"Note"`
	ErrorMessage string `json:"Error Message"`
}

// Fetch pulls one quote per symbol. Symbols past the daily budget come back
// as errors without touching the network; the rest succeed or fail
// independently.
func (c *EquityClient) Fetch(ctx context.Context, symbols []string) ([]models.RawPayload, []models.SourceError) {
	payloads := make([]models.RawPayload, 0, len(symbols))
	var srcErrs []models.SourceError

	for i, symbol := range symbols {
		if err := c.budget.Take(); err != nil {
			c.log.Warn("equity budget exhausted, skipping remaining symbols",
				logger.Int("skipped", len(symbols)-i))
			for _, s := range symbols[i:] {
				srcErrs = append(srcErrs, models.SourceError{InstrumentID: s, Err: err})
			}
			break
		}
		if err := c.pace.Wait(ctx); err != nil {
			for _, s := range symbols[i:] {
				srcErrs = append(srcErrs, models.SourceError{InstrumentID: s, Err: err})
			}
			break
		}

		quote, err := c.fetchQuote(ctx, symbol)
		if err != nil {
			c.log.Error("equity fetch failed",
				logger.String("symbol", symbol),
				logger.Error(err))
			srcErrs = append(srcErrs, models.SourceError{InstrumentID: symbol, Err: err})
			continue
		}
		payloads = append(payloads, quote)
	}

	return payloads, srcErrs
}

func (c *EquityClient) fetchQuote(ctx context.Context, symbol string) (*models.EquityQuote, error) {
	var resp globalQuoteResponse

	err := c.retry.Do(ctx, func(ctx context.Context) error {
		resp = globalQuoteResponse{}
		if err := c.httpc.GetJSON(ctx, &httpkit.RequestOptions{
			URL: c.baseURL,
			QueryParams: map[string]string{
				"function": "GLOBAL_QUOTE",
				"symbol":   symbol,
				"apikey":   c.apiKey,
			},
		}, &resp); err != nil {
			return err
		}
		// The upstream reports throttling and bad symbols inside a 200
		// body, so classification happens here: a throttle note gets
		// another attempt, the rest stop the retry loop.
		if resp.ErrorMessage != "" {
			return Permanent(fmt.Errorf("upstream rejected %s: %s", symbol, resp.ErrorMessage))
		}
		if resp.Note != "" {
			return Transient(fmt.Errorf("upstream throttled: %s", resp.Note))
		}
		if resp.GlobalQuote.Symbol == "" && resp.GlobalQuote.Price == "" {
			// An empty quote object is how the upstream reports an
			// unknown symbol; retrying will not conjure one up.
			return Permanent(fmt.Errorf("no quote data for %s", symbol))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	q := resp.GlobalQuote
	return &models.EquityQuote{
		Symbol:           q.Symbol,
		Price:            q.Price,
		Open:             q.Open,
		High:             q.High,
		Low:              q.Low,
		Volume:           q.Volume,
		LatestTradingDay: q.LatestTradingDay,
		PreviousClose:    q.PreviousClose,
		Change:           q.Change,
		ChangePercent:    q.ChangePercent,
		FetchedAt:        c.now().UTC(),
	}, nil
}
