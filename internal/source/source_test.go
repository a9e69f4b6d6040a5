package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPull/internal/domain/models"
	httpkit "MarketPull/pkg/http"
	"MarketPull/pkg/logger"
)

func testRetry() RetryPolicy {
	p := NewRetryPolicy(3, time.Millisecond, 2)
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Transient(errors.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := testRetry().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("bad key"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransientClassifiesStatusCodes(t *testing.T) {
	assert.True(t, IsTransient(&httpkit.StatusError{Code: 500}))
	assert.True(t, IsTransient(&httpkit.StatusError{Code: 429}))
	assert.False(t, IsTransient(&httpkit.StatusError{Code: 404}))
	assert.False(t, IsTransient(&httpkit.StatusError{Code: 403}))
	assert.False(t, IsTransient(context.Canceled))
	assert.True(t, IsTransient(errors.New("connection reset")))
}

func newEquity(t *testing.T, srvURL string, budget int) *EquityClient {
	t.Helper()
	c := NewEquityClient(EquityConfig{
		BaseURL:     srvURL,
		APIKey:      "demo",
		DailyBudget: budget,
		Retry:       testRetry(),
	}, httpkit.NewClient(), logger.Nop()).(*EquityClient)
	return c
}

func TestEquityFetchRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "IBM", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"Global Quote":{
			"01. symbol":"IBM","02. open":"187.1500","03. high":"189.7800",
			"04. low":"185.9200","05. price":"188.0000","06. volume":"4021500",
			"07. latest trading day":"2024-01-05","08. previous close":"186.0000",
			"09. change":"2.0000","10. change percent":"1.0753%"}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newEquity(t, srv.URL, 25).Fetch(context.Background(), []string{"IBM"})
	require.Empty(t, srcErrs)
	require.Len(t, payloads, 1)
	assert.Equal(t, 3, calls)

	quote := payloads[0].(*models.EquityQuote)
	assert.Equal(t, "IBM", quote.Symbol)
	assert.Equal(t, "188.0000", quote.Price)
	assert.Equal(t, "2024-01-05", quote.LatestTradingDay)
	assert.False(t, quote.FetchedAt.IsZero())
}

func TestEquityFetchRetriesThrottleNote(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// The upstream rate limit arrives as a 200 with a Note body.
			fmt.Fprint(w, `{"Note":"Thank you for using our API. Our standard API rate limit is 25 requests per day."}`)
			return
		}
		fmt.Fprint(w, `{"Global Quote":{"01. symbol":"IBM","05. price":"188.0000"}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newEquity(t, srv.URL, 25).Fetch(context.Background(), []string{"IBM"})
	require.Empty(t, srcErrs)
	require.Len(t, payloads, 1)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "188.0000", payloads[0].(*models.EquityQuote).Price)
}

func TestEquityFetchEmptyQuoteIsPermanent(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"Global Quote":{}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newEquity(t, srv.URL, 25).Fetch(context.Background(), []string{"NOPE"})
	assert.Empty(t, payloads)
	require.Len(t, srcErrs, 1)
	assert.Equal(t, "NOPE", srcErrs[0].InstrumentID)
	assert.False(t, IsTransient(srcErrs[0].Err))
	assert.Equal(t, 1, calls)
}

func TestEquityFetchBudgetCutsOffRemainingSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"Global Quote":{"01. symbol":%q,"05. price":"10.00"}}`,
			r.URL.Query().Get("symbol"))
	}))
	defer srv.Close()

	payloads, srcErrs := newEquity(t, srv.URL, 2).Fetch(context.Background(),
		[]string{"AAA", "BBB", "CCC", "DDD"})
	assert.Len(t, payloads, 2)
	require.Len(t, srcErrs, 2)
	assert.Equal(t, "CCC", srcErrs[0].InstrumentID)
	assert.Equal(t, "DDD", srcErrs[1].InstrumentID)
}

func newCrypto(t *testing.T, srvURL string) *CryptoClient {
	t.Helper()
	return NewCryptoClient(CryptoConfig{
		BaseURL:   srvURL,
		PerMinute: 0,
		Retry:     testRetry(),
	}, httpkit.NewClient(), logger.Nop()).(*CryptoClient)
}

func TestCryptoFetchBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		fmt.Fprint(w, `{
			"bitcoin":{"usd":43250.5,"usd_market_cap":847000000000,"usd_24h_vol":21000000000,"usd_24h_change":2.35},
			"ethereum":{"usd":2280.1}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newCrypto(t, srv.URL).Fetch(context.Background(), []string{"bitcoin", "ethereum"})
	require.Empty(t, srcErrs)
	require.Len(t, payloads, 2)

	btc := payloads[0].(*models.CryptoCoin)
	require.NotNil(t, btc.PriceUSD)
	assert.Equal(t, 43250.5, *btc.PriceUSD)
	require.NotNil(t, btc.Change24hPct)
	assert.Equal(t, 2.35, *btc.Change24hPct)

	eth := payloads[1].(*models.CryptoCoin)
	require.NotNil(t, eth.PriceUSD)
	assert.Nil(t, eth.MarketCapUSD)
}

func TestCryptoFetchEmptyResponseIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newCrypto(t, srv.URL).Fetch(context.Background(), []string{"bitcoin"})
	assert.Empty(t, payloads)
	assert.Empty(t, srcErrs)
}

func TestCryptoFetchMissingIDFailsIndividually(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"bitcoin":{"usd":43250.5}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newCrypto(t, srv.URL).Fetch(context.Background(), []string{"bitcoin", "dogequeen"})
	assert.Len(t, payloads, 1)
	require.Len(t, srcErrs, 1)
	assert.Equal(t, "dogequeen", srcErrs[0].InstrumentID)
	assert.False(t, IsTransient(srcErrs[0].Err))
}

func TestCryptoFetchBatchFailureFansOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	payloads, srcErrs := newCrypto(t, srv.URL).Fetch(context.Background(), []string{"bitcoin", "ethereum"})
	assert.Empty(t, payloads)
	require.Len(t, srcErrs, 2)
	assert.Equal(t, "bitcoin", srcErrs[0].InstrumentID)
	assert.Equal(t, "ethereum", srcErrs[1].InstrumentID)
}

func newForex(t *testing.T, srvURL string) *ForexClient {
	t.Helper()
	return NewForexClient(ForexConfig{
		BaseURL:   srvURL,
		PerMinute: 0,
		Retry:     testRetry(),
	}, httpkit.NewClient(), logger.Nop()).(*ForexClient)
}

func TestForexFetchGroupsByBase(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/USD":
			fmt.Fprint(w, `{"base":"USD","date":"2024-01-05","rates":{"EUR":0.9132,"GBP":0.7874,"JPY":144.72}}`)
		case "/EUR":
			fmt.Fprint(w, `{"base":"EUR","date":"2024-01-05","rates":{"USD":1.0951}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	payloads, srcErrs := newForex(t, srv.URL).Fetch(context.Background(),
		[]string{"USD/EUR", "USD/GBP", "EUR/USD"})
	require.Empty(t, srcErrs)
	require.Len(t, payloads, 3)
	assert.Equal(t, []string{"/USD", "/EUR"}, paths)

	first := payloads[0].(*models.ForexRate)
	assert.Equal(t, "USD", first.Base)
	assert.Equal(t, "EUR", first.Target)
	assert.Equal(t, 0.9132, first.Rate)
	assert.Equal(t, "2024-01-05", first.RateDate)
}

func TestForexFetchMissingTargetAndMalformedPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"base":"USD","date":"2024-01-05","rates":{"EUR":0.9132}}`)
	}))
	defer srv.Close()

	payloads, srcErrs := newForex(t, srv.URL).Fetch(context.Background(),
		[]string{"USD/EUR", "USD/XXX", "USDEUR"})
	assert.Len(t, payloads, 1)
	require.Len(t, srcErrs, 2)

	byInstrument := map[string]error{}
	for _, se := range srcErrs {
		byInstrument[se.InstrumentID] = se.Err
	}
	assert.Contains(t, byInstrument, "USD/XXX")
	assert.Contains(t, byInstrument, "USDEUR")
	assert.False(t, IsTransient(byInstrument["USD/XXX"]))
}
