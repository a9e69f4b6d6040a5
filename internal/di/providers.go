package di

import (
	"fmt"

	"MarketPull/internal/domain/models"
	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/handler/api"
	internalrepo "MarketPull/internal/repository"
	"MarketPull/internal/source"
	"MarketPull/internal/usecase"
	"MarketPull/internal/validate"
	"MarketPull/pkg/cache"
	pkgch "MarketPull/pkg/clickhouse"
	"MarketPull/pkg/config"
	xhttp "MarketPull/pkg/http"
	pkgkafka "MarketPull/pkg/kafka"
	"MarketPull/pkg/logger"
	"MarketPull/pkg/metrics"
	"MarketPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideHTTPClient creates the shared upstream HTTP client.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Pipeline.RequestTimeout))
}

// ProvideSources builds one source client per configured asset class.
func ProvideSources(cfg *config.Config, httpc *xhttp.Client, log *logger.Logger) []drepo.Source {
	retry := source.NewRetryPolicy(
		cfg.Pipeline.Retry.MaxAttempts,
		cfg.Pipeline.Retry.BaseDelay,
		cfg.Pipeline.Retry.Multiplier,
	)

	var sources []drepo.Source
	if len(cfg.Sources.Equity.Symbols) > 0 {
		sources = append(sources, source.NewEquityClient(source.EquityConfig{
			BaseURL:     cfg.Sources.Equity.BaseURL,
			APIKey:      cfg.Sources.Equity.APIKey,
			DailyBudget: cfg.Sources.Equity.DailyBudget,
			Pace:        cfg.Sources.Equity.Pace,
			Retry:       retry,
		}, httpc, log))
	}
	if len(cfg.Sources.Crypto.IDs) > 0 {
		sources = append(sources, source.NewCryptoClient(source.CryptoConfig{
			BaseURL:   cfg.Sources.Crypto.BaseURL,
			PerMinute: cfg.Sources.Crypto.PerMinute,
			Retry:     retry,
		}, httpc, log))
	}
	if len(cfg.Sources.Forex.Pairs) > 0 {
		sources = append(sources, source.NewForexClient(source.ForexConfig{
			BaseURL:   cfg.Sources.Forex.BaseURL,
			APIKey:    cfg.Sources.Forex.APIKey,
			PerMinute: cfg.Sources.Forex.PerMinute,
			Retry:     retry,
		}, httpc, log))
	}
	return sources
}

// ProvideStore creates the configured persistence backend.
func ProvideStore(cfg *config.Config, log *logger.Logger) (drepo.Store, error) {
	if cfg.Store.Backend == "memory" {
		return internalrepo.NewMemoryStore(), nil
	}

	ch := cfg.Store.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout, ch.WriteTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	store := internalrepo.NewCHObservationStore(client, ch.Database, ch.Table)
	store.SetLogger(log)
	return store, nil
}

// ProvideCache creates the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.Redis.Addr),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
		)
	}
	return cache.NewMemoryCache(), nil
}

// ProvideHistory puts the cache in front of the store's latest-row reads.
func ProvideHistory(cfg *config.Config, c cache.Service, store drepo.Store) usecase.History {
	return internalrepo.NewCachedHistory(c, store, cfg.Cache.TTL)
}

// ProvideValidator creates the data-quality validator.
func ProvideValidator(cfg *config.Config, log *logger.Logger) *validate.Validator {
	return validate.New(validate.Config{
		ClockSkew: cfg.Pipeline.ClockSkew,
		Lookback:  cfg.Pipeline.Lookback,
		JumpThresholds: map[models.AssetClass]float64{
			models.AssetEquity: cfg.Pipeline.JumpThresholds.Equity,
			models.AssetCrypto: cfg.Pipeline.JumpThresholds.Crypto,
			models.AssetForex:  cfg.Pipeline.JumpThresholds.Forex,
		},
	}, log)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvidePublisher creates the Kafka publisher when brokers are configured.
// Without brokers the pipeline runs unpublished.
func ProvidePublisher(cfg *config.Config) (drepo.Publisher, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideRunner assembles the pipeline runner.
func ProvideRunner(
	cfg *config.Config,
	sources []drepo.Source,
	validator *validate.Validator,
	store drepo.Store,
	history usecase.History,
	publisher drepo.Publisher,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.Runner {
	return usecase.NewRunner(
		usecase.RunnerConfig{
			Instruments: map[models.AssetClass][]string{
				models.AssetEquity: cfg.Sources.Equity.Symbols,
				models.AssetCrypto: cfg.Sources.Crypto.IDs,
				models.AssetForex:  cfg.Sources.Forex.Pairs,
			},
			BatchSize: cfg.Store.BatchSize,
		},
		sources, validator, store, history, publisher, m, log,
	)
}

// ProvideObservationsUseCase creates the query-side use case.
func ProvideObservationsUseCase(store drepo.Store) *usecase.ObservationsUseCase {
	return usecase.NewObservationsUseCase(store)
}

// ProvideHTTPHandler creates the HTTP route surface.
func ProvideHTTPHandler(log *logger.Logger, observations *usecase.ObservationsUseCase, runner *usecase.Runner) xhttp.Handler {
	return api.NewObservationsHandler(log, observations, runner)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	runner *usecase.Runner,
	handler xhttp.Handler,
	store drepo.Store,
	publisher drepo.Publisher,
	c cache.Service,
) *server.App {
	return server.New(cfg, log, runner, handler, store, publisher, c)
}
