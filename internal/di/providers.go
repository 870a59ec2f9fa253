package di

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	"github.com/itsgiddd/Horus/internal/forecast"
	"github.com/itsgiddd/Horus/internal/handler/api"
	internalrepo "github.com/itsgiddd/Horus/internal/repository"
	"github.com/itsgiddd/Horus/internal/service/marketdata"
	"github.com/itsgiddd/Horus/internal/signals"
	"github.com/itsgiddd/Horus/internal/usecase"
	"github.com/itsgiddd/Horus/pkg/cache"
	pkgch "github.com/itsgiddd/Horus/pkg/clickhouse"
	"github.com/itsgiddd/Horus/pkg/config"
	pkgkafka "github.com/itsgiddd/Horus/pkg/kafka"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
	"github.com/itsgiddd/Horus/pkg/metrics"
	"github.com/itsgiddd/Horus/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	if cfg.Logging.JSON {
		format = "json"
	}
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: format,
		Output: "stdout",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRandom seeds the root RNG. Pool and scenario runners derive
// their own child generators from it during wiring.
func ProvideRandom() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// ProvideCache builds the cache backend: Redis-backed layered cache when
// configured, in-process memory cache otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(redisCache), nil
}

// ProvideMarketData creates the CryptoCompare client wrapped with the
// caching layer.
func ProvideMarketData(cfg *config.Config, c cache.Service, m repository.Metrics, log *applogger.Logger) domservice.MarketData {
	client := marketdata.NewClient(marketdata.Config{
		BaseURL:   cfg.CryptoCompare.BaseURL,
		APIKey:    cfg.CryptoCompare.APIKey,
		Currency:  cfg.CryptoCompare.Currency,
		Timeout:   cfg.CryptoCompare.Timeout,
		RateLimit: cfg.CryptoCompare.RateLimit,
	}, log)
	return marketdata.NewCached(client, c, cfg.Redis.CacheTTL, m, log)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// backend is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCandleStore creates the ClickHouse candle archive and ensures
// its schema. Nil when ClickHouse is disabled.
func ProvideCandleStore(chClient *pkgch.Client, cfg *config.Config) (repository.CandleStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseCandleStore(chClient.DB(), cfg.ClickHouse.Database+".candles")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("candle store schema: %w", err)
	}
	return store, nil
}

// ProvideForecastStore creates the ClickHouse forecast archive and
// ensures its schema. Nil when ClickHouse is disabled.
func ProvideForecastStore(chClient *pkgch.Client, cfg *config.Config) (repository.ForecastStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseForecastStore(chClient.DB(), cfg.ClickHouse.Database+".forecasts")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("forecast store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideForecastPublisher creates the forecast fan-out. Falls back to a
// no-op publisher when Kafka is disabled.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ForecastPublisher {
	if producer == nil {
		return internalrepo.NopForecastPublisher{}
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.Topic)
}

// ProvideForecasterPool creates the per-symbol forecaster pool and its
// checkpoint directory.
func ProvideForecasterPool(cfg *config.Config, rng *rand.Rand, log *applogger.Logger) (*usecase.ForecasterPool, error) {
	modelCfg := forecast.Config{
		LookbackWindow:  cfg.Model.LookbackWindow,
		ForecastHorizon: cfg.Model.ForecastHorizon,
		Timesteps:       cfg.Model.Timesteps,
		HiddenDim:       cfg.Model.HiddenDim,
		NumLayers:       cfg.Model.NumLayers,
		DropoutRate:     cfg.Model.DropoutRate,
	}
	child := rand.New(rand.NewSource(rng.Int63()))
	pool := usecase.NewForecasterPool(modelCfg, cfg.Simulation, cfg.Model.CheckpointDir, child, log)
	if err := pool.EnsureCheckpointDir(); err != nil {
		return nil, fmt.Errorf("checkpoint dir: %w", err)
	}
	return pool, nil
}

// ProvideForecastUseCase creates the forecast pipeline.
func ProvideForecastUseCase(
	market domservice.MarketData,
	pool *usecase.ForecasterPool,
	publisher repository.ForecastPublisher,
	archive repository.ForecastStore,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(market, pool, publisher, archive, m, log)
}

// ProvideScenarioUseCase creates scenario analysis with its own RNG
// stream.
func ProvideScenarioUseCase(
	market domservice.MarketData,
	cfg *config.Config,
	rng *rand.Rand,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.ScenarioUseCase {
	child := rand.New(rand.NewSource(rng.Int63()))
	return usecase.NewScenarioUseCase(market, cfg.Simulation, child, m, log)
}

// ProvideSignalsUseCase creates the indicator signal pipeline.
func ProvideSignalsUseCase(market domservice.MarketData, m repository.Metrics, log *applogger.Logger) *usecase.SignalsUseCase {
	return usecase.NewSignalsUseCase(market, signals.NewPredictor(), signals.NewEnsemble(), m, log)
}

// ProvideCandlesUseCase creates candle retrieval over the live feed and
// the optional ClickHouse archive.
func ProvideCandlesUseCase(market domservice.MarketData, store repository.CandleStore, log *applogger.Logger) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(market, store, log)
}

// ProvideTrainingUseCase creates the training coordinator for the
// configured symbol universe.
func ProvideTrainingUseCase(
	market domservice.MarketData,
	pool *usecase.ForecasterPool,
	c cache.Service,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.TrainingUseCase {
	settings := usecase.TrainingSettings{
		Interval:        cfg.Training.Interval,
		Epochs:          cfg.Training.Epochs,
		BatchSize:       cfg.Training.BatchSize,
		LearningRate:    cfg.Training.LearningRate,
		HistoryBars:     cfg.Training.HistoryBars,
		Augment:         cfg.Training.Augment,
		SimulationPaths: cfg.Training.SimulationPaths,
	}
	return usecase.NewTrainingUseCase(market, pool, c, m, settings, cfg.CryptoCompare.Symbols, log)
}

// ProvideAutoTrainer creates the scheduled retrainer.
func ProvideAutoTrainer(training *usecase.TrainingUseCase, log *applogger.Logger) *usecase.AutoTrainer {
	return usecase.NewAutoTrainer(training, log)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	log *applogger.Logger,
	forecasts *usecase.ForecastUseCase,
	scenarios *usecase.ScenarioUseCase,
	candles *usecase.CandlesUseCase,
	sig *usecase.SignalsUseCase,
	training *usecase.TrainingUseCase,
	trainer *usecase.AutoTrainer,
) *api.Handler {
	return api.NewHandler(log, forecasts, scenarios, candles, sig, training, trainer)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.Handler,
	trainer *usecase.AutoTrainer,
	publisher repository.ForecastPublisher,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, log, handler, trainer, publisher, chClient)
}
