package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	domrepo "github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	"github.com/itsgiddd/Horus/internal/forecast"
	"github.com/itsgiddd/Horus/pkg/cache"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

const trainLockTTL = 30 * time.Minute

// TrainingSettings shapes scheduled and manual training runs.
type TrainingSettings struct {
	Interval        time.Duration
	Epochs          int
	BatchSize       int
	LearningRate    float64
	HistoryBars     int
	Timeframe       string
	Augment         bool
	SimulationPaths int
}

// TrainingUseCase runs training jobs and tracks per-symbol results.
// One job per symbol is in flight at a time; with Redis configured the
// lock is shared across replicas.
type TrainingUseCase struct {
	market   domservice.MarketData
	pool     *ForecasterPool
	locks    cache.Service
	metrics  domrepo.Metrics
	log      *applogger.Logger
	settings TrainingSettings

	mu      sync.Mutex
	symbols map[string]struct{}
	trained map[string]models.TrainedModel
	nextRun *time.Time
}

// NewTrainingUseCase creates the training coordinator for the given
// symbol universe. locks may be nil; single-flight is then process-local
// only.
func NewTrainingUseCase(
	market domservice.MarketData,
	pool *ForecasterPool,
	locks cache.Service,
	metrics domrepo.Metrics,
	settings TrainingSettings,
	symbols []string,
	log *applogger.Logger,
) *TrainingUseCase {
	if settings.Timeframe == "" {
		settings.Timeframe = "1h"
	}
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &TrainingUseCase{
		market:   market,
		pool:     pool,
		locks:    locks,
		metrics:  metrics,
		log:      log,
		settings: settings,
		symbols:  set,
		trained:  make(map[string]models.TrainedModel),
	}
}

// Train fetches history and runs one training job for the symbol.
// Zero epochs or batch size fall back to the configured defaults.
func (uc *TrainingUseCase) Train(ctx context.Context, symbol string, epochs, batchSize int) (models.TrainedModel, error) {
	if symbol == "" {
		return models.TrainedModel{}, fmt.Errorf("symbol required")
	}
	if epochs <= 0 {
		epochs = uc.settings.Epochs
	}
	if batchSize <= 0 {
		batchSize = uc.settings.BatchSize
	}

	if uc.locks != nil {
		lockKey := cache.Key("train", symbol)
		ok, err := uc.locks.TryLock(ctx, lockKey, trainLockTTL)
		if err == nil && !ok {
			return models.TrainedModel{}, fmt.Errorf("training already in progress for %s", symbol)
		}
		if err == nil {
			defer func() { _ = uc.locks.Unlock(context.Background(), lockKey) }()
		}
	}

	bars, err := uc.market.HistoricalCandles(ctx, symbol, uc.settings.Timeframe, uc.settings.HistoryBars)
	if err != nil {
		uc.recordError("market_data")
		return models.TrainedModel{}, fmt.Errorf("fetch training data: %w", err)
	}

	mf, err := uc.pool.Get(symbol)
	if err != nil {
		return models.TrainedModel{}, err
	}

	opts := forecast.TrainOptions{
		Epochs:          epochs,
		BatchSize:       batchSize,
		LearningRate:    uc.settings.LearningRate,
		Augment:         uc.settings.Augment,
		SimulationPaths: uc.settings.SimulationPaths,
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = forecast.DefaultTrainOptions().LearningRate
	}

	start := time.Now()
	mf.Mu.Lock()
	losses, err := mf.F.Train(ctx, bars, opts)
	if err != nil {
		mf.Mu.Unlock()
		uc.recordError("train")
		return models.TrainedModel{}, fmt.Errorf("train %s: %w", symbol, err)
	}
	saveErr := mf.F.Save(uc.pool.CheckpointPath(symbol))
	mf.Mu.Unlock()

	if saveErr != nil {
		uc.recordError("checkpoint")
		if uc.log != nil {
			uc.log.Warn("checkpoint save failed",
				applogger.String("symbol", symbol),
				applogger.Error(saveErr),
			)
		}
	}

	finalLoss := 0.0
	if len(losses) > 0 {
		finalLoss = losses[len(losses)-1]
	}
	if uc.metrics != nil {
		for _, loss := range losses {
			uc.metrics.RecordTrainingEpoch(symbol, loss)
		}
		uc.metrics.RecordLatency("training", time.Since(start).Seconds())
	}

	record := models.TrainedModel{
		Symbol:     symbol,
		TrainedAt:  time.Now().UTC(),
		DataPoints: len(bars),
		Epochs:     epochs,
		FinalLoss:  finalLoss,
	}

	uc.mu.Lock()
	uc.trained[symbol] = record
	uc.symbols[symbol] = struct{}{}
	uc.mu.Unlock()

	if uc.log != nil {
		uc.log.Info("training complete",
			applogger.String("symbol", symbol),
			applogger.Int("epochs", epochs),
			applogger.Int("bars", len(bars)),
			applogger.Float64("final_loss", finalLoss),
			applogger.Duration("took", time.Since(start)),
		)
	}
	return record, nil
}

// Symbols returns the training universe, sorted.
func (uc *TrainingUseCase) Symbols() []string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]string, 0, len(uc.symbols))
	for s := range uc.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AddSymbol adds a symbol to the scheduled universe.
func (uc *TrainingUseCase) AddSymbol(symbol string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.symbols[symbol]; ok {
		return false
	}
	uc.symbols[symbol] = struct{}{}
	return true
}

// RemoveSymbol drops a symbol from the scheduled universe.
func (uc *TrainingUseCase) RemoveSymbol(symbol string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.symbols[symbol]; !ok {
		return false
	}
	delete(uc.symbols, symbol)
	return true
}

// Status reports the trainer state for the HTTP layer.
func (uc *TrainingUseCase) Status(running bool) models.TrainingStatus {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	trained := make([]models.TrainedModel, 0, len(uc.trained))
	for _, m := range uc.trained {
		trained = append(trained, m)
	}
	sort.Slice(trained, func(i, j int) bool { return trained[i].Symbol < trained[j].Symbol })

	symbols := make([]string, 0, len(uc.symbols))
	for s := range uc.symbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	return models.TrainingStatus{
		Running:       running,
		IntervalHours: uc.settings.Interval.Hours(),
		Symbols:       symbols,
		NextRun:       uc.nextRun,
		TrainedModels: trained,
	}
}

// SetNextRun records the next scheduled run time.
func (uc *TrainingUseCase) SetNextRun(t time.Time) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.nextRun = &t
}

// Interval returns the configured schedule interval.
func (uc *TrainingUseCase) Interval() time.Duration {
	return uc.settings.Interval
}

func (uc *TrainingUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
