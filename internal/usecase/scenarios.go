package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	domrepo "github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	"github.com/itsgiddd/Horus/internal/simulation"
	"github.com/itsgiddd/Horus/pkg/config"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// ScenarioUseCase runs Monte-Carlo scenario analysis on a virtual economy
// anchored at live market data.
type ScenarioUseCase struct {
	market  domservice.MarketData
	metrics domrepo.Metrics
	log     *applogger.Logger
	simCfg  config.SimulationConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScenarioUseCase wires scenario analysis. All run seeds derive from
// the supplied rng.
func NewScenarioUseCase(
	market domservice.MarketData,
	simCfg config.SimulationConfig,
	rng *rand.Rand,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *ScenarioUseCase {
	return &ScenarioUseCase{
		market:  market,
		metrics: metrics,
		log:     log,
		simCfg:  simCfg,
		rng:     rng,
	}
}

// ScenarioResult is the scenario distribution plus the population
// statistics of the economy that produced it.
type ScenarioResult struct {
	Symbol        string                        `json:"symbol"`
	CurrentPrice  float64                       `json:"current_price"`
	Probabilities *models.ScenarioProbabilities `json:"probabilities"`
	Traders       models.TraderStatistics       `json:"trader_stats"`
}

// Run builds an economy seeded with recent closes and computes the
// empirical outcome distribution.
func (uc *ScenarioUseCase) Run(ctx context.Context, symbol string, req models.ScenarioRequest) (*ScenarioResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	start := time.Now()
	candles, err := uc.market.HistoricalCandles(ctx, symbol, req.Timeframe, 200)
	if err != nil {
		uc.recordError("market_data")
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s", symbol)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	currentPrice := closes[len(closes)-1]

	cfg := simulation.DefaultConfig(currentPrice)
	if uc.simCfg.NumTraders > 0 {
		cfg.NumTraders = uc.simCfg.NumTraders
	}
	if uc.simCfg.Volatility > 0 {
		cfg.Volatility = uc.simCfg.Volatility
	}
	if uc.simCfg.Drift != 0 {
		cfg.Drift = uc.simCfg.Drift
	}
	uc.mu.Lock()
	cfg.Seed = uc.rng.Int63()
	uc.mu.Unlock()

	economy, err := simulation.NewVirtualEconomy(cfg, uc.log)
	if err != nil {
		uc.recordError("simulation")
		return nil, fmt.Errorf("build economy: %w", err)
	}
	economy.Market().SeedHistory(closes)

	probs, err := economy.ScenarioProbabilities(req.NumScenarios, req.Steps)
	if err != nil {
		uc.recordError("simulation")
		return nil, fmt.Errorf("scenario run: %w", err)
	}

	if uc.metrics != nil {
		uc.metrics.RecordSimulationRun("scenario")
		uc.metrics.RecordLatency("scenarios", time.Since(start).Seconds())
	}
	if uc.log != nil {
		uc.log.Info("scenario analysis complete",
			applogger.String("symbol", symbol),
			applogger.Int("scenarios", req.NumScenarios),
			applogger.Int("steps", req.Steps),
			applogger.Duration("took", time.Since(start)),
		)
	}

	return &ScenarioResult{
		Symbol:        symbol,
		CurrentPrice:  currentPrice,
		Probabilities: probs,
		Traders:       economy.TraderStatistics(),
	}, nil
}

func (uc *ScenarioUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
