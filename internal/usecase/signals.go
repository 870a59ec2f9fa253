package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	domrepo "github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	"github.com/itsgiddd/Horus/internal/service/indicators"
	"github.com/itsgiddd/Horus/internal/signals"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// SignalsUseCase produces indicator-based trading signals, both from the
// single weighted predictor and from the strategy ensemble.
type SignalsUseCase struct {
	market    domservice.MarketData
	predictor *signals.Predictor
	ensemble  *signals.Ensemble
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

// NewSignalsUseCase wires the signal pipeline.
func NewSignalsUseCase(
	market domservice.MarketData,
	predictor *signals.Predictor,
	ensemble *signals.Ensemble,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *SignalsUseCase {
	return &SignalsUseCase{
		market:    market,
		predictor: predictor,
		ensemble:  ensemble,
		metrics:   metrics,
		log:       log,
	}
}

// SignalResult is one symbol's signal with its ensemble breakdown and the
// indicator vector that produced it.
type SignalResult struct {
	Signal     models.TradingSignal     `json:"signal"`
	Ensemble   models.TradingSignal     `json:"ensemble"`
	Strategies []signals.StrategySignal `json:"strategies"`
	Indicators models.IndicatorVector   `json:"indicators"`
}

// Analyze computes indicators from recent history and scores them.
func (uc *SignalsUseCase) Analyze(ctx context.Context, symbol, timeframe string, limit int) (*SignalResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit < indicators.MinBars {
		limit = 200
	}

	start := time.Now()
	candles, err := uc.market.HistoricalCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.RecordError("market_data")
		}
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	vector, err := indicators.Compute(candles)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	signal := uc.predictor.Predict(symbol, vector)
	combined, strategies := uc.ensemble.Predict(symbol, vector)

	if uc.metrics != nil {
		uc.metrics.RecordLastPrice(symbol, vector.CurrentPrice)
		uc.metrics.RecordLatency("signals", time.Since(start).Seconds())
	}
	if uc.log != nil {
		uc.log.Debug("signal computed",
			applogger.String("symbol", symbol),
			applogger.String("direction", signal.Direction),
			applogger.Float64("confidence", signal.Confidence),
		)
	}

	return &SignalResult{
		Signal:     signal,
		Ensemble:   combined,
		Strategies: strategies,
		Indicators: vector,
	}, nil
}
