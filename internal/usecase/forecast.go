package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	domrepo "github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// directionThresholdPct is the minimum absolute expected move, in percent,
// for a BUY or SELL call. Anything inside the band is HOLD.
const directionThresholdPct = 0.5

// ErrArchiveDisabled is returned by History when no forecast store is
// configured.
var ErrArchiveDisabled = errors.New("forecast archive not configured")

// ForecastUseCase runs the diffusion (or fallback) forecast for a symbol
// and derives a directional trading signal from it.
type ForecastUseCase struct {
	market    domservice.MarketData
	pool      *ForecasterPool
	publisher domrepo.ForecastPublisher
	archive   domrepo.ForecastStore
	metrics   domrepo.Metrics
	log       *applogger.Logger
}

// NewForecastUseCase wires the forecast pipeline. archive may be nil;
// forecasts are then served but not retained.
func NewForecastUseCase(
	market domservice.MarketData,
	pool *ForecasterPool,
	publisher domrepo.ForecastPublisher,
	archive domrepo.ForecastStore,
	metrics domrepo.Metrics,
	log *applogger.Logger,
) *ForecastUseCase {
	return &ForecastUseCase{
		market:    market,
		pool:      pool,
		publisher: publisher,
		archive:   archive,
		metrics:   metrics,
		log:       log,
	}
}

// ForecastResult bundles the forecast with its derived signal and the
// model state that produced it.
type ForecastResult struct {
	Forecast     *models.Forecast     `json:"forecast"`
	Signal       models.TradingSignal `json:"signal"`
	CurrentPrice float64              `json:"current_price"`
	ModelTrained bool                 `json:"model_trained"`
}

// Forecast fetches history, predicts the next horizon, and publishes the
// result downstream.
func (uc *ForecastUseCase) Forecast(ctx context.Context, symbol string, req models.ForecastRequest) (*ForecastResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	start := time.Now()
	candles, err := uc.market.HistoricalCandles(ctx, symbol, req.Timeframe, req.Limit)
	if err != nil {
		uc.recordError("market_data")
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	mf, err := uc.pool.Get(symbol)
	if err != nil {
		uc.recordError("forecaster")
		return nil, err
	}

	mf.Mu.Lock()
	fc, err := mf.F.Predict(candles, req.NumSamples)
	trained := mf.F.IsTrained()
	mf.Mu.Unlock()
	if err != nil {
		uc.recordError("predict")
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}

	fc.Symbol = symbol
	fc.Timeframe = req.Timeframe
	currentPrice := candles[len(candles)-1].Close
	signal := signalFromForecast(symbol, currentPrice, fc)

	if uc.metrics != nil {
		uc.metrics.RecordForecast(symbol, fc.Source)
		uc.metrics.RecordLastPrice(symbol, currentPrice)
		uc.metrics.RecordLatency("forecast", time.Since(start).Seconds())
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, fc); err != nil {
			uc.recordError("publish")
			if uc.log != nil {
				uc.log.Warn("forecast publish failed",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
		}
	}

	if uc.archive != nil {
		rec := models.ForecastRecord{
			Symbol:         symbol,
			Timeframe:      fc.Timeframe,
			Source:         fc.Source,
			Direction:      signal.Direction,
			Confidence:     signal.Confidence,
			ExpectedChange: signal.ExpectedChange,
			Candles:        fc.Candles,
			CreatedAt:      fc.Timestamp,
		}
		if err := uc.archive.Store(ctx, rec); err != nil {
			uc.recordError("archive")
			if uc.log != nil {
				uc.log.Warn("forecast archive failed",
					applogger.String("symbol", symbol),
					applogger.Error(err),
				)
			}
		}
	}

	if uc.log != nil {
		uc.log.Info("forecast complete",
			applogger.String("symbol", symbol),
			applogger.String("source", fc.Source),
			applogger.String("direction", signal.Direction),
			applogger.Duration("took", time.Since(start)),
		)
	}

	return &ForecastResult{
		Forecast:     fc,
		Signal:       signal,
		CurrentPrice: currentPrice,
		ModelTrained: trained,
	}, nil
}

// History returns recently archived forecasts for a symbol.
func (uc *ForecastUseCase) History(ctx context.Context, symbol string, n int) ([]models.ForecastRecord, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if uc.archive == nil {
		return nil, ErrArchiveDisabled
	}
	records, err := uc.archive.Recent(ctx, symbol, n)
	if err != nil {
		uc.recordError("archive")
		return nil, fmt.Errorf("forecast history %s: %w", symbol, err)
	}
	return records, nil
}

// signalFromForecast turns the end-of-horizon expected move into a
// directional call.
func signalFromForecast(symbol string, currentPrice float64, fc *models.Forecast) models.TradingSignal {
	signal := models.TradingSignal{
		Symbol:    symbol,
		Direction: models.DirectionHold,
		Timestamp: fc.Timestamp,
	}
	if len(fc.Candles) == 0 || currentPrice <= 0 {
		return signal
	}

	last := fc.Candles[len(fc.Candles)-1]
	changePct := (last.Close - currentPrice) / currentPrice * 100
	signal.PredictedPrice = last.Close
	signal.ExpectedChange = changePct
	signal.Confidence = meanConfidence(fc.Candles) * 100

	if changePct > directionThresholdPct {
		signal.Direction = models.DirectionBuy
	} else if changePct < -directionThresholdPct {
		signal.Direction = models.DirectionSell
	}

	if math.Abs(changePct) > 2 {
		signal.Strength = "strong"
	} else if math.Abs(changePct) > directionThresholdPct {
		signal.Strength = "moderate"
	} else {
		signal.Strength = "weak"
	}
	return signal
}

func meanConfidence(candles []models.PredictedCandle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Confidence
	}
	return sum / float64(len(candles))
}

func (uc *ForecastUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
