package repository

import (
	"context"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// CandleStore persists and queries OHLCV bars.
type CandleStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	Query(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	LatestN(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// ForecastStore archives served forecasts for later inspection.
type ForecastStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, rec models.ForecastRecord) error
	Recent(ctx context.Context, symbol string, n int) ([]models.ForecastRecord, error)
}

// ForecastPublisher emits completed forecasts to downstream consumers.
type ForecastPublisher interface {
	Publish(ctx context.Context, f *models.Forecast) error
	Close() error
}

// Metrics records operational metrics.
type Metrics interface {
	RecordForecast(symbol, source string)
	RecordTrainingEpoch(symbol string, loss float64)
	RecordSimulationRun(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordError(kind string)
	RecordCacheLookup(outcome string)
}
