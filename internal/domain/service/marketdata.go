package service

import (
	"context"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// MarketData supplies historical bars and spot prices from an external
// provider. Implementations pull over REST; the forecasting core never
// performs network I/O itself.
type MarketData interface {
	HistoricalCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}
