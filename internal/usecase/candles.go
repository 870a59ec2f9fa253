package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	domrepo "github.com/itsgiddd/Horus/internal/domain/repository"
	domservice "github.com/itsgiddd/Horus/internal/domain/service"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// CandlesUseCase serves OHLCV history, pulling from the provider and
// persisting into the candle store when one is configured.
type CandlesUseCase struct {
	market domservice.MarketData
	store  domrepo.CandleStore
	log    *applogger.Logger
}

// NewCandlesUseCase wires candle retrieval. store may be nil.
func NewCandlesUseCase(market domservice.MarketData, store domrepo.CandleStore, log *applogger.Logger) *CandlesUseCase {
	return &CandlesUseCase{market: market, store: store, log: log}
}

// CandlesResult is a window of bars for one symbol and timeframe.
type CandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

// Latest fetches the most recent bars from the provider and archives them.
func (uc *CandlesUseCase) Latest(ctx context.Context, symbol, timeframe string, limit int) (*CandlesResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	tf := string(domrepo.NormalizeTimeframe(timeframe))

	candles, err := uc.market.HistoricalCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}

	if uc.store != nil {
		if err := uc.store.StoreBatch(ctx, symbol, tf, candles); err != nil && uc.log != nil {
			uc.log.Warn("candle archive failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}

	return &CandlesResult{
		Symbol:    symbol,
		Timeframe: tf,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

// Stored queries the archive for a time range.
func (uc *CandlesUseCase) Stored(ctx context.Context, symbol, timeframe string, from, to time.Time) (*CandlesResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if uc.store == nil {
		return nil, fmt.Errorf("candle store not configured")
	}
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to")
	}
	tf := string(domrepo.NormalizeTimeframe(timeframe))

	candles, err := uc.store.Query(ctx, symbol, tf, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}

	return &CandlesResult{
		Symbol:    symbol,
		Timeframe: tf,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

// Price returns the provider spot price.
func (uc *CandlesUseCase) Price(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("symbol required")
	}
	return uc.market.CurrentPrice(ctx, symbol)
}
