package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/domain/repository"
	"github.com/itsgiddd/Horus/internal/domain/service"
	"github.com/itsgiddd/Horus/pkg/cache"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// Cached is a read-through cache in front of a MarketData provider.
// Candles are cached per (symbol, timeframe, limit); spot prices use a
// short fixed TTL.
type Cached struct {
	inner    service.MarketData
	cache    cache.Service
	ttl      time.Duration
	priceTTL time.Duration
	metrics  repository.Metrics
	log      *applogger.Logger
}

// NewCached wraps a provider with a cache layer.
func NewCached(inner service.MarketData, c cache.Service, ttl time.Duration, m repository.Metrics, log *applogger.Logger) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{
		inner:    inner,
		cache:    c,
		ttl:      ttl,
		priceTTL: 10 * time.Second,
		metrics:  m,
		log:      log,
	}
}

func (c *Cached) HistoricalCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	key := cache.Key("candles", symbol, timeframe, limit)

	var raw string
	if err := c.cache.Get(ctx, key, &raw); err == nil {
		var candles []models.Candle
		if err := json.Unmarshal([]byte(raw), &candles); err == nil {
			c.recordLookup("hit")
			return candles, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) && c.log != nil {
		c.log.Warn("candle cache read failed", applogger.Error(err))
	}
	c.recordLookup("miss")

	candles, err := c.inner.HistoricalCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(candles); err == nil {
		if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil && c.log != nil {
			c.log.Warn("candle cache write failed", applogger.Error(err))
		}
	}
	return candles, nil
}

func (c *Cached) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	key := cache.Key("price", symbol)

	var raw string
	if err := c.cache.Get(ctx, key, &raw); err == nil {
		var price float64
		if err := json.Unmarshal([]byte(raw), &price); err == nil {
			c.recordLookup("hit")
			return price, nil
		}
	}
	c.recordLookup("miss")

	price, err := c.inner.CurrentPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}

	if data, err := json.Marshal(price); err == nil {
		_ = c.cache.Set(ctx, key, string(data), c.priceTTL)
	}
	return price, nil
}

func (c *Cached) recordLookup(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(outcome)
	}
}
