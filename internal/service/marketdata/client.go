package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/service/ratelimit"
	xhttp "github.com/itsgiddd/Horus/pkg/http"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

const maxCandlesPerRequest = 2000

// Config holds CryptoCompare client settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Currency string
	Timeout  time.Duration
	// RateLimit is requests per second against the provider.
	RateLimit float64
}

// Client pulls OHLCV bars and spot prices from the CryptoCompare REST API.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger
}

// NewClient creates a CryptoCompare market data client.
func NewClient(cfg Config, log *applogger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://min-api.cryptocompare.com"
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: ratelimit.New(),
		log:     log,
	}
}

type histoCandle struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	VolumeFrom float64 `json:"volumefrom"`
	VolumeTo   float64 `json:"volumeto"`
}

type histoResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []histoCandle `json:"Data"`
	} `json:"Data"`
}

// HistoricalCandles fetches up to limit bars for the timeframe, oldest first.
func (c *Client) HistoricalCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	endpoint, aggregate := histoEndpoint(timeframe)
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}

	if !c.limiter.Allow("cryptocompare", c.cfg.RateLimit, c.cfg.RateLimit) {
		return nil, fmt.Errorf("cryptocompare: rate limit exceeded")
	}

	params := map[string][]string{
		"fsym":  {symbol},
		"tsym":  {c.cfg.Currency},
		"limit": {strconv.Itoa(limit)},
	}
	if aggregate > 1 {
		params["aggregate"] = []string{strconv.Itoa(aggregate)}
	}

	var resp histoResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.cfg.BaseURL + endpoint,
		Headers:     c.headers(),
		QueryParams: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("cryptocompare %s: %w", endpoint, err)
	}
	if resp.Response != "Success" {
		return nil, fmt.Errorf("cryptocompare %s: %s", endpoint, resp.Message)
	}

	candles := make([]models.Candle, 0, len(resp.Data.Data))
	for _, h := range resp.Data.Data {
		// The provider pads gaps with zero-valued bars. Skip them.
		if h.Open == 0 && h.Close == 0 {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: time.Unix(h.Time, 0).UTC(),
			Symbol:    symbol,
			Open:      h.Open,
			High:      h.High,
			Low:       h.Low,
			Close:     h.Close,
			Volume:    h.VolumeTo,
		})
	}

	if c.log != nil {
		c.log.Debug("fetched candles",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", timeframe),
			applogger.Int("count", len(candles)),
		)
	}
	return candles, nil
}

// CurrentPrice fetches the spot price for one symbol.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if !c.limiter.Allow("cryptocompare", c.cfg.RateLimit, c.cfg.RateLimit) {
		return 0, fmt.Errorf("cryptocompare: rate limit exceeded")
	}

	var resp map[string]float64
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.cfg.BaseURL + "/data/price",
		Headers: c.headers(),
		QueryParams: map[string][]string{
			"fsym":  {symbol},
			"tsyms": {c.cfg.Currency},
		},
	}, &resp)
	if err != nil {
		return 0, fmt.Errorf("cryptocompare price: %w", err)
	}

	price, ok := resp[c.cfg.Currency]
	if !ok {
		return 0, fmt.Errorf("cryptocompare price: no %s quote for %s", c.cfg.Currency, symbol)
	}
	return price, nil
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.cfg.APIKey != "" && c.cfg.APIKey != "demo" {
		h["authorization"] = "Apikey " + c.cfg.APIKey
	}
	return h
}

// histoEndpoint maps a timeframe to the provider endpoint and the
// aggregation factor applied on top of the base resolution.
func histoEndpoint(timeframe string) (string, int) {
	switch timeframe {
	case "1m":
		return "/data/v2/histominute", 1
	case "5m":
		return "/data/v2/histominute", 5
	case "15m":
		return "/data/v2/histominute", 15
	case "1h":
		return "/data/v2/histohour", 1
	case "4h":
		return "/data/v2/histohour", 4
	case "1d":
		return "/data/v2/histoday", 1
	default:
		return "/data/v2/histohour", 1
	}
}
