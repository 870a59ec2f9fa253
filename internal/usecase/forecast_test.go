package usecase

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/internal/forecast"
	"github.com/itsgiddd/Horus/pkg/config"
)

type fakeMarket struct {
	candles []models.Candle
	price   float64
	err     error
}

func (m *fakeMarket) HistoricalCandles(_ context.Context, symbol, _ string, limit int) ([]models.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := m.candles
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	cp := make([]models.Candle, len(out))
	copy(cp, out)
	for i := range cp {
		cp[i].Symbol = symbol
	}
	return cp, nil
}

func (m *fakeMarket) CurrentPrice(context.Context, string) (float64, error) {
	return m.price, m.err
}

type capturePublisher struct {
	published []*models.Forecast
}

func (p *capturePublisher) Publish(_ context.Context, f *models.Forecast) error {
	p.published = append(p.published, f)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type captureArchive struct {
	records []models.ForecastRecord
}

func (a *captureArchive) Init(context.Context) error { return nil }

func (a *captureArchive) Store(_ context.Context, rec models.ForecastRecord) error {
	a.records = append(a.records, rec)
	return nil
}

func (a *captureArchive) Recent(_ context.Context, symbol string, n int) ([]models.ForecastRecord, error) {
	out := a.records
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func sineCandles(n int) []models.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + 5*math.Sin(float64(i)/7)
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c - 0.2,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    150000,
		}
	}
	return out
}

func testModelConfig() forecast.Config {
	return forecast.Config{
		LookbackWindow:  12,
		ForecastHorizon: 3,
		Timesteps:       8,
		HiddenDim:       8,
		NumLayers:       1,
	}
}

func testPool(t *testing.T) *ForecasterPool {
	t.Helper()
	simCfg := config.SimulationConfig{NumTraders: 20, Steps: 30, Volatility: 0.02}
	pool := NewForecasterPool(testModelConfig(), simCfg, t.TempDir(), rand.New(rand.NewSource(11)), nil)
	require.NoError(t, pool.EnsureCheckpointDir())
	return pool
}

func TestForecastUntrainedFallsBackToSimulation(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(60)}
	pub := &capturePublisher{}
	uc := NewForecastUseCase(market, testPool(t), pub, nil, nil, nil)

	res, err := uc.Forecast(context.Background(), "BTC", models.ForecastRequest{
		Timeframe: "1h", Limit: 60, NumSamples: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "simulation", res.Forecast.Source)
	assert.False(t, res.ModelTrained)
	assert.Len(t, res.Forecast.Candles, 3)
	for _, c := range res.Forecast.Candles {
		assert.LessOrEqual(t, c.Confidence, 0.85)
		assert.GreaterOrEqual(t, c.High, c.Low)
	}
	assert.LessOrEqual(t, res.Signal.Confidence, 85.0)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "BTC", pub.published[0].Symbol)
	assert.Equal(t, "1h", pub.published[0].Timeframe)
}

func TestForecastArchivesRecord(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(60)}
	archive := &captureArchive{}
	uc := NewForecastUseCase(market, testPool(t), nil, archive, nil, nil)

	res, err := uc.Forecast(context.Background(), "BTC", models.ForecastRequest{
		Timeframe: "1h", Limit: 60, NumSamples: 2,
	})
	require.NoError(t, err)

	require.Len(t, archive.records, 1)
	rec := archive.records[0]
	assert.Equal(t, "BTC", rec.Symbol)
	assert.Equal(t, res.Signal.Direction, rec.Direction)
	assert.Len(t, rec.Candles, 3)

	history, err := uc.History(context.Background(), "BTC", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHistoryWithoutArchive(t *testing.T) {
	uc := NewForecastUseCase(&fakeMarket{}, testPool(t), nil, nil, nil, nil)
	_, err := uc.History(context.Background(), "BTC", 10)
	require.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestForecastRejectsEmptySymbol(t *testing.T) {
	uc := NewForecastUseCase(&fakeMarket{}, testPool(t), nil, nil, nil, nil)
	_, err := uc.Forecast(context.Background(), "", models.ForecastRequest{Timeframe: "1h", Limit: 60})
	require.Error(t, err)
}

func TestSignalFromForecastDirections(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name      string
		close     float64
		direction string
	}{
		{"buy above threshold", 101.0, models.DirectionBuy},
		{"sell below threshold", 99.0, models.DirectionSell},
		{"hold inside band", 100.3, models.DirectionHold},
		{"hold at lower edge", 99.7, models.DirectionHold},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &models.Forecast{
				Candles:   []models.PredictedCandle{{Close: tc.close, Confidence: 0.6}},
				Timestamp: now,
			}
			sig := signalFromForecast("BTC", 100, fc)
			assert.Equal(t, tc.direction, sig.Direction)
			assert.InDelta(t, (tc.close-100)/100*100, sig.ExpectedChange, 1e-9)
			assert.InDelta(t, 60.0, sig.Confidence, 1e-9)
		})
	}
}

func TestSignalFromForecastEmptyCandles(t *testing.T) {
	sig := signalFromForecast("BTC", 100, &models.Forecast{})
	assert.Equal(t, models.DirectionHold, sig.Direction)
	assert.Zero(t, sig.ExpectedChange)
}
