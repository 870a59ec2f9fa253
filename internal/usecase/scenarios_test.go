package usecase

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/pkg/config"
)

func TestScenarioRunProducesDistribution(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(100)}
	simCfg := config.SimulationConfig{NumTraders: 20, Steps: 30, Volatility: 0.02}
	uc := NewScenarioUseCase(market, simCfg, rand.New(rand.NewSource(3)), nil, nil)

	res, err := uc.Run(context.Background(), "BTC", models.ScenarioRequest{
		Timeframe: "1h", NumScenarios: 5, Steps: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, "BTC", res.Symbol)
	assert.Greater(t, res.CurrentPrice, 0.0)

	p := res.Probabilities
	require.NotNil(t, p)
	assert.InDelta(t, 1.0, p.Bullish+p.Bearish+p.Neutral, 1e-9)
	assert.Len(t, p.Scenarios, 5)
	assert.LessOrEqual(t, p.ConfidenceInterval95[0], p.ConfidenceInterval95[1])
	for _, s := range p.Scenarios {
		assert.Len(t, s.PricePath, 20)
		assert.GreaterOrEqual(t, s.MaxPrice, s.MinPrice)
	}

	assert.Equal(t, 20, res.Traders.TotalTraders)
}

func TestScenarioRunRejectsEmptySymbol(t *testing.T) {
	uc := NewScenarioUseCase(&fakeMarket{}, config.SimulationConfig{NumTraders: 10}, rand.New(rand.NewSource(1)), nil, nil)
	_, err := uc.Run(context.Background(), "", models.ScenarioRequest{NumScenarios: 1, Steps: 5})
	require.Error(t, err)
}
