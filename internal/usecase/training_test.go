package usecase

import (
	"context"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/pkg/cache"
	"github.com/itsgiddd/Horus/pkg/config"
)

func testTrainingUseCase(t *testing.T, market *fakeMarket, locks cache.Service) (*TrainingUseCase, *ForecasterPool) {
	t.Helper()
	simCfg := config.SimulationConfig{NumTraders: 20, Steps: 30, Volatility: 0.02}
	pool := NewForecasterPool(testModelConfig(), simCfg, t.TempDir(), rand.New(rand.NewSource(7)), nil)
	require.NoError(t, pool.EnsureCheckpointDir())

	settings := TrainingSettings{
		Interval:     time.Hour,
		Epochs:       1,
		BatchSize:    4,
		LearningRate: 1e-3,
		HistoryBars:  40,
		Timeframe:    "1h",
	}
	return NewTrainingUseCase(market, pool, locks, nil, settings, []string{"BTC", "ETH"}, nil), pool
}

func TestTrainSingleEpochRecordsModel(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(40)}
	uc, pool := testTrainingUseCase(t, market, nil)

	record, err := uc.Train(context.Background(), "BTC", 0, 0)
	require.NoError(t, err)

	assert.Equal(t, "BTC", record.Symbol)
	assert.Equal(t, 1, record.Epochs)
	assert.Equal(t, 40, record.DataPoints)
	assert.Greater(t, record.FinalLoss, 0.0)

	mf, err := pool.Get("BTC")
	require.NoError(t, err)
	assert.True(t, mf.F.IsTrained())

	if _, err := os.Stat(pool.CheckpointPath("BTC")); err != nil {
		t.Fatalf("checkpoint not written: %v", err)
	}
}

func TestTrainStatusReflectsRecords(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(40)}
	uc, _ := testTrainingUseCase(t, market, nil)

	_, err := uc.Train(context.Background(), "BTC", 1, 2)
	require.NoError(t, err)

	status := uc.Status(true)
	assert.True(t, status.Running)
	assert.InDelta(t, 1.0, status.IntervalHours, 1e-9)
	assert.Equal(t, []string{"BTC", "ETH"}, status.Symbols)
	require.Len(t, status.TrainedModels, 1)
	assert.Equal(t, "BTC", status.TrainedModels[0].Symbol)
}

func TestTrainLockPreventsConcurrentRuns(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(40)}
	locks := cache.NewMemoryCache()
	defer locks.Close()
	uc, _ := testTrainingUseCase(t, market, locks)

	ctx := context.Background()
	held, err := locks.TryLock(ctx, cache.Key("train", "BTC"), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = uc.Train(ctx, "BTC", 1, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")

	require.NoError(t, locks.Unlock(ctx, cache.Key("train", "BTC")))
	_, err = uc.Train(ctx, "BTC", 1, 2)
	require.NoError(t, err)
}

func TestAddRemoveSymbol(t *testing.T) {
	uc, _ := testTrainingUseCase(t, &fakeMarket{candles: sineCandles(40)}, nil)

	assert.False(t, uc.AddSymbol("BTC"))
	assert.True(t, uc.AddSymbol("SOL"))
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, uc.Symbols())

	assert.True(t, uc.RemoveSymbol("ETH"))
	assert.False(t, uc.RemoveSymbol("ETH"))
	assert.Equal(t, []string{"BTC", "SOL"}, uc.Symbols())
}

func TestForecastAfterTrainingUsesDiffusion(t *testing.T) {
	market := &fakeMarket{candles: sineCandles(40)}
	uc, pool := testTrainingUseCase(t, market, nil)

	_, err := uc.Train(context.Background(), "BTC", 1, 4)
	require.NoError(t, err)

	fuc := NewForecastUseCase(market, pool, nil, nil, nil, nil)
	res, err := fuc.Forecast(context.Background(), "BTC", models.ForecastRequest{
		Timeframe: "1h", Limit: 40, NumSamples: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, "diffusion", res.Forecast.Source)
	assert.True(t, res.ModelTrained)
	assert.Len(t, res.Forecast.Candles, 3)
}
