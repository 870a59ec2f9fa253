package forecast

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/itsgiddd/Horus/internal/diffusion"
	"github.com/itsgiddd/Horus/internal/domain/models"
)

func testConfig(lookback, horizon int) Config {
	return Config{
		LookbackWindow:  lookback,
		ForecastHorizon: horizon,
		Timesteps:       20,
		HiddenDim:       16,
		NumLayers:       1,
		DropoutRate:     0,
	}
}

func makeBars(n int, base float64) []models.Candle {
	bars := make([]models.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		price := base + 5*math.Sin(float64(i)/7)
		bars[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price * 1.002,
			Low:       price * 0.998,
			Close:     price * 1.001,
			Volume:    200000 + 1000*float64(i%50),
		}
	}
	return bars
}

func newTestForecaster(t *testing.T, cfg Config, newSim SimulatorFactory) *Forecaster {
	t.Helper()
	f, err := NewForecaster(cfg, newSim, rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("NewForecaster: %v", err)
	}
	return f
}

// fakeSim is a deterministic stand-in for the virtual economy.
type fakeSim struct {
	runs int
}

func (s *fakeSim) Reset() {}

func (s *fakeSim) Run(steps int) *models.SimulationResult {
	s.runs++
	prices := make([]float64, steps)
	for i := range prices {
		prices[i] = 100 + float64(i%10)
	}
	return &models.SimulationResult{Prices: prices}
}

func (s *fakeSim) PredictNextCandles(numCandles, scenarioCount int) ([]models.PredictedCandle, error) {
	candles := make([]models.PredictedCandle, numCandles)
	for i := range candles {
		candles[i] = models.PredictedCandle{
			Open: 100, High: 101, Low: 99, Close: 100.2, Volume: 1000,
			Confidence: 0.99,
		}
	}
	return candles, nil
}

func fakeFactory(sim *fakeSim) SimulatorFactory {
	return func(initialPrice float64, closes []float64) (Simulator, error) {
		return sim, nil
	}
}

func TestPrepareWindowsExactBoundary(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)

	conds, targets, err := f.PrepareTrainingWindows(makeBars(8, 100))
	if err != nil {
		t.Fatalf("PrepareTrainingWindows: %v", err)
	}
	if len(conds) != 1 || len(targets) != 1 {
		t.Fatalf("exactly L+H bars must give 1 window pair, got %d/%d", len(conds), len(targets))
	}
	if len(conds[0]) != 6*5 || len(targets[0]) != 2*5 {
		t.Fatalf("flattened window widths %d/%d, want 30/10", len(conds[0]), len(targets[0]))
	}

	_, _, err = f.PrepareTrainingWindows(makeBars(7, 100))
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("L+H-1 bars must fail with ErrInsufficientData, got %v", err)
	}
}

func TestNormalizationIsFittedOnce(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	bars := makeBars(20, 100)

	first, _, err := f.PrepareTrainingWindows(bars)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}

	// a second call with shifted prices must reuse the fitted statistics
	mean := append([]float64(nil), f.mean...)
	second, _, err := f.PrepareTrainingWindows(makeBars(20, 500))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	for c := range mean {
		if mean[c] != f.mean[c] {
			t.Fatal("normalizer refitted on second call")
		}
	}
	// and identical input must normalize identically
	again, _, _ := f.PrepareTrainingWindows(bars)
	for i := range first[0] {
		if first[0][i] != again[0][i] {
			t.Fatal("same bars normalized differently across calls")
		}
	}
	_ = second
}

func TestTrainSingleEpoch(t *testing.T) {
	cfg := testConfig(60, 10)
	f := newTestForecaster(t, cfg, nil)

	losses, err := f.Train(context.Background(), makeBars(70, 100), TrainOptions{
		Epochs:       1,
		BatchSize:    1,
		LearningRate: 1e-3,
	})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(losses) != 1 {
		t.Fatalf("loss history length = %d, want 1", len(losses))
	}
	if math.IsNaN(losses[0]) || math.IsInf(losses[0], 0) {
		t.Fatalf("non-finite epoch loss %f", losses[0])
	}
	if !f.IsTrained() {
		t.Fatal("one completed epoch must set the trained flag")
	}
}

func TestTrainAppendsToHistoryAcrossCalls(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	bars := makeBars(30, 100)
	opts := TrainOptions{Epochs: 2, BatchSize: 8, LearningRate: 1e-3}

	if _, err := f.Train(context.Background(), bars, opts); err != nil {
		t.Fatalf("first train: %v", err)
	}
	if _, err := f.Train(context.Background(), bars, opts); err != nil {
		t.Fatalf("second train: %v", err)
	}
	if got := len(f.History()); got != 4 {
		t.Fatalf("history length = %d after 2+2 epochs, want 4", got)
	}
}

func TestTrainHonorsContextCancellation(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Train(ctx, makeBars(30, 100), TrainOptions{Epochs: 5, BatchSize: 8, LearningRate: 1e-3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled context must abort training, got %v", err)
	}
}

func TestAugmentationAddsSimulatedWindows(t *testing.T) {
	cfg := testConfig(6, 2)
	sim := &fakeSim{}
	f := newTestForecaster(t, cfg, fakeFactory(sim))

	bars := makeBars(30, 100)
	if _, _, err := f.PrepareTrainingWindows(bars); err != nil {
		t.Fatalf("fit normalizer: %v", err)
	}

	conds, targets, err := f.simulatedWindows(bars, 2)
	if err != nil {
		t.Fatalf("simulatedWindows: %v", err)
	}
	if sim.runs != 2 {
		t.Fatalf("simulator ran %d paths, want 2", sim.runs)
	}
	// each path of L+H+extra steps yields extra+1 window pairs
	want := 2 * (extraWindowsPerPath + 1)
	if len(conds) != want || len(targets) != want {
		t.Fatalf("synthetic windows = %d/%d, want %d", len(conds), len(targets), want)
	}
}

func TestPredictUntrainedFallsBackToSimulation(t *testing.T) {
	cfg := testConfig(60, 10)
	f := newTestForecaster(t, cfg, fakeFactory(&fakeSim{}))

	fc, err := f.Predict(makeBars(200, 100), 5)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if fc.Source != "simulation" {
		t.Fatalf("untrained predict source = %q, want simulation", fc.Source)
	}
	if len(fc.Candles) != 10 {
		t.Fatalf("fallback candle count = %d, want 10", len(fc.Candles))
	}
	for i, c := range fc.Candles {
		if c.Confidence > 0.85 {
			t.Fatalf("candle %d: fallback confidence %f above 0.85 cap", i, c.Confidence)
		}
	}
}

func TestPredictUntrainedWithoutSimulatorErrors(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	_, err := f.Predict(makeBars(30, 100), 5)
	if !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("want ErrModelNotTrained, got %v", err)
	}
}

func TestPredictRequiresLookbackContext(t *testing.T) {
	f := newTestForecaster(t, testConfig(60, 10), nil)
	_, err := f.Predict(makeBars(59, 100), 5)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData, got %v", err)
	}
}

func TestPredictTrainedReportsDiffusionSource(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	bars := makeBars(30, 100)
	if _, err := f.Train(context.Background(), bars, TrainOptions{Epochs: 1, BatchSize: 8, LearningRate: 1e-3}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	fc, err := f.Predict(bars, 4)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if fc.Source != "diffusion" {
		t.Fatalf("trained predict source = %q, want diffusion", fc.Source)
	}
	if len(fc.Candles) != 2 || len(fc.MeanForecast) != 2 || len(fc.StdForecast) != 2 {
		t.Fatalf("forecast shapes %d/%d/%d, want horizon 2",
			len(fc.Candles), len(fc.MeanForecast), len(fc.StdForecast))
	}
	for i, c := range fc.Candles {
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Fatalf("candle %d: confidence %f outside [0,1]", i, c.Confidence)
		}
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	cfg := testConfig(6, 2)
	f := newTestForecaster(t, cfg, nil)
	bars := makeBars(30, 100)
	if _, err := f.Train(context.Background(), bars, TrainOptions{Epochs: 2, BatchSize: 8, LearningRate: 1e-3}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.ckpt")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g := newTestForecaster(t, cfg, nil)
	if err := g.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !g.IsTrained() {
		t.Fatal("trained flag not restored")
	}
	if len(g.History()) != len(f.History()) {
		t.Fatalf("history length %d, want %d", len(g.History()), len(f.History()))
	}
	for c := 0; c < numFeatures; c++ {
		if g.mean[c] != f.mean[c] || g.std[c] != f.std[c] {
			t.Fatal("normalization statistics not restored")
		}
	}

	fw, gw := f.proc.Network().Weights(), g.proc.Network().Weights()
	for i := range fw {
		for j := range fw[i] {
			if fw[i][j] != gw[i][j] {
				t.Fatalf("weight tensor %d differs after round trip", i)
			}
		}
	}
}

func TestCheckpointShapeMismatchRejected(t *testing.T) {
	f := newTestForecaster(t, testConfig(6, 2), nil)
	bars := makeBars(30, 100)
	if _, err := f.Train(context.Background(), bars, TrainOptions{Epochs: 1, BatchSize: 8, LearningRate: 1e-3}); err != nil {
		t.Fatalf("Train: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.ckpt")
	if err := f.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	g := newTestForecaster(t, testConfig(8, 2), nil)
	err := g.Load(path)
	if !errors.Is(err, diffusion.ErrShapeMismatch) {
		t.Fatalf("want ErrShapeMismatch, got %v", err)
	}
	if g.IsTrained() {
		t.Fatal("rejected checkpoint must not mutate the target forecaster")
	}
}
