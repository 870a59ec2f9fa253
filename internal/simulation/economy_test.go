package simulation

import (
	"math"
	"testing"
)

func newTestEconomy(t *testing.T, seed int64) *VirtualEconomy {
	t.Helper()
	cfg := Config{
		InitialPrice:    100,
		Volatility:      0.02,
		Drift:           0.0001,
		NumTraders:      100,
		SimulationSteps: 50,
		Seed:            seed,
	}
	econ, err := NewVirtualEconomy(cfg, nil)
	if err != nil {
		t.Fatalf("NewVirtualEconomy: %v", err)
	}
	return econ
}

func TestEconomyRejectsInvalidConfig(t *testing.T) {
	if _, err := NewVirtualEconomy(Config{InitialPrice: 0, NumTraders: 10}, nil); err == nil {
		t.Fatal("zero initial price must be rejected")
	}
	if _, err := NewVirtualEconomy(Config{InitialPrice: 100, NumTraders: 0}, nil); err == nil {
		t.Fatal("empty population must be rejected")
	}
}

func TestRunCollectsParallelSeries(t *testing.T) {
	econ := newTestEconomy(t, 1)
	result := econ.Run(80)

	if len(result.Prices) != 80 {
		t.Fatalf("prices length = %d, want 80", len(result.Prices))
	}
	for _, n := range []int{
		len(result.Volumes), len(result.BuyPressure),
		len(result.SellPressure), len(result.TraderSentiment),
		len(result.MarketStates),
	} {
		if n != 80 {
			t.Fatalf("series lengths diverge: %d != 80", n)
		}
	}
	if result.FinalPrice != result.Prices[79] {
		t.Fatalf("final price %f != last series entry %f", result.FinalPrice, result.Prices[79])
	}
	wantPct := (result.FinalPrice - 100) / 100 * 100
	if math.Abs(result.PriceChangePct-wantPct) > 1e-9 {
		t.Fatalf("price change pct = %f, want %f", result.PriceChangePct, wantPct)
	}
}

func TestRunIsReproducibleFromSeed(t *testing.T) {
	a := newTestEconomy(t, 99).Run(60)
	b := newTestEconomy(t, 99).Run(60)

	for i := range a.Prices {
		if a.Prices[i] != b.Prices[i] {
			t.Fatalf("step %d diverged: %f vs %f", i, a.Prices[i], b.Prices[i])
		}
	}
}

func TestResetClearsSeriesAndPopulation(t *testing.T) {
	econ := newTestEconomy(t, 3)
	econ.Run(60)
	econ.Reset()

	result := econ.Results()
	if len(result.Prices) != 0 {
		t.Fatalf("series not cleared: %d entries", len(result.Prices))
	}
	if econ.Market().CurrentPrice() != 100 {
		t.Fatalf("market price %f not restored", econ.Market().CurrentPrice())
	}
	for _, tr := range econ.Traders() {
		if tr.Position() != 0 || len(tr.Ledger()) != 0 {
			t.Fatalf("trader %d state leaked across reset", tr.ID())
		}
	}
}

func TestScenarioProbabilitiesSingleRun(t *testing.T) {
	econ := newTestEconomy(t, 5)
	probs, err := econ.ScenarioProbabilities(1, 30)
	if err != nil {
		t.Fatalf("ScenarioProbabilities: %v", err)
	}

	for _, f := range []float64{probs.Bullish, probs.Bearish, probs.Neutral} {
		if f != 0 && f != 1 {
			t.Fatalf("single-scenario fraction %f must be exactly 0 or 1", f)
		}
	}
	if sum := probs.Bullish + probs.Bearish + probs.Neutral; sum != 1 {
		t.Fatalf("fractions sum to %f, want 1", sum)
	}
	if len(probs.Scenarios) != 1 {
		t.Fatalf("scenario summaries = %d, want 1", len(probs.Scenarios))
	}
}

func TestScenarioProbabilitiesDistribution(t *testing.T) {
	econ := newTestEconomy(t, 7)
	probs, err := econ.ScenarioProbabilities(20, 30)
	if err != nil {
		t.Fatalf("ScenarioProbabilities: %v", err)
	}

	if sum := probs.Bullish + probs.Bearish + probs.Neutral; math.Abs(sum-1) > 1e-9 {
		t.Fatalf("fractions sum to %f", sum)
	}
	if probs.ConfidenceInterval95[0] > probs.ConfidenceInterval95[1] {
		t.Fatalf("CI bounds inverted: %v", probs.ConfidenceInterval95)
	}
	if probs.MeanFinalPrice < probs.ConfidenceInterval95[0] || probs.MeanFinalPrice > probs.ConfidenceInterval95[1] {
		t.Fatalf("mean %f outside 95%% CI %v", probs.MeanFinalPrice, probs.ConfidenceInterval95)
	}
	if probs.StdFinalPrice < 0 {
		t.Fatalf("negative std %f", probs.StdFinalPrice)
	}
}

func TestPredictNextCandlesShapeAndSanity(t *testing.T) {
	econ := newTestEconomy(t, 9)
	candles, err := econ.PredictNextCandles(10, 5)
	if err != nil {
		t.Fatalf("PredictNextCandles: %v", err)
	}
	if len(candles) != 10 {
		t.Fatalf("candle count = %d, want 10", len(candles))
	}
	for i, c := range candles {
		if c.High < c.Low {
			t.Fatalf("candle %d: high %f below low %f", i, c.High, c.Low)
		}
		if c.High < c.Close || c.Low > c.Close {
			t.Fatalf("candle %d: close %f outside [%f, %f]", i, c.Close, c.Low, c.High)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Fatalf("candle %d: confidence %f outside [0,1]", i, c.Confidence)
		}
	}
}

func TestTraderStatisticsAggregation(t *testing.T) {
	econ := newTestEconomy(t, 13)
	econ.Run(100)

	stats := econ.TraderStatistics()
	if stats.TotalTraders != 100 {
		t.Fatalf("total traders = %d, want 100", stats.TotalTraders)
	}
	if stats.TotalCapital <= 0 {
		t.Fatalf("aggregate capital %f must be positive", stats.TotalCapital)
	}
	if stats.WinRate < 0 || stats.WinRate > 1 {
		t.Fatalf("win rate %f outside [0,1]", stats.WinRate)
	}
}
