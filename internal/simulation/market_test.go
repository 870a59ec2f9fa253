package simulation

import (
	"math"
	"math/rand"
	"testing"
)

func TestPriceStaysWithinClampBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMarketDynamics(100, 0.05, 0, rng)

	lo, hi := 100*priceFloorRatio, 100*priceCeilRatio
	for i := 0; i < 10000; i++ {
		// adversarial one-sided flow
		flow := OrderFlow{BuyVolume: 1e9}
		if i%2 == 1 {
			flow = OrderFlow{SellVolume: 1e9}
		}
		ext := &ExternalFactors{NewsSentiment: 50, MacroTrend: -50}
		p := m.Step(flow, ext)
		if p < lo || p > hi {
			t.Fatalf("step %d: price %f escaped [%f, %f]", i, p, lo, hi)
		}
	}
}

func TestShockKeepsClampAndRaisesVolatility(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewMarketDynamics(100, 0.02, 0, rng)

	before := m.Volatility()
	m.Shock(0.05)
	if m.Volatility() <= before {
		t.Fatalf("volatility %f did not increase from %f", m.Volatility(), before)
	}
	if p := m.CurrentPrice(); p < 50 || p > 200 {
		t.Fatalf("shocked price %f escaped clamp", p)
	}
}

func TestNormalizeDecaysVolatilityTowardBaseline(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewMarketDynamics(100, 0.10, 0, rng)

	prev := m.Volatility()
	for i := 0; i < 200; i++ {
		m.Normalize(0.02)
		v := m.Volatility()
		if v > prev {
			t.Fatalf("iteration %d: volatility %f increased from %f", i, v, prev)
		}
		prev = v
	}
	if math.Abs(prev-0.02) > 0.01 {
		t.Fatalf("volatility %f did not converge toward baseline", prev)
	}
}

func TestStateNeutralWithShortHistory(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := NewMarketDynamics(100, 0.02, 0, rng)

	s := m.State()
	if s.RSI != 50 {
		t.Fatalf("expected neutral RSI 50, got %f", s.RSI)
	}
	if s.VolumeRatio != 1 {
		t.Fatalf("expected neutral volume ratio 1, got %f", s.VolumeRatio)
	}
	if s.Trend != 0 || s.Momentum != 0 {
		t.Fatalf("expected flat trend/momentum, got %f/%f", s.Trend, s.Momentum)
	}
}

func TestRSIBoundsOnMonotonicSeries(t *testing.T) {
	rising := make([]float64, 30)
	falling := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 100 - float64(i)
	}
	if rsi := computeRSI(rising); rsi != 100 {
		t.Fatalf("monotonic gains should give RSI 100, got %f", rsi)
	}
	if rsi := computeRSI(falling); rsi > 1e-9 {
		t.Fatalf("monotonic losses should give RSI ~0, got %f", rsi)
	}
}

func TestResetRestoresInitialConditions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := NewMarketDynamics(100, 0.02, 0.001, rng)

	for i := 0; i < 50; i++ {
		m.Step(OrderFlow{BuyVolume: 1000}, nil)
	}
	m.Reset()

	if m.CurrentPrice() != 100 {
		t.Fatalf("price %f not restored to initial", m.CurrentPrice())
	}
	if m.Volatility() != 0.02 {
		t.Fatalf("volatility %f not restored", m.Volatility())
	}
	s := m.State()
	if s.RSI != 50 {
		t.Fatalf("history not cleared: RSI %f", s.RSI)
	}
}

func TestSeedHistoryDrivesIndicators(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	m := NewMarketDynamics(100, 0.02, 0, rng)

	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 80 + float64(i) // strong uptrend into the current price
	}
	m.SeedHistory(closes)

	s := m.State()
	if s.Trend <= 0 {
		t.Fatalf("uptrend history should give positive trend, got %f", s.Trend)
	}
	if s.RSI <= 50 {
		t.Fatalf("uptrend history should give RSI above 50, got %f", s.RSI)
	}
}
