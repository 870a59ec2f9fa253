package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

func flatCandles(n int, price, volume float64) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
		}
	}
	return out
}

func trendingCandles(n int, start, step float64) []models.Candle {
	out := make([]models.Candle, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := start + float64(i)*step
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c - step/2,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func TestComputeRequiresMinBars(t *testing.T) {
	_, err := Compute(flatCandles(MinBars-1, 100, 1000))
	if err == nil {
		t.Fatalf("expected error for short history")
	}
}

func TestComputeFlatSeries(t *testing.T) {
	v, err := Compute(flatCandles(100, 100, 1000))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if v.CurrentPrice != 100 {
		t.Fatalf("price = %v", v.CurrentPrice)
	}
	if v.SMA20 != 100 || v.SMA50 != 100 {
		t.Fatalf("sma20=%v sma50=%v", v.SMA20, v.SMA50)
	}
	if math.Abs(v.EMA12-100) > 1e-9 || math.Abs(v.EMA26-100) > 1e-9 {
		t.Fatalf("ema12=%v ema26=%v", v.EMA12, v.EMA26)
	}
	if math.Abs(v.MACD) > 1e-9 || math.Abs(v.MACDDiff) > 1e-9 {
		t.Fatalf("macd=%v diff=%v", v.MACD, v.MACDDiff)
	}
	// No losses and no gains leaves RSI at the no-loss edge.
	if v.RSI != 100 && v.RSI != 50 {
		t.Fatalf("rsi = %v", v.RSI)
	}
	if v.BBUpper != 100 || v.BBLower != 100 {
		t.Fatalf("bb upper=%v lower=%v", v.BBUpper, v.BBLower)
	}
	if v.ATR != 0 {
		t.Fatalf("atr = %v", v.ATR)
	}
	if v.VolumeSMA != 1000 {
		t.Fatalf("volume sma = %v", v.VolumeSMA)
	}
}

func TestComputeUptrend(t *testing.T) {
	v, err := Compute(trendingCandles(100, 100, 1))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	if v.RSI != 100 {
		t.Fatalf("monotonic gains should pin RSI at 100, got %v", v.RSI)
	}
	if v.MACD <= 0 {
		t.Fatalf("macd should be positive in an uptrend, got %v", v.MACD)
	}
	if v.SMA20 <= v.SMA50 {
		t.Fatalf("short sma should lead long sma, got %v vs %v", v.SMA20, v.SMA50)
	}
	if v.StochK < 80 {
		t.Fatalf("stoch %%K should be near the top of the range, got %v", v.StochK)
	}
	if v.ATR <= 0 {
		t.Fatalf("atr should be positive, got %v", v.ATR)
	}
	if v.BBUpper <= v.BBMiddle || v.BBMiddle <= v.BBLower {
		t.Fatalf("bands out of order: %v %v %v", v.BBUpper, v.BBMiddle, v.BBLower)
	}
}

func TestRSIDowntrend(t *testing.T) {
	v, err := Compute(trendingCandles(100, 300, -1))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if v.RSI > 1 {
		t.Fatalf("monotonic losses should pin RSI near 0, got %v", v.RSI)
	}
}
