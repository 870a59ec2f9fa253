package signals

import (
	"testing"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

func TestOversoldUptrendGivesBuy(t *testing.T) {
	p := NewPredictor()
	sig := p.Predict("BTC", models.IndicatorVector{
		CurrentPrice: 110,
		RSI:          22,
		MACD:         1.2,
		MACDSignal:   0.8,
		MACDDiff:     8,
		SMA20:        105,
		SMA50:        100,
		BBUpper:      120,
		BBLower:      108, // price near the lower band
		StochK:       15,
		StochD:       10,
		ATR:          2,
		Volume:       3000,
		VolumeSMA:    1500,
	})

	if sig.Direction != models.DirectionBuy {
		t.Fatalf("direction = %s, want BUY", sig.Direction)
	}
	if sig.Confidence <= 50 || sig.Confidence > 95 {
		t.Fatalf("confidence %f outside (50, 95]", sig.Confidence)
	}
	if sig.TargetPrice <= 110 {
		t.Fatalf("buy target %f must be above current price", sig.TargetPrice)
	}
	if sig.StopLoss >= 110 {
		t.Fatalf("buy stop %f must be below current price", sig.StopLoss)
	}
	if sig.ExpectedChange <= 0 {
		t.Fatalf("buy expected change %f must be positive", sig.ExpectedChange)
	}
}

func TestOverboughtDowntrendGivesSell(t *testing.T) {
	p := NewPredictor()
	sig := p.Predict("ETH", models.IndicatorVector{
		CurrentPrice: 90,
		RSI:          82,
		MACD:         -1.5,
		MACDSignal:   -0.5,
		MACDDiff:     -9,
		SMA20:        95,
		SMA50:        100,
		BBUpper:      92, // price near the upper band
		BBLower:      70,
		StochK:       90,
		StochD:       95,
		ATR:          2,
		Volume:       4000,
		VolumeSMA:    2000,
	})

	if sig.Direction != models.DirectionSell {
		t.Fatalf("direction = %s, want SELL", sig.Direction)
	}
	if sig.TargetPrice >= 90 {
		t.Fatalf("sell target %f must be below current price", sig.TargetPrice)
	}
	if sig.StopLoss <= 90 {
		t.Fatalf("sell stop %f must be above current price", sig.StopLoss)
	}
	if sig.ExpectedChange >= 0 {
		t.Fatalf("sell expected change %f must be negative", sig.ExpectedChange)
	}
}

func TestNeutralIndicatorsGiveHold(t *testing.T) {
	p := NewPredictor()
	sig := p.Predict("BTC", models.IndicatorVector{
		CurrentPrice: 100,
		RSI:          50,
		SMA20:        100,
		SMA50:        100,
		BBUpper:      102,
		BBLower:      98,
		StochK:       50,
		StochD:       50,
		ATR:          2,
	})

	if sig.Direction != models.DirectionHold {
		t.Fatalf("direction = %s, want HOLD", sig.Direction)
	}
	if sig.ExpectedChange != 0 {
		t.Fatalf("hold expected change %f, want 0", sig.ExpectedChange)
	}
	if sig.TargetPrice != 100 || sig.StopLoss != 100 {
		t.Fatalf("hold target/stop %f/%f must equal current price", sig.TargetPrice, sig.StopLoss)
	}
}

func TestZeroVectorUsesNeutralDefaults(t *testing.T) {
	p := NewPredictor()
	sig := p.Predict("BTC", models.IndicatorVector{})

	if sig.Direction != models.DirectionHold {
		t.Fatalf("empty indicators should give HOLD, got %s", sig.Direction)
	}
}

func TestConfidenceCappedAt95(t *testing.T) {
	p := NewPredictor()
	// extreme everything in the buy direction
	sig := p.Predict("BTC", models.IndicatorVector{
		CurrentPrice: 100,
		RSI:          1,
		MACD:         5,
		MACDSignal:   1,
		MACDDiff:     50,
		SMA20:        95,
		SMA50:        90,
		BBUpper:      130,
		BBLower:      100,
		StochK:       10,
		StochD:       5,
		ATR:          2,
		Volume:       10000,
		VolumeSMA:    1000,
	})

	if sig.Direction != models.DirectionBuy {
		t.Fatalf("direction = %s, want BUY", sig.Direction)
	}
	if sig.Confidence > 95 {
		t.Fatalf("confidence %f exceeds the 95 cap", sig.Confidence)
	}
}

func TestEnsembleReportsAllStrategies(t *testing.T) {
	e := NewEnsemble()
	combined, individual := e.Predict("BTC", models.IndicatorVector{
		CurrentPrice: 110,
		RSI:          25,
		MACD:         1.0,
		MACDSignal:   0.5,
		MACDDiff:     5,
		SMA20:        105,
		SMA50:        100,
		BBUpper:      120,
		BBLower:      108,
		StochK:       15,
		StochD:       10,
		ATR:          2,
		Volume:       3000,
		VolumeSMA:    1500,
	})

	if len(individual) != 3 {
		t.Fatalf("individual signals = %d, want 3", len(individual))
	}
	if combined.Direction != models.DirectionBuy {
		t.Fatalf("unanimous buy setup gave %s", combined.Direction)
	}
	if combined.Symbol != "BTC" {
		t.Fatalf("symbol %q not carried through", combined.Symbol)
	}
}

func TestEnsembleSplitVoteHolds(t *testing.T) {
	e := NewEnsemble()
	// fully neutral vector: every strategy holds, no votes either way
	combined, _ := e.Predict("BTC", models.IndicatorVector{
		CurrentPrice: 100,
		RSI:          50,
		StochK:       50,
		StochD:       50,
	})

	if combined.Direction != models.DirectionHold {
		t.Fatalf("no votes should give HOLD, got %s", combined.Direction)
	}
	if combined.Confidence != 50 {
		t.Fatalf("hold confidence = %f, want 50", combined.Confidence)
	}
}
