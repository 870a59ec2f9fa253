package simulation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

func TestBuyRejectedWhenHoldingPosition(t *testing.T) {
	tr := NewTrendFollower(1, 10000)

	if !tr.ExecuteTrade(Buy, 100, 10, 0) {
		t.Fatal("first buy should succeed")
	}
	capitalAfter := tr.Capital()
	if tr.ExecuteTrade(Buy, 100, 10, 1) {
		t.Fatal("buy while holding must fail")
	}
	if tr.Capital() != capitalAfter || tr.Position() != 10 {
		t.Fatal("failed buy must not mutate state")
	}
}

func TestSellRejectedWhenFlat(t *testing.T) {
	tr := NewMeanReverter(1, 10000)
	if tr.ExecuteTrade(Sell, 100, 5, 0) {
		t.Fatal("sell while flat must fail")
	}
	if len(tr.Ledger()) != 0 {
		t.Fatal("failed sell must not append to the ledger")
	}
}

func TestBuyRejectedWhenCostExceedsCapital(t *testing.T) {
	tr := NewSwingTrader(1, 1000)
	if tr.ExecuteTrade(Buy, 100, 20, 0) {
		t.Fatal("buy costing 2000 against 1000 capital must fail")
	}
}

func TestSellClosesEntirePositionAndRealizesPnl(t *testing.T) {
	tr := NewTrendFollower(1, 10000)
	tr.ExecuteTrade(Buy, 100, 10, 0)

	if !tr.ExecuteTrade(Sell, 110, tr.Position(), 1) {
		t.Fatal("sell while holding should succeed")
	}
	if tr.Position() != 0 {
		t.Fatalf("sell must close the whole position, got %f", tr.Position())
	}
	if tr.WinCount() != 1 || tr.LossCount() != 0 {
		t.Fatalf("profitable exit must count as win, got %d/%d", tr.WinCount(), tr.LossCount())
	}
	// 10000 - 1000 entry + 1100 exit
	if math.Abs(tr.Capital()-10100) > 1e-9 {
		t.Fatalf("capital after round trip = %f, want 10100", tr.Capital())
	}
	ledger := tr.Ledger()
	if len(ledger) != 2 || ledger[1].PnL != 100 {
		t.Fatalf("ledger %+v missing realized pnl", ledger)
	}
}

func TestPositionSizeCappedAtHalfCapital(t *testing.T) {
	tr := NewScalpTrader(1, 10000, rand.New(rand.NewSource(1)))

	// tiny stop makes the uncapped size enormous
	size := tr.PositionSize(100, 0.0001)
	if want := 10000.0 / 100 * 0.5; math.Abs(size-want) > 1e-9 {
		t.Fatalf("size = %f, want cap %f", size, want)
	}

	// wide stop keeps the risk-based size under the cap
	size = tr.PositionSize(100, 0.5)
	if want := 10000 * 0.01 / (100 * 0.5); math.Abs(size-want) > 1e-9 {
		t.Fatalf("size = %f, want risk-based %f", size, want)
	}
}

func TestTrendFollowerDecisions(t *testing.T) {
	tr := NewTrendFollower(1, 10000)

	state := models.MarketState{Trend: 0.5}
	if got := tr.Decide(100, state); got != Buy {
		t.Fatalf("strong uptrend while flat should buy, got %v", got)
	}
	tr.ExecuteTrade(Buy, 100, 10, 0)

	state = models.MarketState{Trend: -0.5}
	if got := tr.Decide(100, state); got != Sell {
		t.Fatalf("strong downtrend while long should sell, got %v", got)
	}
}

func TestTrendFollowerStopLoss(t *testing.T) {
	tr := NewTrendFollower(1, 10000)
	tr.ExecuteTrade(Buy, 100, 10, 0)

	// weak trend keeps sentiment decaying, price down 3% trips the stop
	if got := tr.Decide(97, models.MarketState{Trend: 0}); got != Sell {
		t.Fatalf("3%% drawdown should trip the stop-loss, got %v", got)
	}
}

func TestMeanReverterBuysOversold(t *testing.T) {
	tr := NewMeanReverter(1, 10000)

	state := models.MarketState{RSI: 10, DistanceFromMean: -3}
	if got := tr.Decide(100, state); got != Buy {
		t.Fatalf("deeply oversold while flat should buy, got %v", got)
	}
}

func TestMeanReverterTakesProfitBracket(t *testing.T) {
	tr := NewMeanReverter(1, 10000)
	tr.ExecuteTrade(Buy, 100, 10, 0)

	neutral := models.MarketState{RSI: 50}
	if got := tr.Decide(102, neutral); got != Sell {
		t.Fatalf("+2%% above the +1.5%% target should sell, got %v", got)
	}
}

func TestScalpTraderBracketExits(t *testing.T) {
	tr := NewScalpTrader(1, 10000, rand.New(rand.NewSource(1)))
	tr.ExecuteTrade(Buy, 100, 5, 0)

	quiet := models.MarketState{}
	if got := tr.Decide(100.4, quiet); got != Sell {
		t.Fatalf("+0.4%% should hit the profit target, got %v", got)
	}
	if got := tr.Decide(99.7, quiet); got != Sell {
		t.Fatalf("-0.3%% should hit the stop, got %v", got)
	}
	if got := tr.Decide(100.1, quiet); got != Hold {
		t.Fatalf("inside the bracket should hold, got %v", got)
	}
}

func TestSwingTraderHoldingPeriodBounds(t *testing.T) {
	tr := NewSwingTrader(1, 100000)
	tr.ExecuteTrade(Buy, 100, 10, 0)

	// +5% before the minimum holding period is still a hold
	flat := models.MarketState{}
	for i := 0; i < 8; i++ {
		if got := tr.Decide(105, flat); got != Hold {
			t.Fatalf("step %d: early profit exit before min holding, got %v", i, got)
		}
	}
	// crossing the minimum enables the profit exit
	tr.Decide(105, flat)
	if got := tr.Decide(105, flat); got != Sell {
		t.Fatalf("profit exit past min holding should sell, got %v", got)
	}
}

func TestSwingTraderForcedExitAtMaxHolding(t *testing.T) {
	tr := NewSwingTrader(1, 100000)
	tr.ExecuteTrade(Buy, 100, 10, 0)

	flat := models.MarketState{}
	var got Action
	for i := 0; i < 50; i++ {
		got = tr.Decide(100.5, flat) // inside the bracket the whole time
		if got == Sell {
			break
		}
	}
	if got != Sell {
		t.Fatal("max holding period must force an exit")
	}
}

func TestInstitutionalEntryRequiresConfirmation(t *testing.T) {
	tr := NewInstitutionalTrader(1, 100000)

	confirmed := models.MarketState{Trend: 0.01, MACD: 0.5, VolumeRatio: 1.5}
	if got := tr.Decide(100, confirmed); got != Buy {
		t.Fatalf("confirmed setup should buy, got %v", got)
	}

	tr2 := NewInstitutionalTrader(2, 100000)
	noVolume := models.MarketState{Trend: 0.01, MACD: 0.5, VolumeRatio: 0.8}
	if got := tr2.Decide(100, noVolume); got != Hold {
		t.Fatalf("missing volume confirmation should hold, got %v", got)
	}
}

func TestPopulationComposition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	traders := NewPopulation(100, rng)

	counts := map[TraderType]int{}
	for _, tr := range traders {
		counts[tr.Type()]++
	}

	want := map[TraderType]int{
		TrendFollowerType: 25,
		MeanReverterType:  25,
		ScalpTraderType:   20,
		SwingTraderType:   20,
		InstitutionalType: 10,
	}
	for tt, n := range want {
		if counts[tt] != n {
			t.Fatalf("%s count = %d, want %d", tt, counts[tt], n)
		}
	}
}

func TestResetRestoresTraderState(t *testing.T) {
	tr := NewSwingTrader(1, 10000)
	tr.ExecuteTrade(Buy, 100, 10, 0)
	tr.Decide(100, models.MarketState{}) // advances holding period
	tr.ExecuteTrade(Sell, 90, 10, 1)

	tr.Reset()

	if tr.Capital() != 10000 || tr.Position() != 0 {
		t.Fatalf("capital/position not restored: %f/%f", tr.Capital(), tr.Position())
	}
	if tr.WinCount() != 0 || tr.LossCount() != 0 || len(tr.Ledger()) != 0 {
		t.Fatal("counters and ledger not cleared")
	}
	if tr.holdingPeriod != 0 {
		t.Fatal("holding period not cleared")
	}
}
