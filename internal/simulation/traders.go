package simulation

import (
	"math"
	"math/rand"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// Action is a trading decision for one step.
type Action int

const (
	Hold Action = 0
	Buy  Action = 1
	Sell Action = -1
)

// TraderType tags the five decision policies.
type TraderType string

const (
	TrendFollowerType TraderType = "trend_follower"
	MeanReverterType  TraderType = "mean_reverter"
	ScalpTraderType   TraderType = "scalp"
	SwingTraderType   TraderType = "swing"
	InstitutionalType TraderType = "institutional"
)

// Trade is one executed entry or exit in an agent's append-only ledger.
type Trade struct {
	Action string
	Price  float64
	Size   float64
	PnL    float64
	Step   int
}

// Trader is a market participant. Agents hold no reference back to the
// simulation; the driver passes the current price and market state into
// Decide each step and applies the result.
type Trader interface {
	ID() int
	Type() TraderType
	Decide(price float64, state models.MarketState) Action
	PositionSize(price, stopLossPct float64) float64
	ExecuteTrade(action Action, price, size float64, step int) bool
	Position() float64
	Capital() float64
	Sentiment() float64
	WinCount() int
	LossCount() int
	Ledger() []Trade
	Reset()
}

// baseTrader carries the shared capital/position/ledger model. The design
// is long-only and whole-position-only: Buy requires a flat book, Sell
// always closes the entire position.
type baseTrader struct {
	id             int
	traderType     TraderType
	capital        float64
	initialCapital float64
	riskTolerance  float64
	position       float64
	entryPrice     float64
	sentiment      float64
	trades         []Trade
	winCount       int
	lossCount      int
}

func newBaseTrader(id int, tt TraderType, capital, riskTolerance float64) baseTrader {
	return baseTrader{
		id:             id,
		traderType:     tt,
		capital:        capital,
		initialCapital: capital,
		riskTolerance:  riskTolerance,
	}
}

func (b *baseTrader) ID() int            { return b.id }
func (b *baseTrader) Type() TraderType   { return b.traderType }
func (b *baseTrader) Position() float64  { return b.position }
func (b *baseTrader) Capital() float64   { return b.capital }
func (b *baseTrader) Sentiment() float64 { return b.sentiment }
func (b *baseTrader) WinCount() int      { return b.winCount }
func (b *baseTrader) LossCount() int     { return b.lossCount }
func (b *baseTrader) Ledger() []Trade    { return b.trades }

// PositionSize derives a risk-based size: risk_amount / (price * stop),
// capped at half the capital's worth of the asset.
func (b *baseTrader) PositionSize(price, stopLossPct float64) float64 {
	priceRisk := price * stopLossPct
	if priceRisk <= 0 {
		return 0
	}
	size := b.capital * b.riskTolerance / priceRisk
	return math.Min(size, b.capital/price*0.5)
}

// ExecuteTrade applies a Buy or Sell against the given price. Returns
// false, with no state mutated, when the action is not executable.
func (b *baseTrader) ExecuteTrade(action Action, price, size float64, step int) bool {
	switch action {
	case Buy:
		if b.position > 0 {
			return false
		}
		cost := price * size
		if size <= 0 || cost > b.capital {
			return false
		}
		b.position = size
		b.entryPrice = price
		b.capital -= cost
		b.trades = append(b.trades, Trade{Action: "BUY", Price: price, Size: size, Step: step})
		return true

	case Sell:
		if b.position <= 0 {
			return false
		}
		pnl := (price - b.entryPrice) * b.position
		if pnl > 0 {
			b.winCount++
		} else {
			b.lossCount++
		}
		b.capital += price * b.position
		b.trades = append(b.trades, Trade{Action: "SELL", Price: price, Size: b.position, PnL: pnl, Step: step})
		b.position = 0
		b.entryPrice = 0
		return true
	}
	return false
}

func (b *baseTrader) pnlPct(price float64) float64 {
	if b.entryPrice == 0 {
		return 0
	}
	return (price - b.entryPrice) / b.entryPrice
}

// Reset restores the initial capital, flat position, zero sentiment and
// an empty ledger. Exhaustive by design: agents are reused across
// scenario runs rather than reallocated.
func (b *baseTrader) Reset() {
	b.capital = b.initialCapital
	b.position = 0
	b.entryPrice = 0
	b.sentiment = 0
	b.trades = b.trades[:0]
	b.winCount = 0
	b.lossCount = 0
}

// ---- TrendFollower ----

// TrendFollower rides the SMA20/SMA50 trend with a sentiment that decays
// when the trend is weak.
type TrendFollower struct {
	baseTrader
	trendThreshold float64
}

func NewTrendFollower(id int, capital float64) *TrendFollower {
	return &TrendFollower{
		baseTrader:     newBaseTrader(id, TrendFollowerType, capital, 0.025),
		trendThreshold: 0.005,
	}
}

func (t *TrendFollower) Decide(price float64, state models.MarketState) Action {
	switch {
	case state.Trend > t.trendThreshold:
		t.sentiment = math.Min(1.0, state.Trend*2)
	case state.Trend < -t.trendThreshold:
		t.sentiment = math.Max(-1.0, state.Trend*2)
	default:
		t.sentiment *= 0.8
	}

	switch {
	case t.sentiment > 0.6 && t.position == 0:
		return Buy
	case t.sentiment < -0.4 && t.position > 0:
		return Sell
	case t.position > 0 && t.pnlPct(price) < -0.02:
		return Sell
	}
	return Hold
}

// ---- MeanReverter ----

// MeanReverter fades RSI extremes and large z-score deviations from the
// trailing mean.
type MeanReverter struct {
	baseTrader
	overbought float64
	oversold   float64
}

func NewMeanReverter(id int, capital float64) *MeanReverter {
	return &MeanReverter{
		baseTrader: newBaseTrader(id, MeanReverterType, capital, 0.02),
		overbought: 70,
		oversold:   30,
	}
}

func (m *MeanReverter) Decide(price float64, state models.MarketState) Action {
	switch {
	case state.RSI < m.oversold:
		m.sentiment = (m.oversold - state.RSI) / 30
	case state.RSI > m.overbought:
		m.sentiment = -(state.RSI - m.overbought) / 30
	default:
		m.sentiment *= 0.7
	}
	if math.Abs(state.DistanceFromMean) > 2 {
		if state.DistanceFromMean > 0 {
			m.sentiment -= 0.3
		} else {
			m.sentiment += 0.3
		}
	}

	switch {
	case m.sentiment > 0.5 && m.position == 0:
		return Buy
	case m.sentiment < -0.5 && m.position > 0:
		return Sell
	case m.position > 0:
		if pnl := m.pnlPct(price); pnl > 0.015 || pnl < -0.02 {
			return Sell
		}
	}
	return Hold
}

// ---- ScalpTrader ----

// ScalpTrader enters opportunistically under elevated volatility with a
// random gate, and exits on a tight profit/stop bracket.
type ScalpTrader struct {
	baseTrader
	profitTarget float64
	stopLoss     float64
	rng          *rand.Rand
}

func NewScalpTrader(id int, capital float64, rng *rand.Rand) *ScalpTrader {
	return &ScalpTrader{
		baseTrader:   newBaseTrader(id, ScalpTraderType, capital, 0.01),
		profitTarget: 0.003,
		stopLoss:     0.002,
		rng:          rng,
	}
}

func (s *ScalpTrader) Decide(price float64, state models.MarketState) Action {
	if s.position == 0 {
		if state.Volatility > 0.005 && s.rng.Float64() > 0.7 && state.Momentum > 0 {
			return Buy
		}
		return Hold
	}
	if pnl := s.pnlPct(price); pnl >= s.profitTarget || pnl <= -s.stopLoss {
		return Sell
	}
	return Hold
}

// ---- SwingTrader ----

// SwingTrader holds between 10 and 50 steps, exiting early only on a
// +4%/-3% bracket and always at the max holding period.
type SwingTrader struct {
	baseTrader
	holdingPeriod int
	maxHolding    int
	minHolding    int
}

func NewSwingTrader(id int, capital float64) *SwingTrader {
	return &SwingTrader{
		baseTrader: newBaseTrader(id, SwingTraderType, capital, 0.03),
		maxHolding: 50,
		minHolding: 10,
	}
}

func (s *SwingTrader) Decide(price float64, state models.MarketState) Action {
	if s.position > 0 {
		s.holdingPeriod++
		pnl := s.pnlPct(price)
		switch {
		case pnl > 0.04 && s.holdingPeriod >= s.minHolding:
			return Sell
		case pnl < -0.03:
			return Sell
		case s.holdingPeriod >= s.maxHolding:
			return Sell
		}
		return Hold
	}

	s.holdingPeriod = 0
	if state.Trend > 0.01 && state.RSI > 40 && state.RSI < 65 {
		return Buy
	}
	return Hold
}

func (s *SwingTrader) Reset() {
	s.baseTrader.Reset()
	s.holdingPeriod = 0
}

// ---- InstitutionalTrader ----

// InstitutionalTrader gates entries on trend, MACD and volume-ratio
// confirmation and exits on a wide +5%/-2.5% bracket. Order size is
// conceptually limited to 10% of modeled market volume; position sizing
// already keeps single orders well under that bound.
type InstitutionalTrader struct {
	baseTrader
	orderSizeLimit float64
}

func NewInstitutionalTrader(id int, capital float64) *InstitutionalTrader {
	return &InstitutionalTrader{
		baseTrader:     newBaseTrader(id, InstitutionalType, capital, 0.015),
		orderSizeLimit: 0.1,
	}
}

func (i *InstitutionalTrader) Decide(price float64, state models.MarketState) Action {
	if i.position == 0 {
		if state.Trend > 0.008 && state.MACD > 0 && state.VolumeRatio > 1.2 {
			return Buy
		}
		return Hold
	}
	if pnl := i.pnlPct(price); pnl > 0.05 || pnl < -0.025 {
		return Sell
	}
	return Hold
}

// populationMix is the fixed composition: fractions of the requested
// population per type, applied once at construction.
var populationMix = []struct {
	fraction float64
	build    func(id int, capital float64, rng *rand.Rand) Trader
}{
	{0.25, func(id int, c float64, _ *rand.Rand) Trader { return NewTrendFollower(id, c) }},
	{0.25, func(id int, c float64, _ *rand.Rand) Trader { return NewMeanReverter(id, c) }},
	{0.20, func(id int, c float64, rng *rand.Rand) Trader { return NewScalpTrader(id, c*0.5, rng) }},
	{0.20, func(id int, c float64, _ *rand.Rand) Trader { return NewSwingTrader(id, c*1.2) }},
	{0.10, func(id int, c float64, _ *rand.Rand) Trader { return NewInstitutionalTrader(id, c*10) }},
}

// NewPopulation builds the proportional trader mix (25/25/20/20/10) with
// randomized per-agent base capital in [5000, 50000).
func NewPopulation(numTraders int, rng *rand.Rand) []Trader {
	traders := make([]Trader, 0, numTraders)
	id := 0
	for _, mix := range populationMix {
		count := int(float64(numTraders) * mix.fraction)
		for i := 0; i < count; i++ {
			capital := 5000 + rng.Float64()*45000
			traders = append(traders, mix.build(id, capital, rng))
			id++
		}
	}
	return traders
}
