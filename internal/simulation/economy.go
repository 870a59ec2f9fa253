package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/pkg/logger"
)

const (
	normalizeInterval  = 20
	shockProbability   = 0.05
	volatilityBaseline = 0.02
	neutralBandPct     = 0.01
)

// Config bounds one VirtualEconomy instance.
type Config struct {
	InitialPrice    float64
	Volatility      float64
	Drift           float64
	NumTraders      int
	SimulationSteps int
	Seed            int64
}

// DefaultConfig mirrors the production simulation parameters.
func DefaultConfig(initialPrice float64) Config {
	return Config{
		InitialPrice:    initialPrice,
		Volatility:      volatilityBaseline,
		Drift:           0.0001,
		NumTraders:      100,
		SimulationSteps: 500,
		Seed:            time.Now().UnixNano(),
	}
}

// VirtualEconomy drives the agent-based market: it owns one
// MarketDynamics instance and a fixed trader population, advances
// discrete steps, and collects the run's parallel time series.
//
// Not safe for concurrent use. Scenario loops reuse the one allocated
// population sequentially; callers wanting parallel scenarios need one
// VirtualEconomy per goroutine.
type VirtualEconomy struct {
	cfg     Config
	market  *MarketDynamics
	traders []Trader
	rng     *rand.Rand
	log     *logger.Logger

	step            int
	prices          []float64
	volumes         []float64
	buyPressure     []int
	sellPressure    []int
	traderSentiment []float64
	states          []models.MarketState
}

// NewVirtualEconomy allocates the market and trader population. All
// randomness flows from the config seed, so a run is reproducible.
func NewVirtualEconomy(cfg Config, log *logger.Logger) (*VirtualEconomy, error) {
	if cfg.InitialPrice <= 0 {
		return nil, fmt.Errorf("initial price must be positive, got %f", cfg.InitialPrice)
	}
	if cfg.NumTraders <= 0 {
		return nil, fmt.Errorf("trader population must be positive, got %d", cfg.NumTraders)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &VirtualEconomy{
		cfg:     cfg,
		market:  NewMarketDynamics(cfg.InitialPrice, cfg.Volatility, cfg.Drift, rng),
		traders: NewPopulation(cfg.NumTraders, rng),
		rng:     rng,
		log:     log,
	}, nil
}

// Market exposes the underlying dynamics for history seeding.
func (e *VirtualEconomy) Market() *MarketDynamics { return e.market }

// Traders exposes the population for inspection and tests.
func (e *VirtualEconomy) Traders() []Trader { return e.traders }

// Step advances the economy by one tick: snapshot the market, let every
// agent decide and execute against the pre-update price, then feed the
// aggregate order flow into the market.
func (e *VirtualEconomy) Step() models.MarketState {
	state := e.market.State()
	price := e.market.CurrentPrice()

	var flow OrderFlow
	buys, sells := 0, 0
	sentimentSum := 0.0

	for _, t := range e.traders {
		action := e.decideSafely(t, price, state)
		switch action {
		case Buy:
			size := t.PositionSize(price, 0.02)
			if t.ExecuteTrade(Buy, price, size, e.step) {
				flow.BuyVolume += size
				buys++
			}
		case Sell:
			// capture the size before execution closes the position
			size := t.Position()
			if t.ExecuteTrade(Sell, price, size, e.step) {
				flow.SellVolume += size
				sells++
			}
		}
		sentimentSum += t.Sentiment()
	}

	ext := &ExternalFactors{
		NewsSentiment: e.rng.NormFloat64() * 0.5,
		MacroTrend:    e.rng.NormFloat64() * 0.3,
	}
	newPrice := e.market.Step(flow, ext)

	if e.rng.Float64() < shockProbability {
		magnitude := 0.02 + e.rng.Float64()*0.03
		e.market.Shock(magnitude)
		newPrice = e.market.CurrentPrice()
	}

	e.step++
	if e.step%normalizeInterval == 0 {
		e.market.Normalize(volatilityBaseline)
	}

	e.prices = append(e.prices, newPrice)
	e.volumes = append(e.volumes, flow.BuyVolume+flow.SellVolume)
	e.buyPressure = append(e.buyPressure, buys)
	e.sellPressure = append(e.sellPressure, sells)
	e.traderSentiment = append(e.traderSentiment, sentimentSum/float64(len(e.traders)))
	e.states = append(e.states, state)

	return state
}

// decideSafely treats a panicking agent decision as Hold so a single
// degenerate agent cannot abort the whole run.
func (e *VirtualEconomy) decideSafely(t Trader, price float64, state models.MarketState) (action Action) {
	defer func() {
		if r := recover(); r != nil {
			if e.log != nil {
				e.log.Warn("trader decision failed, treating as hold",
					logger.Int("trader_id", t.ID()),
					logger.Any("panic", r))
			}
			action = Hold
		}
	}()
	return t.Decide(price, state)
}

// Run executes the given number of steps (the configured default when
// steps <= 0) and returns the collected series.
func (e *VirtualEconomy) Run(steps int) *models.SimulationResult {
	if steps <= 0 {
		steps = e.cfg.SimulationSteps
	}
	for i := 0; i < steps; i++ {
		e.Step()
	}
	return e.Results()
}

// Results packages the collected series. Slices are copies so a later
// Reset cannot invalidate a returned result.
func (e *VirtualEconomy) Results() *models.SimulationResult {
	final := e.market.CurrentPrice()
	return &models.SimulationResult{
		Prices:          append([]float64(nil), e.prices...),
		Volumes:         append([]float64(nil), e.volumes...),
		BuyPressure:     append([]int(nil), e.buyPressure...),
		SellPressure:    append([]int(nil), e.sellPressure...),
		TraderSentiment: append([]float64(nil), e.traderSentiment...),
		MarketStates:    append([]models.MarketState(nil), e.states...),
		FinalPrice:      final,
		PriceChangePct:  (final - e.cfg.InitialPrice) / e.cfg.InitialPrice * 100,
	}
}

// Reset restores the market, every trader, and the collected series to
// initial conditions. Repeated calls are safe; no state leaks between
// scenario runs.
func (e *VirtualEconomy) Reset() {
	e.market.Reset()
	for _, t := range e.traders {
		t.Reset()
	}
	e.step = 0
	e.prices = e.prices[:0]
	e.volumes = e.volumes[:0]
	e.buyPressure = e.buyPressure[:0]
	e.sellPressure = e.sellPressure[:0]
	e.traderSentiment = e.traderSentiment[:0]
	e.states = e.states[:0]
}

// ScenarioProbabilities runs numScenarios independent reset+run cycles
// and reports the empirical distribution of final prices. Scenarios run
// sequentially because the agent population is reused across runs.
func (e *VirtualEconomy) ScenarioProbabilities(numScenarios, steps int) (*models.ScenarioProbabilities, error) {
	if numScenarios <= 0 {
		return nil, fmt.Errorf("scenario count must be positive, got %d", numScenarios)
	}

	outcomes := make([]models.ScenarioOutcome, 0, numScenarios)
	finals := make([]float64, 0, numScenarios)
	bullish, bearish, neutral := 0, 0, 0

	for i := 0; i < numScenarios; i++ {
		e.Reset()
		result := e.Run(steps)

		final := result.FinalPrice
		finals = append(finals, final)

		initial := e.cfg.InitialPrice
		switch {
		case math.Abs(final-initial)/initial <= neutralBandPct:
			neutral++
		case final > initial:
			bullish++
		default:
			bearish++
		}

		maxPrice, minPrice := final, final
		for _, p := range result.Prices {
			maxPrice = math.Max(maxPrice, p)
			minPrice = math.Min(minPrice, p)
		}
		var vol, trend float64
		if n := len(result.MarketStates); n > 0 {
			last := result.MarketStates[n-1]
			vol, trend = last.Volatility, last.Trend
		}
		outcomes = append(outcomes, models.ScenarioOutcome{
			ScenarioID: i,
			FinalPrice: final,
			MaxPrice:   maxPrice,
			MinPrice:   minPrice,
			Volatility: vol,
			Trend:      trend,
			PricePath:  result.Prices,
		})
	}

	meanFinal := stat.Mean(finals, nil)
	var stdFinal float64
	if len(finals) > 1 {
		stdFinal = stat.StdDev(finals, nil)
	}

	sorted := append([]float64(nil), finals...)
	sort.Float64s(sorted)

	n := float64(numScenarios)
	return &models.ScenarioProbabilities{
		Bullish:        float64(bullish) / n,
		Bearish:        float64(bearish) / n,
		Neutral:        float64(neutral) / n,
		MeanFinalPrice: meanFinal,
		StdFinalPrice:  stdFinal,
		ConfidenceInterval95: [2]float64{
			percentile(sorted, 0.025),
			percentile(sorted, 0.975),
		},
		Scenarios: outcomes,
	}, nil
}

// PredictNextCandles runs scenarioCount independent short simulations of
// numCandles steps and averages the synthetic candles per index across
// scenarios. Confidence is dispersion-based: 1 - std(closes)/mean(closes).
func (e *VirtualEconomy) PredictNextCandles(numCandles, scenarioCount int) ([]models.PredictedCandle, error) {
	if numCandles <= 0 || scenarioCount <= 0 {
		return nil, fmt.Errorf("candle count and scenario count must be positive, got %d/%d", numCandles, scenarioCount)
	}

	paths := make([][]models.PredictedCandle, scenarioCount)
	for s := 0; s < scenarioCount; s++ {
		e.Reset()
		result := e.Run(numCandles)
		paths[s] = candlesFromPath(result.Prices, result.Volumes, e.cfg.InitialPrice)
	}

	out := make([]models.PredictedCandle, numCandles)
	closes := make([]float64, scenarioCount)
	for i := 0; i < numCandles; i++ {
		var c models.PredictedCandle
		for s := 0; s < scenarioCount; s++ {
			p := paths[s][i]
			c.Open += p.Open
			c.High += p.High
			c.Low += p.Low
			c.Close += p.Close
			c.Volume += p.Volume
			closes[s] = p.Close
		}
		inv := 1.0 / float64(scenarioCount)
		c.Open *= inv
		c.High *= inv
		c.Low *= inv
		c.Close *= inv
		c.Volume *= inv

		meanClose := stat.Mean(closes, nil)
		var stdClose float64
		if scenarioCount > 1 {
			stdClose = stat.StdDev(closes, nil)
		}
		if meanClose > 0 {
			c.Confidence = clamp01(1 - stdClose/meanClose)
		}
		out[i] = c
	}
	return out, nil
}

// candlesFromPath synthesizes OHLC bars from a scalar price path: each
// bar opens at the previous close and draws high/low from the step's
// extremes.
func candlesFromPath(prices, volumes []float64, initialPrice float64) []models.PredictedCandle {
	candles := make([]models.PredictedCandle, len(prices))
	prev := initialPrice
	for i, close := range prices {
		high := math.Max(prev, close)
		low := math.Min(prev, close)
		var vol float64
		if i < len(volumes) {
			vol = volumes[i]
		}
		candles[i] = models.PredictedCandle{
			Open:   prev,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: vol,
		}
		prev = close
	}
	return candles
}

// TraderStatistics aggregates population-level outcomes for the current
// run.
func (e *VirtualEconomy) TraderStatistics() models.TraderStatistics {
	stats := models.TraderStatistics{TotalTraders: len(e.traders)}
	wins, losses := 0, 0
	for _, t := range e.traders {
		if t.Position() > 0 {
			stats.ActivePositions++
		}
		stats.TotalCapital += t.Capital() + t.Position()*e.market.CurrentPrice()
		stats.TotalTrades += len(t.Ledger())
		wins += t.WinCount()
		losses += t.LossCount()
	}
	if total := wins + losses; total > 0 {
		stats.WinRate = float64(wins) / float64(total)
	}
	return stats
}

// percentile reads an empirical quantile from an already-sorted slice
// using nearest-rank interpolation.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
