package simulation

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

const (
	baselineVolatility = 0.02
	priceFloorRatio    = 0.5
	priceCeilRatio     = 2.0
)

// OrderFlow is the aggregate of one step's executed trades.
type OrderFlow struct {
	BuyVolume  float64
	SellVolume float64
}

// ExternalFactors are exogenous inputs to one price update.
type ExternalFactors struct {
	NewsSentiment float64
	MacroTrend    float64
}

// MarketDynamics is the single-asset price-formation engine. It converts
// aggregate order flow, a Gaussian random walk, and exogenous shocks into
// a new price, and derives its own technical state from the trailing
// price/volume history. The price is hard-clamped to
// [0.5, 2.0] x initial; violations are clamped silently.
type MarketDynamics struct {
	initialPrice  float64
	currentPrice  float64
	volatility    float64
	drift         float64
	priceHistory  []float64
	volumeHistory []float64

	rng *rand.Rand
}

// NewMarketDynamics seeds the engine at initialPrice with the given
// per-step volatility.
func NewMarketDynamics(initialPrice, volatility, drift float64, rng *rand.Rand) *MarketDynamics {
	return &MarketDynamics{
		initialPrice: initialPrice,
		currentPrice: initialPrice,
		volatility:   volatility,
		drift:        drift,
		priceHistory: []float64{initialPrice},
		rng:          rng,
	}
}

// CurrentPrice returns the latest price.
func (m *MarketDynamics) CurrentPrice() float64 { return m.currentPrice }

// InitialPrice returns the anchor price the clamp band is derived from.
func (m *MarketDynamics) InitialPrice() float64 { return m.initialPrice }

// Volatility returns the current per-step volatility.
func (m *MarketDynamics) Volatility() float64 { return m.volatility }

// SeedHistory replaces the price history with observed closes so derived
// indicators start from real market context. The last close becomes the
// current price.
func (m *MarketDynamics) SeedHistory(closes []float64) {
	if len(closes) == 0 {
		return
	}
	m.priceHistory = append(m.priceHistory[:0], closes...)
	m.currentPrice = closes[len(closes)-1]
}

func (m *MarketDynamics) priceImpact(flow OrderFlow) float64 {
	total := flow.BuyVolume + flow.SellVolume
	if total == 0 {
		return 0
	}
	net := (flow.BuyVolume - flow.SellVolume) / total
	return net * m.volatility * (0.5 + m.rng.Float64())
}

// Step applies one price update from the given order flow and optional
// external factors, returning the new (clamped) price.
func (m *MarketDynamics) Step(flow OrderFlow, ext *ExternalFactors) float64 {
	total := flow.BuyVolume + flow.SellVolume
	if total > 0 {
		m.volumeHistory = append(m.volumeHistory, total)
	} else {
		m.volumeHistory = append(m.volumeHistory, m.averageVolume()*0.3)
	}

	change := m.priceImpact(flow)
	change += m.drift + m.rng.NormFloat64()*m.volatility
	if ext != nil {
		change += ext.NewsSentiment*0.001 + ext.MacroTrend*0.0005
	}

	m.currentPrice *= 1 + change
	m.currentPrice = math.Max(m.currentPrice, m.initialPrice*priceFloorRatio)
	m.currentPrice = math.Min(m.currentPrice, m.initialPrice*priceCeilRatio)

	m.priceHistory = append(m.priceHistory, m.currentPrice)
	return m.currentPrice
}

// State derives the technical snapshot from the trailing history alone.
// Before 20 observed prices it reports a neutral state.
func (m *MarketDynamics) State() models.MarketState {
	if len(m.priceHistory) < 20 {
		return models.MarketState{
			Price:       m.currentPrice,
			Volatility:  m.volatility,
			RSI:         50,
			VolumeRatio: 1.0,
		}
	}

	prices := m.priceHistory
	if len(prices) > 100 {
		prices = prices[len(prices)-100:]
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	vol := m.volatility
	if len(returns) > 1 {
		vol = stat.StdDev(returns, nil)
	}

	sma20 := mean(prices[len(prices)-20:])
	sma50 := sma20
	if len(prices) >= 50 {
		sma50 = mean(prices[len(prices)-50:])
	}
	trend := 0.0
	if sma50 > 0 {
		trend = (sma20 - sma50) / sma50
	}

	rsi := 50.0
	if len(prices) >= 14 {
		rsi = computeRSI(prices[len(prices)-14:])
	}

	momentum := 0.0
	if len(prices) >= 10 {
		base := prices[len(prices)-10]
		momentum = (prices[len(prices)-1] - base) / base
	}

	volumeRatio := 1.0
	if len(m.volumeHistory) >= 20 {
		avg := mean(m.volumeHistory[len(m.volumeHistory)-20:])
		if avg > 0 {
			volumeRatio = m.volumeHistory[len(m.volumeHistory)-1] / avg
		}
	}

	meanPrice := mean(prices)
	stdPrice := stat.StdDev(prices, nil)
	distance := 0.0
	if stdPrice > 0 {
		distance = (m.currentPrice - meanPrice) / stdPrice
	}

	macd, signal := computeMACD(prices)

	totalVolume := 0.0
	n := len(m.volumeHistory)
	for _, v := range m.volumeHistory[max(0, n-10):] {
		totalVolume += v
	}

	return models.MarketState{
		Price:            m.currentPrice,
		Trend:            trend,
		Volatility:       vol,
		RSI:              rsi,
		Momentum:         momentum,
		VolumeRatio:      volumeRatio,
		DistanceFromMean: distance,
		MACD:             macd,
		MACDSignal:       signal,
		TotalVolume:      totalVolume,
	}
}

// Shock multiplies volatility by 1.5 and jumps the price by a random
// +-magnitude move.
func (m *MarketDynamics) Shock(magnitude float64) {
	direction := 1.0
	if m.rng.Float64() < 0.5 {
		direction = -1.0
	}
	m.currentPrice *= 1 + magnitude*direction
	m.currentPrice = math.Max(m.currentPrice, m.initialPrice*priceFloorRatio)
	m.currentPrice = math.Min(m.currentPrice, m.initialPrice*priceCeilRatio)
	m.volatility *= 1.5
}

// Normalize decays volatility toward the 0.02 baseline.
func (m *MarketDynamics) Normalize(decayRate float64) {
	m.volatility = m.volatility*(1-decayRate) + baselineVolatility*decayRate
}

// SupportResistance averages local extrema over the trailing window.
func (m *MarketDynamics) SupportResistance() (support, resistance float64) {
	if len(m.priceHistory) < 50 {
		return m.currentPrice * 0.95, m.currentPrice * 1.05
	}
	prices := m.priceHistory
	if len(prices) > 100 {
		prices = prices[len(prices)-100:]
	}

	var maxima, minima []float64
	for i := 2; i < len(prices)-2; i++ {
		if prices[i] > prices[i-1] && prices[i] > prices[i+1] {
			maxima = append(maxima, prices[i])
		}
		if prices[i] < prices[i-1] && prices[i] < prices[i+1] {
			minima = append(minima, prices[i])
		}
	}

	support = m.currentPrice * 0.95
	resistance = m.currentPrice * 1.05
	if len(minima) > 0 {
		support = mean(minima)
	}
	if len(maxima) > 0 {
		resistance = mean(maxima)
	}
	return support, resistance
}

// Reset restores the initial price and baseline volatility and clears
// the collected history.
func (m *MarketDynamics) Reset() {
	m.currentPrice = m.initialPrice
	m.volatility = baselineVolatility
	m.priceHistory = append(m.priceHistory[:0], m.currentPrice)
	m.volumeHistory = m.volumeHistory[:0]
}

func (m *MarketDynamics) averageVolume() float64 {
	n := len(m.volumeHistory)
	switch {
	case n >= 20:
		return mean(m.volumeHistory[n-20:])
	case n > 0:
		return mean(m.volumeHistory)
	default:
		return 1000
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func computeRSI(prices []float64) float64 {
	if len(prices) < 2 {
		return 50
	}
	var gains, losses float64
	for i := 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	n := float64(len(prices) - 1)
	avgGain := gains / n
	avgLoss := losses / n
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// computeMACD returns the EMA12-EMA26 difference. The signal line is an
// intentional 0.9x approximation of the macd line rather than a true
// EMA9-of-MACD; the simulation's agents only compare signs and relative
// magnitudes, so the cheaper form is kept for self-consistency.
func computeMACD(prices []float64) (macd, signal float64) {
	if len(prices) < 26 {
		return 0, 0
	}
	macd = computeEMA(prices, 12) - computeEMA(prices, 26)
	return macd, macd * 0.9
}

func computeEMA(prices []float64, period int) float64 {
	if len(prices) < period {
		return mean(prices)
	}
	mult := 2 / float64(period+1)
	ema := mean(prices[:period])
	for _, p := range prices[period:] {
		ema = p*mult + ema*(1-mult)
	}
	return ema
}
