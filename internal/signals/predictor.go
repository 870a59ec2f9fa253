package signals

import (
	"math"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// featureWeights is the relative importance of each indicator family in
// the aggregate score.
type featureWeights struct {
	RSI     float64
	MACD    float64
	BB      float64
	MATrend float64
	Stoch   float64
}

func defaultWeights() featureWeights {
	return featureWeights{
		RSI:     0.20,
		MACD:    0.25,
		BB:      0.15,
		MATrend: 0.20,
		Stoch:   0.10,
	}
}

// Predictor scores a pre-computed indicator vector into a directional
// trading signal. It is stateless and self-contained: no model weights
// are learned, the scoring is fixed multi-indicator logic.
type Predictor struct {
	weights featureWeights
}

func NewPredictor() *Predictor {
	return &Predictor{weights: defaultWeights()}
}

// vote is one indicator family's contribution: a direction with a score
// in [0, 100].
type vote struct {
	direction string
	score     float64
}

// Predict combines RSI, MACD, Bollinger position, moving-average trend,
// and stochastic votes into a weighted buy/sell score, with volume as a
// multiplier rather than a vote.
func (p *Predictor) Predict(symbol string, ind models.IndicatorVector) models.TradingSignal {
	ind = withDefaults(ind)

	votes := map[string]vote{
		"rsi":      rsiVote(ind.RSI),
		"macd":     macdVote(ind.MACD, ind.MACDSignal, ind.MACDDiff),
		"bb":       bollingerVote(ind.CurrentPrice, ind.BBUpper, ind.BBLower),
		"ma_trend": maTrendVote(ind.CurrentPrice, ind.SMA20, ind.SMA50),
		"stoch":    stochVote(ind.StochK, ind.StochD),
	}
	weightOf := map[string]float64{
		"rsi":      p.weights.RSI,
		"macd":     p.weights.MACD,
		"bb":       p.weights.BB,
		"ma_trend": p.weights.MATrend,
		"stoch":    p.weights.Stoch,
	}

	var buyScore, sellScore, totalWeight float64
	for name, v := range votes {
		w := weightOf[name]
		switch v.direction {
		case models.DirectionBuy:
			buyScore += w * v.score
		case models.DirectionSell:
			sellScore += w * v.score
		}
		totalWeight += w
	}
	if totalWeight > 0 {
		buyScore /= totalWeight
		sellScore /= totalWeight
	}

	mult := volumeMultiplier(ind.Volume, ind.VolumeSMA)
	buyScore *= mult
	sellScore *= mult

	direction := models.DirectionHold
	confidence := math.Max(buyScore, sellScore)
	strength := "Weak"
	switch {
	case buyScore > sellScore && buyScore > 50:
		direction = models.DirectionBuy
		confidence = math.Min(buyScore, 95)
		strength = strengthOf(buyScore)
	case sellScore > buyScore && sellScore > 50:
		direction = models.DirectionSell
		confidence = math.Min(sellScore, 95)
		strength = strengthOf(sellScore)
	}

	atrMult := map[string]float64{"Strong": 2.0, "Moderate": 1.5, "Weak": 1.0}[strength]
	target := ind.CurrentPrice
	stop := ind.CurrentPrice
	switch direction {
	case models.DirectionBuy:
		target = ind.CurrentPrice + ind.ATR*atrMult
		stop = ind.CurrentPrice - ind.ATR*0.5
	case models.DirectionSell:
		target = ind.CurrentPrice - ind.ATR*atrMult
		stop = ind.CurrentPrice + ind.ATR*0.5
	}
	expectedChange := 0.0
	if direction != models.DirectionHold && ind.CurrentPrice > 0 {
		expectedChange = (target - ind.CurrentPrice) / ind.CurrentPrice * 100
	}

	return models.TradingSignal{
		Symbol:         symbol,
		Direction:      direction,
		Confidence:     confidence,
		PredictedPrice: target,
		TargetPrice:    target,
		StopLoss:       stop,
		ExpectedChange: expectedChange,
		Strength:       strength,
		Timestamp:      time.Now().UTC(),
	}
}

// withDefaults fills absent (zero) indicator fields with the neutral
// values the scoring logic expects.
func withDefaults(ind models.IndicatorVector) models.IndicatorVector {
	if ind.CurrentPrice == 0 {
		ind.CurrentPrice = 100
	}
	if ind.RSI == 0 {
		ind.RSI = 50
	}
	if ind.SMA20 == 0 {
		ind.SMA20 = ind.CurrentPrice
	}
	if ind.SMA50 == 0 {
		ind.SMA50 = ind.CurrentPrice
	}
	if ind.BBUpper == 0 {
		ind.BBUpper = ind.CurrentPrice * 1.02
	}
	if ind.BBLower == 0 {
		ind.BBLower = ind.CurrentPrice * 0.98
	}
	if ind.StochK == 0 {
		ind.StochK = 50
	}
	if ind.StochD == 0 {
		ind.StochD = 50
	}
	if ind.ATR == 0 {
		ind.ATR = ind.CurrentPrice * 0.02
	}
	if ind.VolumeSMA == 0 {
		ind.VolumeSMA = ind.Volume
	}
	return ind
}

func rsiVote(rsi float64) vote {
	switch {
	case rsi < 30:
		return vote{models.DirectionBuy, (30 - rsi) / 30 * 100}
	case rsi > 70:
		return vote{models.DirectionSell, (rsi - 70) / 30 * 100}
	case rsi >= 45 && rsi <= 55:
		return vote{models.DirectionHold, 30}
	case rsi < 50:
		return vote{models.DirectionBuy, 50 - rsi} // weak buy
	default:
		return vote{models.DirectionSell, rsi - 50} // weak sell
	}
}

func macdVote(macd, signal, diff float64) vote {
	switch {
	case diff > 0 && macd > signal:
		return vote{models.DirectionBuy, math.Min(math.Abs(diff)*10, 100)}
	case diff < 0 && macd < signal:
		return vote{models.DirectionSell, math.Min(math.Abs(diff)*10, 100)}
	default:
		return vote{models.DirectionHold, 40}
	}
}

func bollingerVote(price, upper, lower float64) vote {
	position := 0.5
	if upper != lower {
		position = (price - lower) / (upper - lower)
	}
	switch {
	case position < 0.2:
		return vote{models.DirectionBuy, (0.2 - position) * 500}
	case position > 0.8:
		return vote{models.DirectionSell, (position - 0.8) * 500}
	default:
		return vote{models.DirectionHold, 50}
	}
}

func maTrendVote(price, sma20, sma50 float64) vote {
	switch {
	case sma20 > sma50 && price > sma20:
		return vote{models.DirectionBuy, 80}
	case sma20 < sma50 && price < sma20:
		return vote{models.DirectionSell, 80}
	case price > sma20 && price > sma50:
		return vote{models.DirectionBuy, 60} // weak buy
	case price < sma20 && price < sma50:
		return vote{models.DirectionSell, 60} // weak sell
	default:
		return vote{models.DirectionHold, 40}
	}
}

func stochVote(k, d float64) vote {
	switch {
	case k < 20 && k > d:
		return vote{models.DirectionBuy, 80}
	case k > 80 && k < d:
		return vote{models.DirectionSell, 80}
	default:
		return vote{models.DirectionHold, 50}
	}
}

func volumeMultiplier(volume, volumeSMA float64) float64 {
	ratio := 1.0
	if volumeSMA > 0 {
		ratio = volume / volumeSMA
	}
	switch {
	case ratio > 1.5:
		return 1.3
	case ratio > 1.2:
		return 1.15
	default:
		return 1.0
	}
}

func strengthOf(score float64) string {
	switch {
	case score > 70:
		return "Strong"
	case score > 55:
		return "Moderate"
	default:
		return "Weak"
	}
}
