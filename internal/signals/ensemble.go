package signals

import (
	"math"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// strategyPredictor pairs one scoring variant with its voting weight.
type strategyPredictor struct {
	name      string
	weight    float64
	predictor *Predictor
}

// Ensemble combines three differently-weighted scoring strategies by
// weighted vote. The dominant strategy's price targets are kept; only
// direction and confidence are replaced by the vote.
type Ensemble struct {
	strategies []strategyPredictor
}

func NewEnsemble() *Ensemble {
	trend := defaultWeights()
	trend.MATrend, trend.MACD, trend.RSI = 0.30, 0.30, 0.15

	reversion := defaultWeights()
	reversion.RSI, reversion.BB, reversion.MATrend = 0.30, 0.25, 0.10

	momentum := defaultWeights()
	momentum.Stoch, momentum.MACD = 0.25, 0.30

	return &Ensemble{strategies: []strategyPredictor{
		{name: "trend_following", weight: 0.4, predictor: &Predictor{weights: trend}},
		{name: "mean_reversion", weight: 0.3, predictor: &Predictor{weights: reversion}},
		{name: "momentum", weight: 0.3, predictor: &Predictor{weights: momentum}},
	}}
}

// StrategySignal is one member's individual opinion, reported alongside
// the combined signal.
type StrategySignal struct {
	Strategy   string  `json:"strategy"`
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
}

// Predict runs every strategy and resolves the final direction by
// weighted voting.
func (e *Ensemble) Predict(symbol string, ind models.IndicatorVector) (models.TradingSignal, []StrategySignal) {
	var buyVotes, sellVotes, totalConfidence float64
	individual := make([]StrategySignal, 0, len(e.strategies))

	var dominant models.TradingSignal
	dominantWeight := math.Inf(-1)

	for _, s := range e.strategies {
		sig := s.predictor.Predict(symbol, ind)
		individual = append(individual, StrategySignal{
			Strategy:   s.name,
			Direction:  sig.Direction,
			Confidence: sig.Confidence,
		})

		switch sig.Direction {
		case models.DirectionBuy:
			buyVotes += s.weight
			totalConfidence += sig.Confidence * s.weight
		case models.DirectionSell:
			sellVotes += s.weight
			totalConfidence += sig.Confidence * s.weight
		}
		if s.weight > dominantWeight {
			dominantWeight = s.weight
			dominant = sig
		}
	}

	combined := dominant
	switch {
	case buyVotes > sellVotes:
		combined.Direction = models.DirectionBuy
		combined.Confidence = totalConfidence
	case sellVotes > buyVotes:
		combined.Direction = models.DirectionSell
		combined.Confidence = totalConfidence
	default:
		combined.Direction = models.DirectionHold
		combined.Confidence = 50
	}
	return combined, individual
}
