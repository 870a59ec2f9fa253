package forecast

import (
	"fmt"
	"time"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

// extraWindowsPerPath controls how far past one window pair each
// simulated path runs, so every path contributes multiple pairs.
const extraWindowsPerPath = 30

// simulatedWindows generates additional training windows by running the
// virtual economy and reconstructing OHLCV bars from the scalar price
// paths. The normalizer must already be fitted; synthetic bars reuse the
// real statistics.
func (f *Forecaster) simulatedWindows(bars []models.Candle, paths int) (conds, targets [][]float64, err error) {
	if paths <= 0 {
		paths = 10
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	sim, err := f.newSim(closes[len(closes)-1], closes)
	if err != nil {
		return nil, nil, fmt.Errorf("augmentation simulator: %w", err)
	}

	steps := f.cfg.LookbackWindow + f.cfg.ForecastHorizon + extraWindowsPerPath
	for p := 0; p < paths; p++ {
		sim.Reset()
		result := sim.Run(steps)

		synth := f.syntheticBars(result.Prices)
		pathConds, pathTargets := f.windowPairs(featureRows(synth))
		conds = append(conds, pathConds...)
		targets = append(targets, pathTargets...)
	}
	return conds, targets, nil
}

// syntheticBars rebuilds OHLCV bars from a scalar close path. The
// simulator tracks a single price per step, so open/high/low are
// synthesized with a small bounded random spread and volume is drawn
// uniformly — a documented modeling compromise, not real market depth.
func (f *Forecaster) syntheticBars(prices []float64) []models.Candle {
	bars := make([]models.Candle, len(prices))
	now := time.Now().UTC()
	prev := 0.0
	if len(prices) > 0 {
		prev = prices[0]
	}
	for i, close := range prices {
		spread := 0.001 + f.rng.Float64()*0.002
		hi := close
		lo := close
		if prev > hi {
			hi = prev
		}
		if prev < lo {
			lo = prev
		}
		bars[i] = models.Candle{
			Timestamp: now.Add(time.Duration(i) * time.Minute),
			Open:      prev,
			High:      hi * (1 + spread),
			Low:       lo * (1 - spread),
			Close:     close,
			Volume:    100000 + f.rng.Float64()*400000,
		}
		prev = close
	}
	return bars
}
