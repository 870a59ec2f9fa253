package indicators

import (
	"fmt"
	"math"

	"github.com/itsgiddd/Horus/internal/domain/models"
)

const (
	rsiPeriod      = 14
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	bbPeriod       = 20
	bbStdDevs      = 2.0
	stochPeriod    = 14
	stochSmooth    = 3
	atrPeriod      = 14
	smaShortPeriod = 20
	smaLongPeriod  = 50
	volumePeriod   = 20
)

// MinBars is the minimum history required to fill every indicator.
const MinBars = smaLongPeriod

// Compute derives the full indicator vector from OHLCV history. Candles
// must be ordered oldest first.
func Compute(candles []models.Candle) (models.IndicatorVector, error) {
	if len(candles) < MinBars {
		return models.IndicatorVector{}, fmt.Errorf("indicators: need at least %d bars, got %d", MinBars, len(candles))
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	macdLine, signalLine := macd(closes)
	bbMid := sma(closes, bbPeriod)
	bbStd := rollingStd(closes, bbPeriod)
	k, d := stochastic(highs, lows, closes)

	v := models.IndicatorVector{
		CurrentPrice: closes[len(closes)-1],
		RSI:          rsi(closes, rsiPeriod),
		MACD:         macdLine,
		MACDSignal:   signalLine,
		MACDDiff:     macdLine - signalLine,
		SMA20:        sma(closes, smaShortPeriod),
		SMA50:        sma(closes, smaLongPeriod),
		EMA12:        lastEMA(closes, macdFast),
		EMA26:        lastEMA(closes, macdSlow),
		BBUpper:      bbMid + bbStdDevs*bbStd,
		BBMiddle:     bbMid,
		BBLower:      bbMid - bbStdDevs*bbStd,
		StochK:       k,
		StochD:       d,
		ATR:          atr(highs, lows, closes, atrPeriod),
		Volume:       volumes[len(volumes)-1],
		VolumeSMA:    sma(volumes, volumePeriod),
	}
	return v, nil
}

func sma(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// rollingStd is the population standard deviation over the last period values.
func rollingStd(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(period))
}

// emaSeries computes an exponential moving average seeded at the first
// value, alpha = 2/(period+1).
func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func lastEMA(values []float64, period int) float64 {
	s := emaSeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func macd(closes []float64) (line, signal float64) {
	fast := emaSeries(closes, macdFast)
	slow := emaSeries(closes, macdSlow)
	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	sig := emaSeries(diff, macdSignal)
	return diff[len(diff)-1], sig[len(sig)-1]
}

// rsi uses Wilder smoothing over gains and losses.
func rsi(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func stochastic(highs, lows, closes []float64) (k, d float64) {
	n := len(closes)
	if n < stochPeriod {
		return 50, 50
	}

	kValues := make([]float64, 0, stochSmooth)
	for i := n - stochSmooth; i < n; i++ {
		if i < stochPeriod-1 {
			continue
		}
		hh := highs[i]
		ll := lows[i]
		for j := i - stochPeriod + 1; j <= i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh == ll {
			kValues = append(kValues, 50)
			continue
		}
		kValues = append(kValues, (closes[i]-ll)/(hh-ll)*100)
	}
	if len(kValues) == 0 {
		return 50, 50
	}

	k = kValues[len(kValues)-1]
	sum := 0.0
	for _, v := range kValues {
		sum += v
	}
	d = sum / float64(len(kValues))
	return k, d
}

// atr uses Wilder smoothing over true ranges.
func atr(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if n <= period {
		return 0
	}

	trs := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		tr := highs[i] - lows[i]
		tr = math.Max(tr, math.Abs(highs[i]-closes[i-1]))
		tr = math.Max(tr, math.Abs(lows[i]-closes[i-1]))
		trs = append(trs, tr)
	}

	val := 0.0
	for i := 0; i < period; i++ {
		val += trs[i]
	}
	val /= float64(period)
	for i := period; i < len(trs); i++ {
		val = (val*float64(period-1) + trs[i]) / float64(period)
	}
	return val
}
