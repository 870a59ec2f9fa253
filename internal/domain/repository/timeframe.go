package repository

// Timeframe identifies a candle aggregation interval.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// NormalizeTimeframe maps arbitrary user input to a supported timeframe,
// defaulting to 1h.
func NormalizeTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return Timeframe(s)
	default:
		return TF1h
	}
}
