package models

import "time"

// Candle is one OHLCV bar. Timestamp is used for ordering only and is
// never fed to the model as a feature.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol,omitempty"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Features returns the five model features in canonical order.
func (c Candle) Features() [5]float64 {
	return [5]float64{c.Open, c.High, c.Low, c.Close, c.Volume}
}

// IndicatorVector is the pre-computed technical indicator set supplied by
// the indicator collaborator. The simulation computes its own minimal
// subset internally and never reads this.
type IndicatorVector struct {
	CurrentPrice float64 `json:"current_price"`
	RSI          float64 `json:"rsi"`
	MACD         float64 `json:"macd"`
	MACDSignal   float64 `json:"macd_signal"`
	MACDDiff     float64 `json:"macd_diff"`
	SMA20        float64 `json:"sma_20"`
	SMA50        float64 `json:"sma_50"`
	EMA12        float64 `json:"ema_12"`
	EMA26        float64 `json:"ema_26"`
	BBUpper      float64 `json:"bb_upper"`
	BBMiddle     float64 `json:"bb_middle"`
	BBLower      float64 `json:"bb_lower"`
	StochK       float64 `json:"stoch_k"`
	StochD       float64 `json:"stoch_d"`
	ATR          float64 `json:"atr"`
	Volume       float64 `json:"volume"`
	VolumeSMA    float64 `json:"volume_sma"`
}
