package models

import "time"

// PredictedCandle is one forecast bar with a per-candle confidence score
// in [0,1].
type PredictedCandle struct {
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	Confidence float64 `json:"confidence"`
}

// Forecast is the output of one prediction call.
type Forecast struct {
	Symbol       string            `json:"symbol"`
	Timeframe    string            `json:"timeframe,omitempty"`
	Candles      []PredictedCandle `json:"candles"`
	MeanForecast [][]float64       `json:"mean_forecast,omitempty"`
	StdForecast  [][]float64       `json:"std_forecast,omitempty"`
	// Source is "diffusion" for the trained model path and "simulation"
	// for the virtual-economy fallback.
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal direction constants shared by the forecast and signal layers.
const (
	DirectionBuy  = "BUY"
	DirectionSell = "SELL"
	DirectionHold = "HOLD"
)

// TradingSignal is a directional call derived from a Forecast or from the
// indicator predictor.
type TradingSignal struct {
	Symbol         string    `json:"symbol"`
	Direction      string    `json:"direction"`
	Confidence     float64   `json:"confidence"`
	PredictedPrice float64   `json:"predicted_price,omitempty"`
	TargetPrice    float64   `json:"target_price,omitempty"`
	StopLoss       float64   `json:"stop_loss,omitempty"`
	ExpectedChange float64   `json:"expected_change"`
	Strength       string    `json:"strength,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// ForecastRecord is one archived forecast together with the signal it
// produced.
type ForecastRecord struct {
	Symbol         string            `json:"symbol"`
	Timeframe      string            `json:"timeframe"`
	Source         string            `json:"source"`
	Direction      string            `json:"direction"`
	Confidence     float64           `json:"confidence"`
	ExpectedChange float64           `json:"expected_change"`
	Candles        []PredictedCandle `json:"candles"`
	CreatedAt      time.Time         `json:"created_at"`
}

// TrainingStatus reports the auto-trainer state for the HTTP layer.
type TrainingStatus struct {
	Running       bool           `json:"is_running"`
	IntervalHours float64        `json:"training_interval_hours"`
	Symbols       []string       `json:"symbols"`
	NextRun       *time.Time     `json:"next_run,omitempty"`
	TrainedModels []TrainedModel `json:"trained_models"`
}

// TrainedModel describes one persisted checkpoint.
type TrainedModel struct {
	Symbol     string    `json:"symbol"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
	Epochs     int       `json:"epochs"`
	FinalLoss  float64   `json:"final_loss"`
}
