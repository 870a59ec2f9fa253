package models

// ForecastRequest is the advanced-prediction request body/query.
type ForecastRequest struct {
	Timeframe  string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Limit      int    `query:"limit" json:"limit" default:"200" validate:"gte=70,lte=2000"`
	NumSamples int    `query:"num_samples" json:"num_samples" default:"5" validate:"gte=1,lte=50"`
}

// ScenarioRequest configures a scenario-probability run.
type ScenarioRequest struct {
	Timeframe    string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	NumScenarios int    `query:"num_scenarios" json:"num_scenarios" default:"10" validate:"gte=1,lte=100"`
	Steps        int    `query:"steps" json:"steps" default:"100" validate:"gte=1,lte=5000"`
}

// CandlesRequest fetches recent stored candles.
type CandlesRequest struct {
	Timeframe string `query:"timeframe" json:"timeframe" default:"1h" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Limit     int    `query:"limit" json:"limit" default:"200" validate:"gte=1,lte=5000"`
}

// TrainRequest triggers a manual training run for one symbol.
type TrainRequest struct {
	Epochs    int `query:"epochs" json:"epochs" default:"50" validate:"gte=1,lte=1000"`
	BatchSize int `query:"batch_size" json:"batch_size" default:"16" validate:"gte=1,lte=512"`
}

// SymbolRequest adds or removes a symbol from the training schedule.
type SymbolRequest struct {
	Symbol string `json:"symbol" validate:"required"`
}
