package models

// MarketState is a derived, read-only snapshot of the simulated market,
// recomputed fresh from the dynamics engine every step.
type MarketState struct {
	Price            float64 `json:"price"`
	Trend            float64 `json:"trend"`
	Volatility       float64 `json:"volatility"`
	RSI              float64 `json:"rsi"`
	Momentum         float64 `json:"momentum"`
	VolumeRatio      float64 `json:"volume_ratio"`
	DistanceFromMean float64 `json:"distance_from_mean"`
	MACD             float64 `json:"macd"`
	MACDSignal       float64 `json:"macd_signal"`
	TotalVolume      float64 `json:"total_volume"`
}

// SimulationResult is the full time series of one bounded run.
type SimulationResult struct {
	Prices          []float64     `json:"prices"`
	Volumes         []float64     `json:"volumes"`
	BuyPressure     []int         `json:"buy_pressure"`
	SellPressure    []int         `json:"sell_pressure"`
	TraderSentiment []float64     `json:"trader_sentiment"`
	MarketStates    []MarketState `json:"market_states"`
	FinalPrice      float64       `json:"final_price"`
	PriceChangePct  float64       `json:"price_change_pct"`
}

// ScenarioOutcome summarizes one independent Monte-Carlo scenario.
type ScenarioOutcome struct {
	ScenarioID int       `json:"scenario_id"`
	FinalPrice float64   `json:"final_price"`
	MaxPrice   float64   `json:"max_price"`
	MinPrice   float64   `json:"min_price"`
	Volatility float64   `json:"volatility"`
	Trend      float64   `json:"trend"`
	PricePath  []float64 `json:"price_path"`
}

// ScenarioProbabilities is the empirical distribution over independent
// scenario runs. Bullish/Bearish/Neutral are fractions of num_scenarios.
type ScenarioProbabilities struct {
	Bullish              float64           `json:"bullish"`
	Bearish              float64           `json:"bearish"`
	Neutral              float64           `json:"neutral"`
	MeanFinalPrice       float64           `json:"mean_final_price"`
	StdFinalPrice        float64           `json:"std_final_price"`
	ConfidenceInterval95 [2]float64        `json:"confidence_interval_95"`
	Scenarios            []ScenarioOutcome `json:"scenarios"`
}

// TraderStatistics aggregates population-level trading outcomes.
type TraderStatistics struct {
	TotalTraders    int     `json:"total_traders"`
	ActivePositions int     `json:"active_positions"`
	TotalCapital    float64 `json:"total_capital"`
	TotalTrades     int     `json:"total_trades"`
	WinRate         float64 `json:"win_rate"`
}
