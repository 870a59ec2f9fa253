package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	forecastsTotal  *prometheus.CounterVec
	trainingEpochs  *prometheus.CounterVec
	trainingLoss    *prometheus.GaugeVec
	simulationRuns  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
	forecastsCached *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		forecastsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horus_forecasts_total",
				Help: "Total number of forecasts produced",
			},
			[]string{"symbol", "source"},
		),
		trainingEpochs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horus_training_epochs_total",
				Help: "Total number of completed training epochs",
			},
			[]string{"symbol"},
		),
		trainingLoss: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "horus_training_loss",
				Help: "Mean loss of the most recent training epoch",
			},
			[]string{"symbol"},
		),
		simulationRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horus_simulation_runs_total",
				Help: "Total number of virtual-economy scenario runs",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horus_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "horus_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "horus_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		forecastsCached: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "horus_forecast_cache_total",
				Help: "Forecast cache lookups by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordForecast records one produced forecast by origin.
func (r *Recorder) RecordForecast(symbol, source string) {
	r.forecastsTotal.WithLabelValues(symbol, source).Inc()
}

// RecordTrainingEpoch records a completed epoch and its mean loss.
func (r *Recorder) RecordTrainingEpoch(symbol string, loss float64) {
	r.trainingEpochs.WithLabelValues(symbol).Inc()
	r.trainingLoss.WithLabelValues(symbol).Set(loss)
}

// RecordSimulationRun records one virtual-economy run.
func (r *Recorder) RecordSimulationRun(kind string) {
	r.simulationRuns.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last observed price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordCacheLookup records a forecast cache hit or miss.
func (r *Recorder) RecordCacheLookup(outcome string) {
	r.forecastsCached.WithLabelValues(outcome).Inc()
}
