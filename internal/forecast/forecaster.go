package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/itsgiddd/Horus/internal/diffusion"
	"github.com/itsgiddd/Horus/internal/domain/models"
	"github.com/itsgiddd/Horus/pkg/logger"
)

const (
	numFeatures = 5
	normEps     = 1e-8

	fallbackScenarios    = 10
	fallbackMaxConfident = 0.85
)

// Config sizes one Forecaster instance. LookbackWindow and
// ForecastHorizon are baked into the network shape and must match any
// checkpoint loaded later.
type Config struct {
	LookbackWindow  int     `yaml:"lookback_window" default:"60"`
	ForecastHorizon int     `yaml:"forecast_horizon" default:"10"`
	Timesteps       int     `yaml:"timesteps" default:"1000"`
	HiddenDim       int     `yaml:"hidden_dim" default:"128"`
	NumLayers       int     `yaml:"num_layers" default:"4"`
	DropoutRate     float64 `yaml:"dropout_rate" default:"0.1"`
}

// DefaultConfig mirrors the production model dimensions.
func DefaultConfig() Config {
	return Config{
		LookbackWindow:  60,
		ForecastHorizon: 10,
		Timesteps:       1000,
		HiddenDim:       128,
		NumLayers:       4,
		DropoutRate:     0.1,
	}
}

// TrainOptions bounds one training call.
type TrainOptions struct {
	Epochs          int
	BatchSize       int
	LearningRate    float64
	Augment         bool
	SimulationPaths int
}

// DefaultTrainOptions mirrors the production training parameters.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Epochs:          50,
		BatchSize:       32,
		LearningRate:    1e-3,
		Augment:         true,
		SimulationPaths: 10,
	}
}

// Simulator is the virtual-economy surface the forecaster needs: synthetic
// price paths for training augmentation and candle prediction for the
// untrained fallback.
type Simulator interface {
	Reset()
	Run(steps int) *models.SimulationResult
	PredictNextCandles(numCandles, scenarioCount int) ([]models.PredictedCandle, error)
}

// SimulatorFactory builds a simulator anchored at the given price and
// seeded with observed closes.
type SimulatorFactory func(initialPrice float64, closes []float64) (Simulator, error)

// Forecaster owns normalization, window construction, the training loop,
// checkpointing, and inference over one diffusion process.
//
// Not safe for concurrent use: callers must serialize Train against
// every other method (one in-flight training job at a time).
type Forecaster struct {
	cfg    Config
	proc   *diffusion.Process
	opt    *diffusion.AdamW
	newSim SimulatorFactory
	rng    *rand.Rand
	log    *logger.Logger

	// normalization statistics, fitted once from the first training
	// batch and reused for every later call
	mean   []float64
	std    []float64
	fitted bool

	trained bool
	history []float64
}

// NewForecaster allocates the schedule, network, and optimizer. newSim
// may be nil; augmentation and the untrained fallback are then disabled.
func NewForecaster(cfg Config, newSim SimulatorFactory, rng *rand.Rand, log *logger.Logger) (*Forecaster, error) {
	sched, err := diffusion.NewVarianceSchedule(cfg.Timesteps)
	if err != nil {
		return nil, fmt.Errorf("variance schedule: %w", err)
	}
	net, err := diffusion.NewDenoisingNetwork(diffusion.NetworkConfig{
		InputDim:        numFeatures,
		HiddenDim:       cfg.HiddenDim,
		NumLayers:       cfg.NumLayers,
		LookbackWindow:  cfg.LookbackWindow,
		ForecastHorizon: cfg.ForecastHorizon,
		DropoutRate:     cfg.DropoutRate,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("denoising network: %w", err)
	}

	proc := diffusion.NewProcess(sched, net, rng)
	return &Forecaster{
		cfg:    cfg,
		proc:   proc,
		opt:    diffusion.NewAdamW(net, 0.01),
		newSim: newSim,
		rng:    rng,
		log:    log,
		mean:   make([]float64, numFeatures),
		std:    make([]float64, numFeatures),
	}, nil
}

// Config returns the instance dimensions.
func (f *Forecaster) Config() Config { return f.cfg }

// IsTrained reports whether at least one training epoch has completed
// (or a trained checkpoint has been loaded).
func (f *Forecaster) IsTrained() bool { return f.trained }

// History returns the accumulated per-epoch mean losses across every
// training call on this instance.
func (f *Forecaster) History() []float64 {
	return append([]float64(nil), f.history...)
}

func featureRows(bars []models.Candle) [][]float64 {
	rows := make([][]float64, len(bars))
	for i, b := range bars {
		feat := b.Features()
		rows[i] = feat[:]
	}
	return rows
}

// fitNormalizer computes per-feature mean and std once. Later calls are
// no-ops; recomputing the statistics would invalidate any checkpoint
// trained against the originals.
func (f *Forecaster) fitNormalizer(rows [][]float64) {
	if f.fitted {
		return
	}
	n := float64(len(rows))
	for c := 0; c < numFeatures; c++ {
		var sum float64
		for _, row := range rows {
			sum += row[c]
		}
		mu := sum / n
		var varSum float64
		for _, row := range rows {
			d := row[c] - mu
			varSum += d * d
		}
		f.mean[c] = mu
		f.std[c] = math.Sqrt(varSum / n)
	}
	f.fitted = true
}

func (f *Forecaster) normalize(row []float64) []float64 {
	out := make([]float64, numFeatures)
	for c := 0; c < numFeatures; c++ {
		out[c] = (row[c] - f.mean[c]) / (f.std[c] + normEps)
	}
	return out
}

func (f *Forecaster) denormalize(value float64, c int) float64 {
	return value*(f.std[c]+normEps) + f.mean[c]
}

// windowPairs slides a stride-1 window over normalized rows, producing
// flattened (condition, target) matrices. The target starts exactly
// where the condition ends.
func (f *Forecaster) windowPairs(rows [][]float64) (conds, targets [][]float64) {
	l, h := f.cfg.LookbackWindow, f.cfg.ForecastHorizon
	norm := make([][]float64, len(rows))
	for i, row := range rows {
		norm[i] = f.normalize(row)
	}

	for start := 0; start+l+h <= len(norm); start++ {
		cond := make([]float64, 0, l*numFeatures)
		for _, row := range norm[start : start+l] {
			cond = append(cond, row...)
		}
		target := make([]float64, 0, h*numFeatures)
		for _, row := range norm[start+l : start+l+h] {
			target = append(target, row...)
		}
		conds = append(conds, cond)
		targets = append(targets, target)
	}
	return conds, targets
}

// PrepareTrainingWindows builds the full (condition, target) window set
// from a bar sequence, fitting the normalizer on first use.
func (f *Forecaster) PrepareTrainingWindows(bars []models.Candle) (conds, targets [][]float64, err error) {
	need := f.cfg.LookbackWindow + f.cfg.ForecastHorizon
	if len(bars) < need {
		return nil, nil, fmt.Errorf("%w: %d bars, need at least %d", ErrInsufficientData, len(bars), need)
	}
	rows := featureRows(bars)
	f.fitNormalizer(rows)
	conds, targets = f.windowPairs(rows)
	return conds, targets, nil
}

// Train runs mini-batch gradient descent over real windows, optionally
// augmented with simulated paths, and returns this call's per-epoch mean
// losses. The losses are also appended to the instance-wide history.
func (f *Forecaster) Train(ctx context.Context, bars []models.Candle, opts TrainOptions) ([]float64, error) {
	if opts.Epochs <= 0 || opts.BatchSize <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid training options: epochs %d, batch %d, lr %f",
			opts.Epochs, opts.BatchSize, opts.LearningRate)
	}

	conds, targets, err := f.PrepareTrainingWindows(bars)
	if err != nil {
		return nil, err
	}

	if opts.Augment && f.newSim != nil {
		synthConds, synthTargets, err := f.simulatedWindows(bars, opts.SimulationPaths)
		if err != nil {
			if f.log != nil {
				f.log.Warn("simulation augmentation failed, training on real windows only", logger.Error(err))
			}
		} else {
			conds = append(conds, synthConds...)
			targets = append(targets, synthTargets...)
		}
	}

	if f.log != nil {
		f.log.Info("starting training",
			logger.Int("windows", len(conds)),
			logger.Int("epochs", opts.Epochs),
			logger.Int("batch_size", opts.BatchSize))
	}

	condCols := f.cfg.LookbackWindow * numFeatures
	targetCols := f.cfg.ForecastHorizon * numFeatures

	losses := make([]float64, 0, opts.Epochs)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return losses, err
		}
		lr := diffusion.CosineAnnealedLR(opts.LearningRate, epoch, opts.Epochs)

		perm := f.rng.Perm(len(conds))
		var epochLoss float64
		batches := 0
		for at := 0; at < len(perm); at += opts.BatchSize {
			end := min(at+opts.BatchSize, len(perm))
			idx := perm[at:end]

			x0 := mat.NewDense(len(idx), targetCols, nil)
			cond := mat.NewDense(len(idx), condCols, nil)
			for r, i := range idx {
				x0.SetRow(r, targets[i])
				cond.SetRow(r, conds[i])
			}

			f.proc.Network().ZeroGrads()
			loss, err := f.proc.TrainStep(x0, cond)
			if err != nil {
				return losses, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			f.opt.ClipGradNorm(1.0)
			f.opt.Step(lr)

			epochLoss += loss
			batches++
		}

		meanLoss := epochLoss / float64(batches)
		losses = append(losses, meanLoss)
		f.history = append(f.history, meanLoss)
		f.trained = true

		if f.log != nil {
			f.log.Debug("epoch complete",
				logger.Int("epoch", epoch+1),
				logger.Any("loss", meanLoss))
		}
	}
	return losses, nil
}

// Predict samples numSamples candidate futures from the reverse
// diffusion loop and reports their per-timestep mean and dispersion.
// Before any training epoch has completed it falls back to the
// simulation-only predictor.
func (f *Forecaster) Predict(bars []models.Candle, numSamples int) (*models.Forecast, error) {
	l := f.cfg.LookbackWindow
	if len(bars) < l {
		return nil, fmt.Errorf("%w: %d bars, need at least %d for inference context", ErrInsufficientData, len(bars), l)
	}
	if numSamples <= 0 {
		numSamples = 10
	}

	if !f.trained {
		return f.simulationFallback(bars)
	}

	rows := featureRows(bars[len(bars)-l:])
	condRow := make([]float64, 0, l*numFeatures)
	for _, row := range rows {
		condRow = append(condRow, f.normalize(row)...)
	}
	cond := mat.NewDense(numSamples, len(condRow), nil)
	for r := 0; r < numSamples; r++ {
		cond.SetRow(r, condRow)
	}

	samples, err := f.proc.Sample(cond, numSamples)
	if err != nil {
		return nil, fmt.Errorf("diffusion sampling: %w", err)
	}

	h := f.cfg.ForecastHorizon
	meanForecast := make([][]float64, h)
	stdForecast := make([][]float64, h)
	candles := make([]models.PredictedCandle, h)

	for step := 0; step < h; step++ {
		meanForecast[step] = make([]float64, numFeatures)
		stdForecast[step] = make([]float64, numFeatures)

		var confSum float64
		for c := 0; c < numFeatures; c++ {
			var sum float64
			for s := 0; s < numSamples; s++ {
				sum += f.denormalize(samples.At(s, step*numFeatures+c), c)
			}
			mu := sum / float64(numSamples)

			var varSum float64
			for s := 0; s < numSamples; s++ {
				d := f.denormalize(samples.At(s, step*numFeatures+c), c) - mu
				varSum += d * d
			}
			sigma := math.Sqrt(varSum / float64(numSamples))

			meanForecast[step][c] = mu
			stdForecast[step][c] = sigma
			confSum += sigma / (math.Abs(mu) + normEps)
		}

		candles[step] = models.PredictedCandle{
			Open:       meanForecast[step][0],
			High:       meanForecast[step][1],
			Low:        meanForecast[step][2],
			Close:      meanForecast[step][3],
			Volume:     meanForecast[step][4],
			Confidence: clamp01(1 - confSum/numFeatures),
		}
	}

	return &models.Forecast{
		Candles:      candles,
		MeanForecast: meanForecast,
		StdForecast:  stdForecast,
		Source:       "diffusion",
		Timestamp:    time.Now().UTC(),
	}, nil
}

// simulationFallback produces a forecast from the virtual economy alone,
// seeded with the observed closes. Fallback confidence is capped below
// the trained path's ceiling.
func (f *Forecaster) simulationFallback(bars []models.Candle) (*models.Forecast, error) {
	if f.newSim == nil {
		return nil, ErrModelNotTrained
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	sim, err := f.newSim(closes[len(closes)-1], closes)
	if err != nil {
		return nil, fmt.Errorf("fallback simulator: %w", err)
	}

	candles, err := sim.PredictNextCandles(f.cfg.ForecastHorizon, fallbackScenarios)
	if err != nil {
		return nil, fmt.Errorf("fallback prediction: %w", err)
	}
	for i := range candles {
		candles[i].Confidence = math.Min(candles[i].Confidence, fallbackMaxConfident)
	}

	return &models.Forecast{
		Candles:   candles,
		Source:    "simulation",
		Timestamp: time.Now().UTC(),
	}, nil
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
