package forecast

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itsgiddd/Horus/internal/diffusion"
)

// checkpoint is the serialized model state. Everything here is replaced
// together on load; a checkpoint is never applied partially.
type checkpoint struct {
	LookbackWindow  int
	ForecastHorizon int
	Weights         [][]float64
	Mean            []float64
	Std             []float64
	IsTrained       bool
	History         []float64
	SavedAt         time.Time
}

// Save writes the full model state to path atomically: the checkpoint is
// written to a temp file in the same directory and renamed into place.
func (f *Forecaster) Save(path string) error {
	cp := checkpoint{
		LookbackWindow:  f.cfg.LookbackWindow,
		ForecastHorizon: f.cfg.ForecastHorizon,
		Weights:         f.proc.Network().Weights(),
		Mean:            append([]float64(nil), f.mean...),
		Std:             append([]float64(nil), f.std...),
		IsTrained:       f.trained,
		History:         append([]float64(nil), f.history...),
		SavedAt:         time.Now().UTC(),
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&cp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install checkpoint: %w", err)
	}
	return nil
}

// Load replaces network weights, normalization statistics, the trained
// flag, and the loss history together. A checkpoint whose window shape
// disagrees with this instance's configuration is rejected before any
// state is touched.
func (f *Forecaster) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer file.Close()

	var cp checkpoint
	if err := gob.NewDecoder(file).Decode(&cp); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	if cp.LookbackWindow != f.cfg.LookbackWindow || cp.ForecastHorizon != f.cfg.ForecastHorizon {
		return fmt.Errorf("%w: checkpoint windows (%d, %d) do not match configured (%d, %d)",
			diffusion.ErrShapeMismatch,
			cp.LookbackWindow, cp.ForecastHorizon,
			f.cfg.LookbackWindow, f.cfg.ForecastHorizon)
	}
	if len(cp.Mean) != numFeatures || len(cp.Std) != numFeatures {
		return fmt.Errorf("%w: checkpoint has %d/%d normalization statistics, want %d",
			diffusion.ErrShapeMismatch, len(cp.Mean), len(cp.Std), numFeatures)
	}

	// SetWeights validates every tensor before mutating any of them
	if err := f.proc.Network().SetWeights(cp.Weights); err != nil {
		return fmt.Errorf("restore weights: %w", err)
	}

	copy(f.mean, cp.Mean)
	copy(f.std, cp.Std)
	f.fitted = true
	f.trained = cp.IsTrained
	f.history = append(f.history[:0], cp.History...)
	return nil
}
