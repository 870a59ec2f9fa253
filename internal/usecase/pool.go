package usecase

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/itsgiddd/Horus/internal/forecast"
	"github.com/itsgiddd/Horus/internal/simulation"
	"github.com/itsgiddd/Horus/pkg/config"
	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// ManagedForecaster pairs a forecaster with the mutex that serializes
// training against inference. The underlying forecaster is not safe for
// concurrent use.
type ManagedForecaster struct {
	Mu sync.Mutex
	F  *forecast.Forecaster
}

// ForecasterPool lazily builds one forecaster per symbol and restores
// checkpoints from disk on first use.
type ForecasterPool struct {
	mu            sync.Mutex
	forecasters   map[string]*ManagedForecaster
	modelCfg      forecast.Config
	simCfg        config.SimulationConfig
	checkpointDir string
	rng           *rand.Rand
	log           *applogger.Logger
}

// NewForecasterPool creates the pool. All model randomness derives from
// the supplied rng.
func NewForecasterPool(modelCfg forecast.Config, simCfg config.SimulationConfig, checkpointDir string, rng *rand.Rand, log *applogger.Logger) *ForecasterPool {
	return &ForecasterPool{
		forecasters:   make(map[string]*ManagedForecaster),
		modelCfg:      modelCfg,
		simCfg:        simCfg,
		checkpointDir: checkpointDir,
		rng:           rng,
		log:           log,
	}
}

// Get returns the forecaster for a symbol, creating it on first use.
func (p *ForecasterPool) Get(symbol string) (*ManagedForecaster, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mf, ok := p.forecasters[symbol]; ok {
		return mf, nil
	}

	f, err := forecast.NewForecaster(
		p.modelCfg,
		p.simulatorFactory(),
		rand.New(rand.NewSource(p.rng.Int63())),
		p.log,
	)
	if err != nil {
		return nil, fmt.Errorf("forecaster for %s: %w", symbol, err)
	}

	path := p.CheckpointPath(symbol)
	if err := f.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) && p.log != nil {
			p.log.Warn("checkpoint load failed, starting fresh",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	} else if p.log != nil {
		p.log.Info("checkpoint restored", applogger.String("symbol", symbol))
	}

	mf := &ManagedForecaster{F: f}
	p.forecasters[symbol] = mf
	return mf, nil
}

// CheckpointPath returns the on-disk checkpoint location for a symbol.
func (p *ForecasterPool) CheckpointPath(symbol string) string {
	return filepath.Join(p.checkpointDir, symbol+".gob")
}

// EnsureCheckpointDir creates the checkpoint directory if missing.
func (p *ForecasterPool) EnsureCheckpointDir() error {
	return os.MkdirAll(p.checkpointDir, 0o755)
}

// simulatorFactory anchors a virtual economy at the current price and
// seeds its dynamics with observed closes.
func (p *ForecasterPool) simulatorFactory() forecast.SimulatorFactory {
	return func(initialPrice float64, closes []float64) (forecast.Simulator, error) {
		cfg := simulation.DefaultConfig(initialPrice)
		if p.simCfg.NumTraders > 0 {
			cfg.NumTraders = p.simCfg.NumTraders
		}
		if p.simCfg.Steps > 0 {
			cfg.SimulationSteps = p.simCfg.Steps
		}
		if p.simCfg.Volatility > 0 {
			cfg.Volatility = p.simCfg.Volatility
		}
		if p.simCfg.Drift != 0 {
			cfg.Drift = p.simCfg.Drift
		}

		p.mu.Lock()
		cfg.Seed = p.rng.Int63()
		p.mu.Unlock()

		ve, err := simulation.NewVirtualEconomy(cfg, p.log)
		if err != nil {
			return nil, err
		}
		ve.Market().SeedHistory(closes)
		return ve, nil
	}
}
