package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	applogger "github.com/itsgiddd/Horus/pkg/logger"
)

// AutoTrainer retrains every scheduled symbol on a fixed interval.
// Cycles never overlap: a tick that fires while a cycle is still running
// is skipped.
type AutoTrainer struct {
	training *TrainingUseCase
	log      *applogger.Logger

	running  atomic.Bool
	inCycle  atomic.Bool
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// NewAutoTrainer creates the scheduler.
func NewAutoTrainer(training *TrainingUseCase, log *applogger.Logger) *AutoTrainer {
	return &AutoTrainer{
		training: training,
		log:      log,
	}
}

// Start launches the schedule loop. Calling Start twice is a no-op, and
// a stopped trainer may be started again.
func (a *AutoTrainer) Start(ctx context.Context) {
	if !a.running.CompareAndSwap(false, true) {
		return
	}

	a.done = make(chan struct{})
	a.stopOnce = sync.Once{}
	ctx, a.cancel = context.WithCancel(ctx)
	interval := a.training.Interval()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	a.training.SetNextRun(time.Now().Add(interval))

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.training.SetNextRun(time.Now().Add(interval))
				a.runCycle(ctx)
			}
		}
	}()

	if a.log != nil {
		a.log.Info("auto trainer started",
			applogger.Duration("interval", interval),
			applogger.Strings("symbols", a.training.Symbols()),
		)
	}
}

// runCycle trains every symbol sequentially, skipping if a previous cycle
// is still in flight.
func (a *AutoTrainer) runCycle(ctx context.Context) {
	if !a.inCycle.CompareAndSwap(false, true) {
		if a.log != nil {
			a.log.Warn("training cycle still running, skipping tick")
		}
		return
	}
	defer a.inCycle.Store(false)

	for _, symbol := range a.training.Symbols() {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.training.Train(ctx, symbol, 0, 0); err != nil && a.log != nil {
			a.log.Error("scheduled training failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
}

// IsRunning reports whether the schedule loop is active.
func (a *AutoTrainer) IsRunning() bool {
	return a.running.Load()
}

// Stop halts the loop and waits for the current cycle to finish.
func (a *AutoTrainer) Stop() {
	a.stopOnce.Do(func() {
		if !a.running.Load() {
			return
		}
		a.cancel()
		<-a.done
		a.running.Store(false)
		if a.log != nil {
			a.log.Info("auto trainer stopped")
		}
	})
}
