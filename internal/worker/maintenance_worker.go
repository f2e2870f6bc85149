package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/service"
)

// LockKey guards the periodic sweep across instances.
const LockKey = "helpdesk:maintenance:lock"

// Sweeper runs one maintenance pass.
type Sweeper interface {
	Run(ctx context.Context) (service.SweepReport, error)
}

// MaintenanceWorker runs the sweep on a fixed interval. With a lock configured
// only the instance holding it sweeps on a given tick.
type MaintenanceWorker struct {
	sweeper  Sweeper
	lock     *Lock
	interval time.Duration
	logger   *zap.Logger
}

// NewMaintenanceWorker builds the worker. lock may be nil for single instance deployments.
func NewMaintenanceWorker(sweeper Sweeper, lock *Lock, interval time.Duration, logger *zap.Logger) *MaintenanceWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &MaintenanceWorker{sweeper: sweeper, lock: lock, interval: interval, logger: logger}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (w *MaintenanceWorker) Start(ctx context.Context) {
	w.logger.Info("maintenance worker started", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Tick(ctx); err != nil {
			w.logger.Error("maintenance sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("maintenance worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs a single guarded sweep. ran is false when another instance holds the lock.
func (w *MaintenanceWorker) Tick(ctx context.Context) (ran bool, err error) {
	if w.lock != nil {
		token, ok, err := w.lock.TryLock(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			w.logger.Debug("maintenance sweep skipped, lock held elsewhere")
			return false, nil
		}
		defer func() {
			if _, uerr := w.lock.Unlock(context.WithoutCancel(ctx), token); uerr != nil {
				w.logger.Warn("maintenance lock release failed", zap.Error(uerr))
			}
		}()
	}
	_, err = w.sweeper.Run(ctx)
	return true, err
}
