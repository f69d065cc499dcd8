package shipping

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type BatchProcessor interface {
	ProcessShippingBatch(ctx context.Context) ([]UpdateResult, error)
}

// Worker drives batch processing until its context is cancelled.
type Worker struct {
	proc     BatchProcessor
	logger   *zap.Logger
	interval time.Duration
}

func NewWorker(proc BatchProcessor, logger *zap.Logger, interval time.Duration) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{proc: proc, logger: logger, interval: interval}
}

// Run returns nil once ctx is cancelled. A batch that processed something is
// followed immediately by the next poll; otherwise the worker waits for the
// interval first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("shipping worker started", zap.Duration("interval", w.interval))
	defer w.logger.Info("shipping worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		results, err := w.proc.ProcessShippingBatch(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("shipping batch failed", zap.Error(err))
		}
		if len(results) > 0 {
			continue
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
