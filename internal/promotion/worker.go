package promotion

import (
	"context"
	"time"

	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Worker runs the offer expiry sweep on a timer.
type Worker struct {
	engine   *Engine
	interval time.Duration
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
}

func NewWorker(engine *Engine, interval time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *Worker {
	if engine == nil {
		panic("promotion: engine required")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{engine: engine, interval: interval, metrics: m, logger: logger}
}

// Start sweeps until the context is cancelled. Run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("offer expiry worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("offer expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	started := time.Now()
	expired := w.engine.ExpireSweep(ctx)
	w.metrics.ObserveOfferSweep(time.Since(started).Seconds())
	if expired > 0 {
		w.logger.Info("expired lapsed offers", "count", expired)
	}
}
