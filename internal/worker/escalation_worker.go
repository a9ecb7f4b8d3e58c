package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/service"
)

// EscalationWorker runs the SLA escalation sweep on a cron schedule.
// Scanning is a dedicated periodic task rather than a side effect of
// request handling, so list and update requests never pay for it.
type EscalationWorker struct {
	scanner  *service.EscalationScanner
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
	rootCtx  context.Context
}

// NewEscalationWorker constructs the worker.
func NewEscalationWorker(ctx context.Context, scanner *service.EscalationScanner, schedule string, logger *zap.Logger) *EscalationWorker {
	return &EscalationWorker{
		scanner:  scanner,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
		rootCtx:  ctx,
	}
}

// Start registers the sweep job and starts the scheduler.
func (w *EscalationWorker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, w.runSweep)
	if err != nil {
		return err
	}
	w.cron.Start()
	w.logger.Info("escalation worker started", zap.String("schedule", w.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *EscalationWorker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
}

func (w *EscalationWorker) runSweep() {
	ctx, cancel := context.WithTimeout(w.rootCtx, 5*time.Minute)
	defer cancel()

	escalated, err := w.scanner.Scan(ctx)
	if err != nil {
		w.logger.Error("escalation sweep failed", zap.Error(err))
		return
	}
	if escalated > 0 {
		w.logger.Info("escalation sweep finished", zap.Int("escalated", escalated))
	}
}
