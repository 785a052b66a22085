package cron

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the recurring reconciliation jobs.
type Scheduler struct {
	cron   *cron.Cron
	poller *Poller
	logger *zap.Logger
}

// New creates a new cron scheduler around the reconciliation poller.
func New(poller *Poller, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		poller: poller,
		logger: logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Query pending orders - every minute
	s.cron.AddFunc("0 * * * * *", func() {
		defer s.recoverFromPanic("queryPendingOrders")
		s.logger.Debug("Running: query pending orders")
		s.poller.Run(context.Background(), time.Now())
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) recoverFromPanic(job string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked",
			zap.String("job", job),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
	}
}
