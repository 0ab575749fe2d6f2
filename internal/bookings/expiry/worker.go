// Package expiry releases pending bookings that were never confirmed within
// the configured hold period.
package expiry

import (
	"context"
	"fmt"
	"time"

	"wheelaway/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

const JobName = "expire-stale-pending"

type Expirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type Worker struct {
	expirer  Expirer
	holdTTL  time.Duration
	interval time.Duration
	log      *logger.Logger
}

func NewWorker(expirer Expirer, holdTTL, interval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		expirer:  expirer,
		holdTTL:  holdTTL,
		interval: interval,
		log:      log.Component("expiry"),
	}
}

// Run schedules the sweep every interval until ctx is done. Sweeps never
// overlap; a slow one pushes the next run back.
func (w *Worker) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() { w.sweep(ctx) }),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", JobName, err)
	}

	w.log.Info("Pending booking expiry started", "hold_ttl", w.holdTTL, "interval", w.interval)
	scheduler.Start()

	<-ctx.Done()
	if err := scheduler.Shutdown(); err != nil {
		w.log.Warn("Scheduler shutdown failed", "error", err)
	}
	w.log.Info("Pending booking expiry stopped")
	return nil
}

func (w *Worker) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := w.expirer.ExpireStalePending(ctx, w.holdTTL)
	if err != nil {
		w.log.Error("Pending booking sweep failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Info("Pending booking sweep finished", "expired", n)
	}
}
