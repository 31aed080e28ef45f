package application

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
)

// DraftSyncWorker periodically retries reconciliation passes that failed
type DraftSyncWorker struct {
	engine    *StakeEngine
	interval  time.Duration
	scheduler gocron.Scheduler
}

// NewDraftSyncWorker creates a new draft sync worker
func NewDraftSyncWorker(engine *StakeEngine, interval time.Duration) *DraftSyncWorker {
	return &DraftSyncWorker{
		engine:   engine,
		interval: interval,
	}
}

// Start schedules the sync job. A run still in progress when the next one
// is due is not overlapped.
func (w *DraftSyncWorker) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			w.RunOnce(ctx)
		}),
		gocron.WithName("draft-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule draft sync job: %w", err)
	}

	w.scheduler = scheduler
	scheduler.Start()

	log.WithField("interval", w.interval).Info("Draft sync worker started")
	return nil
}

// RunOnce retries every pending session and returns how many were synced
func (w *DraftSyncWorker) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	synced, err := w.engine.RetryPendingSessions(ctx)
	if err != nil {
		log.WithError(err).Error("Draft sync run failed")
		return synced
	}
	if synced > 0 {
		log.WithField("synced", synced).Info("Synced pending stake drafts")
	}
	return synced
}

// Stop shuts the scheduler down, waiting for a running job to finish
func (w *DraftSyncWorker) Stop() error {
	if w.scheduler == nil {
		return nil
	}
	log.Info("Draft sync worker shutting down...")
	return w.scheduler.Shutdown()
}
