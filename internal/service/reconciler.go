package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/models"
)

type ReconcilerOptions struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

// Reconciler re-enqueues jobs stuck before or during execution, e.g. after
// a failed queue write or a worker crash.
type Reconciler struct {
	jobs   JobStore
	queue  WorkQueue
	stats  JobCounter
	logger *zap.Logger
	opts   ReconcilerOptions
	now    func() time.Time
	ticker *time.Ticker
	once   sync.Once
	stopCh chan struct{}
}

func NewReconciler(jobs JobStore, q WorkQueue, stats JobCounter, logger *zap.Logger, opts ReconcilerOptions) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Reconciler{
		jobs:   jobs,
		queue:  q,
		stats:  stats,
		logger: logger,
		opts:   opts,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		zap.Duration("interval", r.opts.Interval),
		zap.Duration("stale_after", r.opts.StaleAfter))

	r.ticker = time.NewTicker(r.opts.Interval)

	go func() {
		for {
			select {
			case <-r.ticker.C:
				r.run(ctx)
			case <-r.stopCh:
				r.logger.Info("Reconciler stopped")
				return
			case <-ctx.Done():
				r.logger.Info("Reconciler context cancelled")
				return
			}
		}
	}()
}

// Stop ends the sweep loop. Repeated calls are no-ops.
func (r *Reconciler) Stop() {
	r.once.Do(func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.stopCh)
	})
}

func (r *Reconciler) run(ctx context.Context) {
	start := time.Now()
	requeued, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("Reconcile sweep failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	r.logger.Info("Reconcile sweep completed",
		zap.Int("requeued", requeued),
		zap.Duration("duration", time.Since(start)))

	if r.stats == nil {
		return
	}
	counts, err := r.stats.CountJobs(ctx)
	if err != nil {
		r.logger.Error("Failed to count jobs", zap.Error(err))
		return
	}
	for _, c := range counts {
		r.logger.Info("Job stats",
			zap.String("platform", c.Platform),
			zap.String("status", c.Status),
			zap.Int64("count", c.Count))
	}
}

// Sweep re-enqueues pending and in-progress jobs untouched for longer than
// StaleAfter. It returns how many jobs were put back on the queue.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	before := r.now().Add(-r.opts.StaleAfter)
	stale, err := r.jobs.ListStale(ctx,
		[]models.JobStatus{models.JobStatusPending, models.JobStatusInProgress},
		before, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, job := range stale {
		// Mark queued before enqueueing so a worker that receives the
		// message can claim it. A job moved since the listing is skipped.
		moved, err := r.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{job.Status}, map[string]any{
			"status": models.JobStatusQueued,
		})
		if err != nil {
			return requeued, err
		}
		if !moved {
			continue
		}
		if err := r.queue.Enqueue(ctx, messageFor(job), 0); err != nil {
			if _, rerr := r.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{models.JobStatusQueued}, map[string]any{
				"status": job.Status,
			}); rerr != nil {
				r.logger.Error("Failed to restore job status", zap.String("job_id", job.ID), zap.Error(rerr))
			}
			return requeued, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		requeued++

		r.logger.Warn("Stale job requeued",
			zap.String("job_id", job.ID),
			zap.String("previous_status", string(job.Status)))
	}
	return requeued, nil
}
