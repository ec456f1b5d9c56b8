package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/models"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/queue"
	"github.com/ifuryst/autopost/pkg/util"
)

// MessageSource hands out due queue messages.
type MessageSource interface {
	Dequeue(ctx context.Context, limit int) ([]queue.Message, error)
}

type WorkerOptions struct {
	PollInterval time.Duration
	BatchSize    int
}

// Worker executes queued publishing jobs one message at a time.
type Worker struct {
	contents ContentStore
	jobs     JobStore
	source   MessageSource
	registry *publisher.Registry
	logger   *zap.Logger
	opts     WorkerOptions
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewWorker(contents ContentStore, jobs JobStore, source MessageSource, registry *publisher.Registry, logger *zap.Logger, opts WorkerOptions) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Worker{
		contents: contents,
		jobs:     jobs,
		source:   source,
		registry: registry,
		logger:   logger,
		opts:     opts,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start polls the queue until Stop is called or ctx is done. Only the first
// call starts a loop.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	w.logger.Info("Starting worker",
		zap.Duration("poll_interval", w.opts.PollInterval),
		zap.Int("batch_size", w.opts.BatchSize))

	go func() {
		defer close(w.doneCh)

		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()

		for {
			if _, err := w.Poll(ctx); err != nil {
				w.logger.Error("Worker poll failed", zap.Error(err))
			}

			select {
			case <-ticker.C:
			case <-w.stopCh:
				w.logger.Info("Worker stopped")
				return
			case <-ctx.Done():
				w.logger.Info("Worker context cancelled")
				return
			}
		}
	}()
}

// Stop signals the polling loop and waits for the current batch to finish.
// It is safe to call more than once and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if !w.started.Load() {
		return
	}
	<-w.doneCh
	w.logger.Info("Worker shutdown completed")
}

// Poll claims one batch of due messages and processes them in order. It
// returns how many messages were claimed.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	messages, err := w.source.Dequeue(ctx, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, msg := range messages {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			w.logger.Error("Failed to process job",
				zap.String("job_id", msg.JobID),
				zap.Error(err))
		}
	}
	return len(messages), nil
}

// ProcessMessage runs the job a message refers to. A job is claimed with a
// conditional pending/queued -> in_progress transition, so redelivered
// messages and concurrent workers publish it at most once, and a job
// cancelled before the claim is never published.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	logger := w.logger.With(zap.String("job_id", msg.JobID), zap.String("platform", msg.Platform))

	job, err := w.jobs.GetJob(ctx, msg.JobID)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("Dropping message for unknown job")
		return nil
	}
	if err != nil {
		return err
	}

	claimed, err := w.jobs.TransitionJob(ctx, job.ID, claimableStatuses, map[string]any{
		"status": models.JobStatusInProgress,
	})
	if err != nil {
		return fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		logger.Info("Skipping job not claimable", zap.String("status", string(job.Status)))
		return nil
	}

	cfg := job.Config.Data
	if len(msg.Config.Credentials) > 0 {
		cfg = msg.Config
	}
	imageURL := msg.ImageURL
	if imageURL == "" {
		imageURL = job.ImageURL
	}

	var result *publisher.PublishResult
	content, err := w.contents.GetContent(ctx, job.ContentID)
	if err == nil {
		result, err = w.registry.Publish(ctx, job.Platform, content.Markdown(), cfg, imageURL)
	}
	if err != nil {
		result = publisher.Failure(util.ErrorMessage(err))
	}

	status := models.JobStatusFailed
	if result.Success {
		status = models.JobStatusCompleted
	}
	finished, err := w.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{models.JobStatusInProgress}, outcomeFields(result, status))
	if err != nil {
		return fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	if !finished {
		// Cancelled mid-flight: record what happened, keep the status.
		if _, err := w.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{models.JobStatusCancelled}, outcomeFields(result, "")); err != nil {
			return fmt.Errorf("finish job %s: %w", job.ID, err)
		}
		logger.Info("Job left in_progress while publishing, keeping its status")
	}

	logger.Info("Job finished",
		zap.Bool("success", result.Success),
		zap.String("url", result.URL),
		zap.String("error", result.Error))
	return nil
}

var claimableStatuses = []models.JobStatus{models.JobStatusPending, models.JobStatusQueued}

func outcomeFields(result *publisher.PublishResult, status models.JobStatus) map[string]any {
	fields := map[string]any{
		"result":     models.NewJSONColumn(result),
		"last_error": result.Error,
	}
	if status != "" {
		fields["status"] = status
	}
	return fields
}
