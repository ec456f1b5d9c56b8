package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/models"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/queue"
	"github.com/ifuryst/autopost/pkg/util"
)

var (
	// ErrInvalidRequest marks input the caller must fix.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCancelled is returned when retrying a cancelled orchestration.
	ErrCancelled = errors.New("orchestration is cancelled")
)

// WorkQueue accepts job messages for delayed delivery.
type WorkQueue interface {
	Enqueue(ctx context.Context, msg queue.Message, delay time.Duration) error
}

// OrchestrateRequest asks for content to be published to several platforms
// through the job queue.
type OrchestrateRequest struct {
	ContentID string                                `json:"contentId"`
	Platforms []string                              `json:"platforms"`
	Configs   map[string]publisher.PublishingConfig `json:"configs"`
	ImageURL  string                                `json:"imageUrl,omitempty"`
}

// Orchestrator fans a publish request out into one queued job per platform
// and tracks the jobs under a single aggregate.
type Orchestrator struct {
	jobs           JobStore
	orchestrations OrchestrationStore
	queue          WorkQueue
	logger         *zap.Logger
	maxAttempts    int

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(jobs JobStore, orchestrations OrchestrationStore, q WorkQueue, logger *zap.Logger, maxAttempts int) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = publisher.DefaultMaxAttempts
	}
	return &Orchestrator{
		jobs:           jobs,
		orchestrations: orchestrations,
		queue:          q,
		logger:         logger,
		maxAttempts:    maxAttempts,
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// OrchestratePublishing creates one job per platform that has a config and
// enqueues it. Platforms without a config are recorded as failed on the
// aggregate right away. Persistence and queue errors abort the call.
func (o *Orchestrator) OrchestratePublishing(ctx context.Context, req OrchestrateRequest) (*models.Orchestration, error) {
	if strings.TrimSpace(req.ContentID) == "" {
		return nil, fmt.Errorf("%w: contentId is required", ErrInvalidRequest)
	}
	platforms := normalizePlatforms(req.Platforms)
	if len(platforms) == 0 {
		return nil, fmt.Errorf("%w: at least one platform is required", ErrInvalidRequest)
	}

	id := o.newID()
	logger := o.logger.With(zap.String("orchestration_id", id), zap.String("content_id", req.ContentID))

	results := make(map[string]*publisher.PublishResult)
	jobIDs := make(map[string]string)
	jobs := make(map[string]*models.PublishingJob)

	for _, platform := range platforms {
		cfg, ok := publisher.LookupConfig(req.Configs, platform)
		if !ok {
			logger.Warn("No configuration for platform", zap.String("platform", platform))
			results[platform] = publisher.Failure(publisher.MissingConfigMessage(platform))
			continue
		}

		job := &models.PublishingJob{
			ID:              models.JobID(id, platform),
			OrchestrationID: id,
			ContentID:       req.ContentID,
			Platform:        platform,
			Config:          models.NewJSONColumn(cfg),
			ImageURL:        req.ImageURL,
			Status:          models.JobStatusPending,
			MaxAttempts:     o.maxAttempts,
		}
		if err := o.jobs.PutJob(ctx, job); err != nil {
			return nil, fmt.Errorf("orchestrate %s: %w", id, err)
		}
		if err := o.enqueue(ctx, job, 0); err != nil {
			return nil, fmt.Errorf("orchestrate %s: %w", id, err)
		}

		jobs[platform] = job
		jobIDs[platform] = job.ID
	}

	now := o.now()
	agg := &models.Orchestration{
		ID:             id,
		ContentID:      req.ContentID,
		TotalPlatforms: len(platforms),
		Status:         models.OrchestrationInProgress,
		Results:        models.NewJSONColumn(results),
		JobIDs:         models.NewJSONColumn(jobIDs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Counts and status are derived from the jobs on read; the stored row
	// keeps its initial values.
	if err := o.orchestrations.PutOrchestration(ctx, agg); err != nil {
		return nil, fmt.Errorf("orchestrate %s: %w", id, err)
	}
	agg.Jobs = jobs

	logger.Info("Publishing orchestrated",
		zap.Int("platforms", len(platforms)),
		zap.Int("jobs", len(jobs)))
	return agg, nil
}

// RetryFailedJobs puts every failed job with attempts left back on the
// queue with exponential delay. The returned aggregate reflects the retried
// jobs but not their outcome.
func (o *Orchestrator) RetryFailedJobs(ctx context.Context, orchestrationID string) (*models.Orchestration, error) {
	agg, err := o.orchestrations.GetOrchestration(ctx, orchestrationID)
	if err != nil {
		return nil, err
	}
	if agg.Status == models.OrchestrationCancelled {
		return nil, fmt.Errorf("retry %s: %w", orchestrationID, ErrCancelled)
	}

	jobs, err := o.jobs.QueryByOrchestrationID(ctx, orchestrationID)
	if err != nil {
		return nil, err
	}

	retried := 0
	for _, job := range jobs {
		if !job.CanRetry() {
			continue
		}

		job.Attempts++
		delay := publisher.Backoff(job.Attempts + 1)
		next := o.now().Add(delay)
		reset, err := o.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{models.JobStatusFailed}, map[string]any{
			"status":        models.JobStatusPending,
			"attempts":      job.Attempts,
			"next_retry_at": next,
		})
		if err != nil {
			return nil, fmt.Errorf("retry %s: %w", orchestrationID, err)
		}
		if !reset {
			// A concurrent retry got there first.
			job.Attempts--
			continue
		}
		job.Status = models.JobStatusPending
		job.NextRetryAt = &next

		if err := o.enqueue(ctx, job, delay); err != nil {
			return nil, fmt.Errorf("retry %s: %w", orchestrationID, err)
		}
		retried++

		o.logger.Info("Job scheduled for retry",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempts),
			zap.Duration("delay", delay))
	}

	if retried > 0 && agg.Status != models.OrchestrationInProgress {
		if err := o.orchestrations.UpdateOrchestration(ctx, orchestrationID, map[string]any{
			"status": models.OrchestrationInProgress,
		}); err != nil {
			return nil, fmt.Errorf("retry %s: %w", orchestrationID, err)
		}
		agg.Status = models.OrchestrationInProgress
	}

	agg.Jobs = jobsByPlatform(jobs)
	return agg, nil
}

// CancelJob marks the aggregate cancelled and cancels every job that has not
// finished. Jobs already completed or failed keep their outcome.
func (o *Orchestrator) CancelJob(ctx context.Context, orchestrationID string) (*models.Orchestration, error) {
	agg, err := o.orchestrations.GetOrchestration(ctx, orchestrationID)
	if err != nil {
		return nil, err
	}

	if err := o.orchestrations.UpdateOrchestration(ctx, orchestrationID, map[string]any{
		"status": models.OrchestrationCancelled,
	}); err != nil {
		return nil, fmt.Errorf("cancel %s: %w", orchestrationID, err)
	}
	agg.Status = models.OrchestrationCancelled

	jobs, err := o.jobs.QueryByOrchestrationID(ctx, orchestrationID)
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if !job.Status.IsCancellable() {
			continue
		}
		cancelled, err := o.jobs.TransitionJob(ctx, job.ID, cancellableStatuses, map[string]any{
			"status": models.JobStatusCancelled,
		})
		if err != nil {
			return nil, fmt.Errorf("cancel %s: %w", orchestrationID, err)
		}
		if !cancelled {
			// Finished between the listing and the update.
			if current, err := o.jobs.GetJob(ctx, job.ID); err == nil {
				*job = *current
			}
			continue
		}
		job.Status = models.JobStatusCancelled
	}

	agg.Jobs = jobsByPlatform(jobs)
	agg.Reconcile()

	o.logger.Info("Orchestration cancelled", zap.String("orchestration_id", orchestrationID))
	return agg, nil
}

var cancellableStatuses = []models.JobStatus{
	models.JobStatusPending,
	models.JobStatusQueued,
	models.JobStatusInProgress,
}

// GetJobStatus returns the aggregate with counts derived from its jobs, or
// nil when it does not exist.
func (o *Orchestrator) GetJobStatus(ctx context.Context, orchestrationID string) (*models.Orchestration, error) {
	agg, err := o.orchestrations.GetOrchestration(ctx, orchestrationID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	jobs, err := o.jobs.QueryByOrchestrationID(ctx, orchestrationID)
	if err != nil {
		return nil, err
	}

	agg.Jobs = jobsByPlatform(jobs)
	agg.Reconcile()
	return agg, nil
}

// enqueue sends the job to the queue and then marks it queued. A failed
// status write leaves the job pending for the reconciler to pick up.
func (o *Orchestrator) enqueue(ctx context.Context, job *models.PublishingJob, delay time.Duration) error {
	if err := o.queue.Enqueue(ctx, messageFor(job), delay); err != nil {
		return err
	}

	// Conditional so a worker that already claimed the job keeps it.
	marked, err := o.jobs.TransitionJob(ctx, job.ID, []models.JobStatus{models.JobStatusPending}, map[string]any{
		"status": models.JobStatusQueued,
	})
	if err != nil {
		o.logger.Warn("Failed to mark job queued",
			zap.String("job_id", job.ID),
			zap.String("error", util.ErrorMessage(err)))
		return nil
	}
	if marked {
		job.Status = models.JobStatusQueued
	}
	return nil
}

func messageFor(job *models.PublishingJob) queue.Message {
	return queue.Message{
		JobID:     job.ID,
		ContentID: job.ContentID,
		Platform:  job.Platform,
		Config:    job.Config.Data,
		ImageURL:  job.ImageURL,
	}
}

func jobsByPlatform(jobs []*models.PublishingJob) map[string]*models.PublishingJob {
	byPlatform := make(map[string]*models.PublishingJob, len(jobs))
	for _, job := range jobs {
		byPlatform[job.Platform] = job
	}
	return byPlatform
}

// normalizePlatforms lower-cases, trims and dedupes platform names.
func normalizePlatforms(platforms []string) []string {
	normalized := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return util.Unique(normalized)
}
