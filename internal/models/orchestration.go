package models

import (
	"time"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

type OrchestrationStatus string

const (
	OrchestrationInProgress OrchestrationStatus = "in_progress"
	OrchestrationCompleted  OrchestrationStatus = "completed"
	OrchestrationPartial    OrchestrationStatus = "partial"
	OrchestrationFailed     OrchestrationStatus = "failed"
	OrchestrationCancelled  OrchestrationStatus = "cancelled"
)

// Orchestration aggregates every job spawned by one publish request.
type Orchestration struct {
	ID                  string                                          `gorm:"primaryKey;size:64" json:"jobId"`
	ContentID           string                                          `gorm:"not null;index;size:191" json:"contentId"`
	TotalPlatforms      int                                             `gorm:"not null" json:"totalPlatforms"`
	SuccessfulPlatforms int                                             `gorm:"not null;default:0" json:"successfulPlatforms"`
	FailedPlatforms     int                                             `gorm:"not null;default:0" json:"failedPlatforms"`
	Status              OrchestrationStatus                             `gorm:"size:32;not null" json:"status"`
	Results             JSONColumn[map[string]*publisher.PublishResult] `gorm:"type:text" json:"results"`
	JobIDs              JSONColumn[map[string]string]                   `gorm:"type:text" json:"-"`
	CreatedAt           time.Time                                       `json:"createdAt"`
	UpdatedAt           time.Time                                       `json:"updatedAt"`

	// Jobs is filled on read from the job store.
	Jobs map[string]*PublishingJob `gorm:"-" json:"jobs"`
}

// Reconcile derives counts and status from the child jobs and the results
// recorded at creation time. A cancelled aggregate stays cancelled.
func (o *Orchestration) Reconcile() {
	results := make(map[string]*publisher.PublishResult, len(o.Results.Data)+len(o.Jobs))
	for platform, result := range o.Results.Data {
		results[platform] = result
	}

	pending := 0
	for platform, job := range o.Jobs {
		switch job.Status {
		case JobStatusCompleted, JobStatusFailed:
			if job.Result.Data != nil {
				results[platform] = job.Result.Data
			} else {
				results[platform] = publisher.Failure(job.LastError)
			}
		default:
			pending++
		}
	}

	successful, failed := 0, 0
	for _, result := range results {
		if result.Success {
			successful++
		} else {
			failed++
		}
	}

	o.Results = NewJSONColumn(results)
	o.SuccessfulPlatforms = successful
	o.FailedPlatforms = failed

	if o.Status == OrchestrationCancelled {
		return
	}
	switch {
	case pending > 0:
		o.Status = OrchestrationInProgress
	case failed == 0:
		o.Status = OrchestrationCompleted
	case successful == 0:
		o.Status = OrchestrationFailed
	default:
		o.Status = OrchestrationPartial
	}
}
