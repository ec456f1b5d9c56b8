package models

import (
	"time"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether no further processing happens without an explicit retry.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsCancellable reports whether cancellation still applies.
func (s JobStatus) IsCancellable() bool {
	return s == JobStatusPending || s == JobStatusQueued || s == JobStatusInProgress
}

// PublishingJob is one (content, platform) unit of work
type PublishingJob struct {
	ID              string                                 `gorm:"primaryKey;size:191" json:"id"`
	OrchestrationID string                                 `gorm:"not null;index;size:64" json:"orchestrationId"`
	ContentID       string                                 `gorm:"not null;index;size:191" json:"contentId"`
	Platform        string                                 `gorm:"not null;size:100" json:"platform"`
	Config          JSONColumn[publisher.PublishingConfig] `gorm:"type:text" json:"-"`
	ImageURL        string                                 `gorm:"size:2048" json:"imageUrl,omitempty"`
	Status          JobStatus                              `gorm:"size:32;not null;index" json:"status"`
	Attempts        int                                    `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts     int                                    `gorm:"not null;default:3" json:"maxAttempts"`
	LastError       string                                 `gorm:"type:text" json:"lastError,omitempty"`
	Result          JSONColumn[*publisher.PublishResult]   `gorm:"type:text" json:"result,omitempty"`
	CreatedAt       time.Time                              `json:"createdAt"`
	UpdatedAt       time.Time                              `json:"updatedAt"`
	NextRetryAt     *time.Time                             `json:"nextRetryAt,omitempty"`
}

// JobID derives the job identity from its orchestration and platform.
func JobID(orchestrationID, platform string) string {
	return orchestrationID + "#" + platform
}

// CanRetry reports whether a failed job still has attempts left.
func (j *PublishingJob) CanRetry() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}
