package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ifuryst/autopost/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ContentStore reads content and records publish outcomes on it.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*models.Content, error)
	UpdateContent(ctx context.Context, id string, fields map[string]any) error
}

// JobStore persists publishing jobs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*models.PublishingJob, error)
	PutJob(ctx context.Context, job *models.PublishingJob) error
	UpdateJob(ctx context.Context, id string, fields map[string]any) error
	TransitionJob(ctx context.Context, id string, from []models.JobStatus, fields map[string]any) (bool, error)
	QueryByOrchestrationID(ctx context.Context, orchestrationID string) ([]*models.PublishingJob, error)
	ListStale(ctx context.Context, statuses []models.JobStatus, before time.Time, limit int) ([]*models.PublishingJob, error)
}

// OrchestrationStore persists orchestration aggregates.
type OrchestrationStore interface {
	GetOrchestration(ctx context.Context, id string) (*models.Orchestration, error)
	PutOrchestration(ctx context.Context, o *models.Orchestration) error
	UpdateOrchestration(ctx context.Context, id string, fields map[string]any) error
}

// GormStore implements every store on top of gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetContent(ctx context.Context, id string) (*models.Content, error) {
	var content models.Content
	if err := s.db.WithContext(ctx).First(&content, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "get content %s", id)
	}
	return &content, nil
}

func (s *GormStore) PutContent(ctx context.Context, content *models.Content) error {
	if err := s.db.WithContext(ctx).Create(content).Error; err != nil {
		return fmt.Errorf("put content %s: %w", content.ID, err)
	}
	return nil
}

func (s *GormStore) UpdateContent(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, &models.Content{}, "content", id, fields)
}

func (s *GormStore) GetJob(ctx context.Context, id string) (*models.PublishingJob, error) {
	var job models.PublishingJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "get job %s", id)
	}
	return &job, nil
}

func (s *GormStore) PutJob(ctx context.Context, job *models.PublishingJob) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("put job %s: %w", job.ID, err)
	}
	return nil
}

func (s *GormStore) UpdateJob(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, &models.PublishingJob{}, "job", id, fields)
}

// TransitionJob applies fields only while the job is in one of the from
// statuses, in a single conditional UPDATE. It reports whether the job was
// changed; false means it is missing or another writer moved it first.
func (s *GormStore) TransitionJob(ctx context.Context, id string, from []models.JobStatus, fields map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.PublishingJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, fmt.Errorf("transition job %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) QueryByOrchestrationID(ctx context.Context, orchestrationID string) ([]*models.PublishingJob, error) {
	var jobs []*models.PublishingJob
	err := s.db.WithContext(ctx).
		Where("orchestration_id = ?", orchestrationID).
		Order("created_at, id").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("query jobs of orchestration %s: %w", orchestrationID, err)
	}
	return jobs, nil
}

// ListStale returns jobs in one of statuses not touched since before, oldest first.
func (s *GormStore) ListStale(ctx context.Context, statuses []models.JobStatus, before time.Time, limit int) ([]*models.PublishingJob, error) {
	var jobs []*models.PublishingJob
	query := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, before).
		Order("updated_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}

func (s *GormStore) GetOrchestration(ctx context.Context, id string) (*models.Orchestration, error) {
	var o models.Orchestration
	if err := s.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err, "get orchestration %s", id)
	}
	return &o, nil
}

func (s *GormStore) PutOrchestration(ctx context.Context, o *models.Orchestration) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("put orchestration %s: %w", o.ID, err)
	}
	return nil
}

func (s *GormStore) UpdateOrchestration(ctx context.Context, id string, fields map[string]any) error {
	return s.update(ctx, &models.Orchestration{}, "orchestration", id, fields)
}

// JobCount is the number of jobs of one platform in one status.
type JobCount struct {
	Platform string `json:"platform"`
	Status   string `json:"status"`
	Count    int64  `json:"count"`
}

// CountJobs groups every job by platform and status.
func (s *GormStore) CountJobs(ctx context.Context) ([]JobCount, error) {
	var counts []JobCount
	err := s.db.WithContext(ctx).
		Model(&models.PublishingJob{}).
		Select("platform, status, count(*) as count").
		Group("platform, status").
		Order("platform, status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	return counts, nil
}

func (s *GormStore) update(ctx context.Context, model any, kind, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
