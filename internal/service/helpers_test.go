package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ifuryst/autopost/internal/models"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/publisher/publishertest"
	"github.com/ifuryst/autopost/internal/service/queue"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "autopost.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewGormStore(db)
}

func seedContent(t *testing.T, store *GormStore, content *models.Content) {
	t.Helper()
	if err := store.PutContent(context.Background(), content); err != nil {
		t.Fatalf("seed content: %v", err)
	}
}

// recordingQueue keeps enqueued messages in memory and hands all of them
// out on Dequeue regardless of delay.
type recordingQueue struct {
	mu       sync.Mutex
	messages []queue.Message
	delays   []time.Duration
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, msg queue.Message, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	q.delays = append(q.delays, delay)
	return nil
}

func (q *recordingQueue) Dequeue(_ context.Context, limit int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > len(q.messages) {
		limit = len(q.messages)
	}
	out := append([]queue.Message(nil), q.messages[:limit]...)
	q.messages = q.messages[limit:]
	q.delays = q.delays[limit:]
	return out, nil
}

func (q *recordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// failingJobStore wraps a store and fails the selected operations.
type failingJobStore struct {
	JobStore
	putErr    error
	updateErr error
}

func (s *failingJobStore) PutJob(ctx context.Context, job *models.PublishingJob) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.JobStore.PutJob(ctx, job)
}

func (s *failingJobStore) UpdateJob(ctx context.Context, id string, fields map[string]any) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.JobStore.UpdateJob(ctx, id, fields)
}

func (s *failingJobStore) TransitionJob(ctx context.Context, id string, from []models.JobStatus, fields map[string]any) (bool, error) {
	if s.updateErr != nil {
		return false, s.updateErr
	}
	return s.JobStore.TransitionJob(ctx, id, from, fields)
}

// interleavingJobStore runs afterGet once, right after the first GetJob,
// to let another writer act between a worker's read and its claim.
type interleavingJobStore struct {
	JobStore
	once     sync.Once
	afterGet func()
}

func (s *interleavingJobStore) GetJob(ctx context.Context, id string) (*models.PublishingJob, error) {
	job, err := s.JobStore.GetJob(ctx, id)
	s.once.Do(s.afterGet)
	return job, err
}

var errStoreDown = errors.New("store unavailable")

func newTestRegistry(t *testing.T, agents ...*publishertest.Agent) *publisher.Registry {
	t.Helper()
	reg := publisher.NewRegistry(nil)
	for _, a := range agents {
		if err := reg.RegisterAgent(a.Name, a, true, nil); err != nil {
			t.Fatalf("register %s: %v", a.Name, err)
		}
	}
	return reg
}

func validConfig(platform string) publisher.PublishingConfig {
	return publisher.PublishingConfig{Platform: platform, Credentials: map[string]string{"token": "valid"}}
}

func noSleep(context.Context, time.Duration) error { return nil }
