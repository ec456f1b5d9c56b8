// Package queue implements the delayed work queue that feeds publishing jobs
// to workers.
//
// Messages live in a Redis sorted set scored by their due time in unix
// milliseconds. A consumer claims a due message by removing it, so a message
// is handed to at most one consumer per enqueue. Delivery is at-least-once
// across crashes: consumers must be idempotent per job id.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

// DefaultKey is the default sorted set holding queued messages.
const DefaultKey = "autopost:publishing-jobs"

// DefaultTimeout bounds every Redis round trip.
const DefaultTimeout = 5 * time.Second

// Message references one publishing job.
type Message struct {
	JobID     string                     `json:"jobId"`
	ContentID string                     `json:"contentId"`
	Platform  string                     `json:"platform"`
	Config    publisher.PublishingConfig `json:"config"`
	ImageURL  string                     `json:"imageUrl,omitempty"`
}

// Config configures the Redis queue.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Key is the sorted set name (default autopost:publishing-jobs).
	Key string
	// Timeout is the per-command timeout (default 5s).
	Timeout time.Duration
}

// RedisQueue is a delayed queue backed by a Redis sorted set.
type RedisQueue struct {
	client  *goredis.Client
	key     string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a queue from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config, logger *zap.Logger) (*RedisQueue, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis queue requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis queue: invalid URL: %w", err)
	}

	return NewWithClient(goredis.NewClient(opts), cfg.Key, cfg.Timeout, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, key string, timeout time.Duration, logger *zap.Logger) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client:  client,
		key:     key,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Enqueue schedules msg for delivery after delay. Enqueueing an identical
// message again moves its due time instead of duplicating it.
func (q *RedisQueue) Enqueue(ctx context.Context, msg Message, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis queue: marshal message: %w", err)
	}

	if delay < 0 {
		delay = 0
	}
	due := q.now().Add(delay).UnixMilli()

	cmdCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := q.client.ZAdd(cmdCtx, q.key, goredis.Z{Score: float64(due), Member: string(body)}).Err(); err != nil {
		return fmt.Errorf("redis queue: enqueue job %s: %w", msg.JobID, err)
	}

	q.logger.Debug("Message enqueued",
		zap.String("job_id", msg.JobID),
		zap.String("platform", msg.Platform),
		zap.Duration("delay", delay))
	return nil
}

// Dequeue claims up to limit messages whose due time has passed.
func (q *RedisQueue) Dequeue(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1
	}

	cmdCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	members, err := q.client.ZRangeByScore(cmdCtx, q.key, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis queue: read due messages: %w", err)
	}

	messages := make([]Message, 0, len(members))
	for _, member := range members {
		removed, err := q.client.ZRem(cmdCtx, q.key, member).Result()
		if err != nil {
			return messages, fmt.Errorf("redis queue: claim message: %w", err)
		}
		if removed == 0 {
			// another consumer claimed it first
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(member), &msg); err != nil {
			q.logger.Error("Dropping undecodable queue message", zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Len returns the number of queued messages, due or not.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	return q.client.ZCard(cmdCtx, q.key).Result()
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
