package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/pkg/util"
)

// DefaultMaxAttempts bounds both the synchronous retry loop and queued jobs.
const DefaultMaxAttempts = 3

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type RetryOptions struct {
	MaxAttempts int
	// Sleep defaults to a context-aware timer.
	Sleep  SleepFunc
	Logger *zap.Logger
}

// Backoff returns 2^(attempt-1) seconds for attempt >= 1.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PublishWithRetry publishes to each platform in turn, retrying failed
// attempts with exponential backoff. Platforms without a config fail
// immediately without using an attempt, and platforms without an enabled
// agent fail after the first one. The result covers every requested
// platform exactly once.
func PublishWithRetry(ctx context.Context, registry *Registry, platforms []string, content string, configs map[string]PublishingConfig, imageURL string, opts RetryOptions) map[string]*PublishResult {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	results := make(map[string]*PublishResult, len(platforms))
	for _, platform := range util.Unique(platforms) {
		config, ok := LookupConfig(configs, platform)
		if !ok {
			opts.Logger.Warn("Platform config not found", zap.String("platform", platform))
			results[platform] = Failure(MissingConfigMessage(platform))
			continue
		}
		results[platform] = publishPlatformWithRetry(ctx, registry, platform, content, config, imageURL, opts)
	}
	return results
}

func publishPlatformWithRetry(ctx context.Context, registry *Registry, platform, content string, config PublishingConfig, imageURL string, opts RetryOptions) *PublishResult {
	var lastError string
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := registry.Publish(ctx, platform, content, config, imageURL)
		if err == nil && result.Success {
			return result
		}

		if err != nil {
			lastError = util.ErrorMessage(err)
		} else {
			lastError = result.Error
		}

		opts.Logger.Warn("Publish attempt failed",
			zap.String("platform", platform),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", opts.MaxAttempts),
			zap.String("error", lastError))

		// An unknown or disabled platform will not appear between attempts.
		if errors.Is(err, ErrAgentNotFound) || attempt == opts.MaxAttempts {
			break
		}
		if err := opts.Sleep(ctx, Backoff(attempt)); err != nil {
			opts.Logger.Warn("Retry backoff interrupted",
				zap.String("platform", platform),
				zap.Error(err))
			break
		}
	}

	return Failure(lastError)
}
