package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/models"
	"github.com/ifuryst/autopost/internal/service/publisher"
)

// PublishRequest asks for stored content to be published directly, without
// the job queue.
type PublishRequest struct {
	ContentID string                                `json:"contentId"`
	Platforms []string                              `json:"platforms"`
	Configs   map[string]publisher.PublishingConfig `json:"configs"`
	ImageURL  string                                `json:"imageUrl,omitempty"`
	// RetryFailedOnly restricts Platforms to those whose last recorded
	// result on the content is a failure.
	RetryFailedOnly bool `json:"retryFailedOnly,omitempty"`
}

type PublishResponse struct {
	ContentID         string                              `json:"contentId"`
	Results           map[string]*publisher.PublishResult `json:"results"`
	PublishingResults []models.PlatformResult             `json:"publishingResults"`
}

// PublisherService publishes content synchronously through the agent
// registry and records the outcome on the content record.
type PublisherService struct {
	logger   *zap.Logger
	contents ContentStore
	registry *publisher.Registry
	retry    publisher.RetryOptions
}

func NewPublisherService(contents ContentStore, registry *publisher.Registry, logger *zap.Logger, maxAttempts int) *PublisherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherService{
		logger:   logger,
		contents: contents,
		registry: registry,
		retry: publisher.RetryOptions{
			MaxAttempts: maxAttempts,
			Logger:      logger,
		},
	}
}

// Registry exposes the agent registry the service publishes through.
func (s *PublisherService) Registry() *publisher.Registry {
	return s.registry
}

// HandlePublish loads the content, publishes it with retry and merges the
// per-platform results into the content's publishing history.
func (s *PublisherService) HandlePublish(ctx context.Context, req PublishRequest) (*PublishResponse, error) {
	if strings.TrimSpace(req.ContentID) == "" {
		return nil, fmt.Errorf("%w: contentId is required", ErrInvalidRequest)
	}

	content, err := s.contents.GetContent(ctx, req.ContentID)
	if err != nil {
		return nil, err
	}

	platforms := normalizePlatforms(req.Platforms)
	if req.RetryFailedOnly {
		failed := content.FailedPlatforms()
		retryable := platforms[:0]
		for _, p := range platforms {
			if failed[p] {
				retryable = append(retryable, p)
			}
		}
		platforms = retryable
	}

	response := &PublishResponse{
		ContentID: content.ID,
		Results:   map[string]*publisher.PublishResult{},
	}
	if len(platforms) == 0 {
		s.logger.Info("Nothing to publish", zap.String("content_id", content.ID))
		response.PublishingResults = content.PublishingResults.Data
		return response, nil
	}

	imageURL := req.ImageURL
	if imageURL == "" {
		imageURL = content.ImageURL
	}

	s.logger.Info("Publishing content",
		zap.String("content_id", content.ID),
		zap.Strings("platforms", platforms),
		zap.Bool("retry_failed_only", req.RetryFailedOnly))

	results := publisher.PublishWithRetry(ctx, s.registry, platforms, content.Markdown(), req.Configs, imageURL, s.retry)

	content.MergeResults(results, platforms)
	fields := map[string]any{
		"publishing_results": content.PublishingResults,
		"status":             contentStatus(content.PublishingResults.Data),
	}
	if err := s.contents.UpdateContent(ctx, content.ID, fields); err != nil {
		return nil, fmt.Errorf("record publish results for %s: %w", content.ID, err)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	s.logger.Info("Content publishing finished",
		zap.String("content_id", content.ID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded))

	response.Results = results
	response.PublishingResults = content.PublishingResults.Data
	return response, nil
}

func contentStatus(results []models.PlatformResult) string {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	switch {
	case failed == 0:
		return models.ContentPublished
	case failed == len(results):
		return models.ContentPublishFailed
	default:
		return models.ContentPartiallyPublished
	}
}
