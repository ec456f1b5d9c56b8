package publisher

import (
	"context"
	"time"
)

// PublishingConfig carries the per-call credentials and format options for one platform.
type PublishingConfig struct {
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
	Options     map[string]string `json:"options,omitempty"`
}

// Redacted returns a copy safe to expose in responses.
func (c PublishingConfig) Redacted() PublishingConfig {
	redacted := PublishingConfig{Platform: c.Platform, Options: c.Options}
	if len(c.Credentials) > 0 {
		redacted.Credentials = make(map[string]string, len(c.Credentials))
		for key := range c.Credentials {
			redacted.Credentials[key] = "***"
		}
	}
	return redacted
}

// Option returns the named format option or fallback when unset.
func (c PublishingConfig) Option(key, fallback string) string {
	if v := c.Options[key]; v != "" {
		return v
	}
	return fallback
}

// FormattedContent is a platform-ready payload. It is built fresh for every
// publish attempt and not mutated afterwards.
type FormattedContent struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Tags     []string          `json:"tags,omitempty"`
	ImageURL string            `json:"imageUrl,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PublishResult is the outcome of one publish attempt
type PublishResult struct {
	Success     bool              `json:"success"`
	URL         string            `json:"url,omitempty"`
	PlatformID  string            `json:"platformId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Error       string            `json:"error,omitempty"`
	PublishedAt *time.Time        `json:"publishedAt,omitempty"`
}

// Failure builds a failed result carrying message.
func Failure(message string) *PublishResult {
	return &PublishResult{Success: false, Error: message}
}

// PublishingStatus is the best-effort state of a post on its platform.
type PublishingStatus string

const (
	StatusPublished PublishingStatus = "published"
	StatusDraft     PublishingStatus = "draft"
	StatusFailed    PublishingStatus = "failed"
	StatusUnknown   PublishingStatus = "unknown"
)

// Agent is implemented by every platform integration.
type Agent interface {
	// PlatformName is the unique, case-insensitive registry key.
	PlatformName() string
	// SupportedFeatures lists capability tags for display only.
	SupportedFeatures() []string

	// ValidateCredentials performs a lightweight authenticated call. It never
	// errors; failures are logged and reported as false.
	ValidateCredentials(ctx context.Context, credentials map[string]string) bool

	// FormatContent is a pure transformation of raw content into a platform payload.
	FormatContent(content string, imageURL string) (*FormattedContent, error)

	// Publish creates the public post. Every failure is reported through
	// PublishResult.Error, never as a panic or nil result.
	Publish(ctx context.Context, content *FormattedContent, config PublishingConfig) *PublishResult

	// GetPublishingStatus returns StatusUnknown when the platform cannot answer.
	GetPublishingStatus(ctx context.Context, platformID string, config PublishingConfig) PublishingStatus
}
