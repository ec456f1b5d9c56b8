package medium

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

const (
	PlatformName   = "medium"
	DefaultBaseURL = "https://api.medium.com"

	credentialToken = "integration_token"
)

// MediumAgent publishes markdown posts through the Medium API
type MediumAgent struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type Option func(*MediumAgent)

func WithBaseURL(baseURL string) Option {
	return func(a *MediumAgent) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *MediumAgent) {
		if client != nil {
			a.client = client
		}
	}
}

type userResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type createPostRequest struct {
	Title         string   `json:"title"`
	ContentFormat string   `json:"contentFormat"`
	Content       string   `json:"content"`
	Tags          []string `json:"tags,omitempty"`
	CanonicalURL  string   `json:"canonicalUrl,omitempty"`
	PublishStatus string   `json:"publishStatus"`
}

type createPostResponse struct {
	Data struct {
		ID            string `json:"id"`
		URL           string `json:"url"`
		PublishStatus string `json:"publishStatus"`
		AuthorID      string `json:"authorId"`
	} `json:"data"`
}

func NewMediumAgent(logger *zap.Logger, opts ...Option) *MediumAgent {
	a := &MediumAgent{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MediumAgent) PlatformName() string {
	return PlatformName
}

func (a *MediumAgent) SupportedFeatures() []string {
	return []string{"markdown", "tags", "canonical_url", "draft"}
}

func (a *MediumAgent) ValidateCredentials(ctx context.Context, credentials map[string]string) bool {
	if err := publisher.RequireCredentials(credentials, credentialToken); err != nil {
		a.logger.Warn("Medium credential validation failed", zap.Error(err))
		return false
	}

	if _, err := a.currentUserID(ctx, credentials[credentialToken]); err != nil {
		a.logger.Warn("Medium credential validation failed", zap.Error(err))
		return false
	}
	return true
}

func (a *MediumAgent) FormatContent(content string, imageURL string) (*publisher.FormattedContent, error) {
	return Transform(content, imageURL)
}

func (a *MediumAgent) Publish(ctx context.Context, content *publisher.FormattedContent, config publisher.PublishingConfig) *publisher.PublishResult {
	if err := publisher.RequireCredentials(config.Credentials, credentialToken); err != nil {
		return publisher.Failure(err.Error())
	}
	token := config.Credentials[credentialToken]

	userID := config.Options["user_id"]
	if userID == "" {
		id, err := a.currentUserID(ctx, token)
		if err != nil {
			return publisher.Failure(fmt.Sprintf("failed to resolve Medium user: %s", err.Error()))
		}
		userID = id
	}

	request := createPostRequest{
		Title:         content.Title,
		ContentFormat: "markdown",
		Content:       content.Body,
		Tags:          content.Tags,
		CanonicalURL:  config.Options["canonical_url"],
		PublishStatus: config.Option("publish_status", "public"),
	}

	var response createPostResponse
	_, err := publisher.DoJSON(ctx, a.client, publisher.JSONRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/v1/users/%s/posts", a.baseURL, url.PathEscape(userID)),
		Token:  token,
		Body:   request,
	}, &response)
	if err != nil {
		a.logger.Error("Failed to create Medium post", zap.String("user_id", userID), zap.Error(err))
		return publisher.Failure(fmt.Sprintf("failed to create Medium post: %s", err.Error()))
	}
	if response.Data.ID == "" {
		return publisher.Failure("Medium response did not include a post id")
	}

	publishedAt := time.Now()
	a.logger.Info("Medium post created",
		zap.String("post_id", response.Data.ID),
		zap.String("publish_status", response.Data.PublishStatus))

	return &publisher.PublishResult{
		Success:    true,
		URL:        response.Data.URL,
		PlatformID: response.Data.ID,
		Metadata: map[string]string{
			"publish_status": response.Data.PublishStatus,
			"author_id":      response.Data.AuthorID,
		},
		PublishedAt: &publishedAt,
	}
}

// GetPublishingStatus always reports unknown: the Medium API has no post lookup.
func (a *MediumAgent) GetPublishingStatus(ctx context.Context, platformID string, config publisher.PublishingConfig) publisher.PublishingStatus {
	return publisher.StatusUnknown
}

func (a *MediumAgent) currentUserID(ctx context.Context, token string) (string, error) {
	var response userResponse
	if _, err := publisher.DoJSON(ctx, a.client, publisher.JSONRequest{
		Method: http.MethodGet,
		URL:    a.baseURL + "/v1/me",
		Token:  token,
	}, &response); err != nil {
		return "", err
	}
	if response.Data.ID == "" {
		return "", fmt.Errorf("response did not include a user id")
	}
	return response.Data.ID, nil
}

var _ publisher.Agent = (*MediumAgent)(nil)
