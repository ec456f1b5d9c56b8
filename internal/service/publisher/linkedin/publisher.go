package linkedin

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
	PlatformName   = "linkedin"
	DefaultBaseURL = "https://api.linkedin.com"

	credentialToken = "access_token"
	postURLPrefix   = "https://www.linkedin.com/feed/update/"
)

var restliHeaders = map[string]string{"X-Restli-Protocol-Version": "2.0.0"}

// LinkedInAgent shares posts through the LinkedIn UGC API
type LinkedInAgent struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

type Option func(*LinkedInAgent)

func WithBaseURL(baseURL string) Option {
	return func(a *LinkedInAgent) {
		if baseURL != "" {
			a.baseURL = baseURL
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *LinkedInAgent) {
		if client != nil {
			a.client = client
		}
	}
}

type userInfoResponse struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string  `json:"status"`
	OriginalURL string  `json:"originalUrl"`
	Title       ugcText `json:"title"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcPostRequest struct {
	Author          string                     `json:"author"`
	LifecycleState  string                     `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility      map[string]string          `json:"visibility"`
}

type ugcPostResponse struct {
	ID             string `json:"id"`
	LifecycleState string `json:"lifecycleState"`
}

func NewLinkedInAgent(logger *zap.Logger, opts ...Option) *LinkedInAgent {
	a := &LinkedInAgent{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LinkedInAgent) PlatformName() string {
	return PlatformName
}

func (a *LinkedInAgent) SupportedFeatures() []string {
	return []string{"text", "hashtags", "image_link"}
}

func (a *LinkedInAgent) ValidateCredentials(ctx context.Context, credentials map[string]string) bool {
	if err := publisher.RequireCredentials(credentials, credentialToken); err != nil {
		a.logger.Warn("LinkedIn credential validation failed", zap.Error(err))
		return false
	}

	if _, err := a.personURN(ctx, credentials[credentialToken]); err != nil {
		a.logger.Warn("LinkedIn credential validation failed", zap.Error(err))
		return false
	}
	return true
}

func (a *LinkedInAgent) FormatContent(content string, imageURL string) (*publisher.FormattedContent, error) {
	return Transform(content, imageURL)
}

func (a *LinkedInAgent) Publish(ctx context.Context, content *publisher.FormattedContent, config publisher.PublishingConfig) *publisher.PublishResult {
	if err := publisher.RequireCredentials(config.Credentials, credentialToken); err != nil {
		return publisher.Failure(err.Error())
	}
	token := config.Credentials[credentialToken]

	author := config.Options["person_urn"]
	if author == "" {
		urn, err := a.personURN(ctx, token)
		if err != nil {
			return publisher.Failure(fmt.Sprintf("failed to resolve LinkedIn member: %s", err.Error()))
		}
		author = urn
	}

	share := ugcShareContent{
		ShareCommentary:    ugcText{Text: content.Body},
		ShareMediaCategory: "NONE",
	}
	if content.ImageURL != "" {
		share.ShareMediaCategory = "ARTICLE"
		share.Media = []ugcMedia{{
			Status:      "READY",
			OriginalURL: content.ImageURL,
			Title:       ugcText{Text: content.Title},
		}}
	}

	request := ugcPostRequest{
		Author:          author,
		LifecycleState:  "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{"com.linkedin.ugc.ShareContent": share},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": config.Option("visibility", "PUBLIC"),
		},
	}

	var response ugcPostResponse
	headers, err := publisher.DoJSON(ctx, a.client, publisher.JSONRequest{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/v2/ugcPosts",
		Token:   token,
		Headers: restliHeaders,
		Body:    request,
	}, &response)
	if err != nil {
		a.logger.Error("Failed to create LinkedIn post", zap.String("author", author), zap.Error(err))
		return publisher.Failure(fmt.Sprintf("failed to create LinkedIn post: %s", err.Error()))
	}

	postID := headers.Get("X-RestLi-Id")
	if postID == "" {
		postID = response.ID
	}
	if postID == "" {
		return publisher.Failure("LinkedIn response did not include a post id")
	}

	publishedAt := time.Now()
	a.logger.Info("LinkedIn post created", zap.String("post_id", postID))

	return &publisher.PublishResult{
		Success:    true,
		URL:        postURLPrefix + postID,
		PlatformID: postID,
		Metadata: map[string]string{
			"author": author,
		},
		PublishedAt: &publishedAt,
	}
}

func (a *LinkedInAgent) GetPublishingStatus(ctx context.Context, platformID string, config publisher.PublishingConfig) publisher.PublishingStatus {
	token := config.Credentials[credentialToken]
	if token == "" || platformID == "" {
		return publisher.StatusUnknown
	}

	var response ugcPostResponse
	if _, err := publisher.DoJSON(ctx, a.client, publisher.JSONRequest{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/v2/ugcPosts/" + url.PathEscape(platformID),
		Token:   token,
		Headers: restliHeaders,
	}, &response); err != nil {
		a.logger.Warn("LinkedIn status lookup failed", zap.String("post_id", platformID), zap.Error(err))
		return publisher.StatusUnknown
	}

	switch response.LifecycleState {
	case "PUBLISHED":
		return publisher.StatusPublished
	case "DRAFT":
		return publisher.StatusDraft
	case "PROCESSING_FAILED":
		return publisher.StatusFailed
	default:
		return publisher.StatusUnknown
	}
}

func (a *LinkedInAgent) personURN(ctx context.Context, token string) (string, error) {
	var response userInfoResponse
	if _, err := publisher.DoJSON(ctx, a.client, publisher.JSONRequest{
		Method: http.MethodGet,
		URL:    a.baseURL + "/v2/userinfo",
		Token:  token,
	}, &response); err != nil {
		return "", err
	}
	if response.Sub == "" {
		return "", fmt.Errorf("response did not include a member id")
	}
	return "urn:li:person:" + response.Sub, nil
}

var _ publisher.Agent = (*LinkedInAgent)(nil)
