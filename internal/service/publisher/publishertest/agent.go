// Package publishertest provides a scriptable publishing agent for tests.
package publishertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

// PublishFunc produces the result of the call-th publish (1-based).
type PublishFunc func(call int, content *publisher.FormattedContent, config publisher.PublishingConfig) *publisher.PublishResult

// Agent is an in-memory publisher.Agent. Credentials are valid when they
// carry token=valid.
type Agent struct {
	Name      string
	Features  []string
	OnPublish PublishFunc

	mu        sync.Mutex
	published []*publisher.FormattedContent
}

func NewAgent(name string, fn PublishFunc) *Agent {
	return &Agent{Name: name, Features: []string{"text"}, OnPublish: fn}
}

// Succeed publishes every call successfully.
func Succeed(call int, _ *publisher.FormattedContent, _ publisher.PublishingConfig) *publisher.PublishResult {
	id := fmt.Sprintf("post-%d", call)
	return &publisher.PublishResult{Success: true, PlatformID: id, URL: "https://example.com/" + id}
}

// Fail fails every call with message.
func Fail(message string) PublishFunc {
	return func(int, *publisher.FormattedContent, publisher.PublishingConfig) *publisher.PublishResult {
		return publisher.Failure(message)
	}
}

// FailTimes fails the first n calls with message and succeeds afterwards.
func FailTimes(n int, message string) PublishFunc {
	return func(call int, content *publisher.FormattedContent, config publisher.PublishingConfig) *publisher.PublishResult {
		if call <= n {
			return publisher.Failure(message)
		}
		return Succeed(call, content, config)
	}
}

// Calls returns how many times Publish ran.
func (a *Agent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.published)
}

// Published returns the payloads handed to Publish, in order.
func (a *Agent) Published() []*publisher.FormattedContent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*publisher.FormattedContent(nil), a.published...)
}

func (a *Agent) PlatformName() string        { return a.Name }
func (a *Agent) SupportedFeatures() []string { return a.Features }

func (a *Agent) ValidateCredentials(_ context.Context, credentials map[string]string) bool {
	return credentials["token"] == "valid"
}

func (a *Agent) FormatContent(content string, imageURL string) (*publisher.FormattedContent, error) {
	title, body := publisher.SplitTitleBody(publisher.SanitizeContent(content), "Untitled")
	return &publisher.FormattedContent{
		Title:    title,
		Body:     body,
		Tags:     publisher.ExtractTags(content),
		ImageURL: imageURL,
	}, nil
}

func (a *Agent) Publish(_ context.Context, content *publisher.FormattedContent, config publisher.PublishingConfig) *publisher.PublishResult {
	a.mu.Lock()
	a.published = append(a.published, content)
	call := len(a.published)
	a.mu.Unlock()

	if a.OnPublish == nil {
		return Succeed(call, content, config)
	}
	return a.OnPublish(call, content, config)
}

func (a *Agent) GetPublishingStatus(_ context.Context, platformID string, _ publisher.PublishingConfig) publisher.PublishingStatus {
	if platformID != "" {
		return publisher.StatusPublished
	}
	return publisher.StatusUnknown
}
