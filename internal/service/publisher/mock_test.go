package publisher

import (
	"context"
	"sync/atomic"
)

// mockAgent is a test implementation of Agent
type mockAgent struct {
	name      string
	features  []string
	publishFn func(call int, content *FormattedContent) *PublishResult
	formatErr error
	calls     atomic.Int32
}

func newMockAgent(name string, publishFn func(call int, content *FormattedContent) *PublishResult) *mockAgent {
	return &mockAgent{name: name, features: []string{"text"}, publishFn: publishFn}
}

func succeed(call int, _ *FormattedContent) *PublishResult {
	return &PublishResult{Success: true, PlatformID: "post-1", URL: "https://example.com/post-1"}
}

func fail(message string) func(int, *FormattedContent) *PublishResult {
	return func(int, *FormattedContent) *PublishResult {
		return Failure(message)
	}
}

func (m *mockAgent) PlatformName() string        { return m.name }
func (m *mockAgent) SupportedFeatures() []string { return m.features }

func (m *mockAgent) ValidateCredentials(_ context.Context, credentials map[string]string) bool {
	return credentials["token"] == "valid"
}

func (m *mockAgent) FormatContent(content string, imageURL string) (*FormattedContent, error) {
	if m.formatErr != nil {
		return nil, m.formatErr
	}
	title, body := SplitTitleBody(SanitizeContent(content), "Untitled")
	return &FormattedContent{Title: title, Body: body, ImageURL: imageURL, Tags: ExtractTags(content)}, nil
}

func (m *mockAgent) Publish(_ context.Context, content *FormattedContent, _ PublishingConfig) *PublishResult {
	call := int(m.calls.Add(1))
	return m.publishFn(call, content)
}

func (m *mockAgent) GetPublishingStatus(_ context.Context, platformID string, _ PublishingConfig) PublishingStatus {
	if platformID == "post-1" {
		return StatusPublished
	}
	return StatusUnknown
}
