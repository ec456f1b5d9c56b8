package medium

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

type fakeMedium struct {
	meCalls   atomic.Int32
	postCalls atomic.Int32
	lastPost  createPostRequest
	postFn    func(w http.ResponseWriter)
}

func (f *fakeMedium) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		f.meCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":[{"message":"Token was invalid.","code":6003}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"user-42","username":"writer"}}`))
	})
	mux.HandleFunc("/v1/users/user-42/posts", func(w http.ResponseWriter, r *http.Request) {
		f.postCalls.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&f.lastPost); err != nil {
			t.Errorf("failed to decode post body: %v", err)
		}
		if f.postFn != nil {
			f.postFn(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"p1","url":"https://medium.com/@writer/p1","publishStatus":"public","authorId":"user-42"}}`))
	})
	return mux
}

func newTestAgent(t *testing.T, fake *fakeMedium) *MediumAgent {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return NewMediumAgent(zap.NewNop(), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func testConfig(token string) publisher.PublishingConfig {
	return publisher.PublishingConfig{Platform: PlatformName, Credentials: map[string]string{"integration_token": token}}
}

func TestTransform(t *testing.T) {
	t.Run("embeds image and caps tags", func(t *testing.T) {
		content := "# Shipping Go Services\n<script>steal()</script>Body text #go #cloud #api #ops #sre #k8s"
		formatted, err := Transform(content, "https://img.example/cover.png")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if formatted.Title != "Shipping Go Services" {
			t.Errorf("unexpected title %q", formatted.Title)
		}
		if !strings.HasPrefix(formatted.Body, "![Shipping Go Services](https://img.example/cover.png)\n\n") {
			t.Errorf("expected leading image, got %q", formatted.Body)
		}
		if strings.Contains(formatted.Body, "script") {
			t.Errorf("expected script stripped, got %q", formatted.Body)
		}
		if len(formatted.Tags) != maxTags || formatted.Tags[0] != "go" {
			t.Errorf("expected first %d tags, got %v", maxTags, formatted.Tags)
		}
	})

	t.Run("truncates long titles", func(t *testing.T) {
		formatted, err := Transform("# "+strings.Repeat("x", 150)+"\nbody", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(formatted.Title) != maxTitleLength {
			t.Errorf("expected title of %d chars, got %d", maxTitleLength, len(formatted.Title))
		}
	})

	t.Run("falls back to default title", func(t *testing.T) {
		formatted, err := Transform("Short.\nAnother sentence.", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if formatted.Title != defaultTitle {
			t.Errorf("expected default title, got %q", formatted.Title)
		}
	})

	t.Run("rejects empty content", func(t *testing.T) {
		if _, err := Transform("<script>x</script>  ", ""); err == nil {
			t.Error("expected error for empty content, got nil")
		}
	})
}

func TestMediumAgent_ValidateCredentials(t *testing.T) {
	fake := &fakeMedium{}
	agent := newTestAgent(t, fake)
	ctx := context.Background()

	if !agent.ValidateCredentials(ctx, map[string]string{"integration_token": "good-token"}) {
		t.Error("expected valid token to pass")
	}
	if agent.ValidateCredentials(ctx, map[string]string{"integration_token": "bad-token"}) {
		t.Error("expected invalid token to fail")
	}
	if agent.ValidateCredentials(ctx, map[string]string{}) {
		t.Error("expected missing token to fail")
	}
	if fake.meCalls.Load() != 2 {
		t.Errorf("expected missing token to skip the API, got %d calls", fake.meCalls.Load())
	}
}

func TestMediumAgent_Publish(t *testing.T) {
	ctx := context.Background()
	content := &publisher.FormattedContent{Title: "Title", Body: "Body", Tags: []string{"go"}}

	t.Run("resolves user then creates post", func(t *testing.T) {
		fake := &fakeMedium{}
		agent := newTestAgent(t, fake)

		result := agent.Publish(ctx, content, testConfig("good-token"))

		if !result.Success {
			t.Fatalf("expected success, got error %q", result.Error)
		}
		if result.PlatformID != "p1" || result.URL != "https://medium.com/@writer/p1" {
			t.Errorf("unexpected result %+v", result)
		}
		if result.PublishedAt == nil {
			t.Error("expected PublishedAt to be set")
		}
		if fake.lastPost.ContentFormat != "markdown" || fake.lastPost.PublishStatus != "public" {
			t.Errorf("unexpected request %+v", fake.lastPost)
		}
	})

	t.Run("request options cannot redirect the api host", func(t *testing.T) {
		var stray atomic.Int32
		other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stray.Add(1)
		}))
		t.Cleanup(other.Close)

		fake := &fakeMedium{}
		agent := newTestAgent(t, fake)
		cfg := testConfig("good-token")
		cfg.Options = map[string]string{"base_url": other.URL}

		result := agent.Publish(ctx, content, cfg)

		if !result.Success {
			t.Fatalf("expected success against configured host, got %q", result.Error)
		}
		if stray.Load() != 0 {
			t.Errorf("token sent to caller-supplied host %d times", stray.Load())
		}
		if fake.postCalls.Load() != 1 {
			t.Errorf("expected post on configured host, got %d", fake.postCalls.Load())
		}
	})

	t.Run("skips user lookup when cached in options", func(t *testing.T) {
		fake := &fakeMedium{}
		agent := newTestAgent(t, fake)
		cfg := testConfig("good-token")
		cfg.Options = map[string]string{"user_id": "user-42", "publish_status": "draft"}

		result := agent.Publish(ctx, content, cfg)

		if !result.Success {
			t.Fatalf("expected success, got error %q", result.Error)
		}
		if fake.meCalls.Load() != 0 {
			t.Errorf("expected no user lookup, got %d", fake.meCalls.Load())
		}
		if fake.lastPost.PublishStatus != "draft" {
			t.Errorf("expected draft status, got %q", fake.lastPost.PublishStatus)
		}
	})

	t.Run("missing credential fails fast", func(t *testing.T) {
		fake := &fakeMedium{}
		agent := newTestAgent(t, fake)

		result := agent.Publish(ctx, content, publisher.PublishingConfig{})

		if result.Success || !strings.Contains(result.Error, "integration_token") {
			t.Errorf("expected missing credential error, got %+v", result)
		}
	})

	t.Run("non-2xx message is surfaced", func(t *testing.T) {
		fake := &fakeMedium{postFn: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errors":[{"message":"Title is too long"}]}`))
		}}
		agent := newTestAgent(t, fake)

		result := agent.Publish(ctx, content, testConfig("good-token"))

		if result.Success || !strings.Contains(result.Error, "Title is too long") {
			t.Errorf("expected API message in error, got %+v", result)
		}
	})

	t.Run("missing post id is a failure", func(t *testing.T) {
		fake := &fakeMedium{postFn: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{}}`))
		}}
		agent := newTestAgent(t, fake)

		result := agent.Publish(ctx, content, testConfig("good-token"))

		if result.Success || !strings.Contains(result.Error, "post id") {
			t.Errorf("expected missing id failure, got %+v", result)
		}
	})

	t.Run("unauthorized user lookup", func(t *testing.T) {
		fake := &fakeMedium{}
		agent := newTestAgent(t, fake)

		result := agent.Publish(ctx, content, testConfig("bad-token"))

		if result.Success || !strings.Contains(result.Error, "Token was invalid") {
			t.Errorf("expected auth failure, got %+v", result)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		agent := NewMediumAgent(zap.NewNop(), WithBaseURL("http://127.0.0.1:1"))

		result := agent.Publish(ctx, content, testConfig("good-token"))

		if result.Success || result.Error == "" {
			t.Errorf("expected transport failure, got %+v", result)
		}
	})
}

func TestMediumAgent_Metadata(t *testing.T) {
	agent := NewMediumAgent(zap.NewNop())
	if agent.PlatformName() != "medium" {
		t.Errorf("unexpected platform name %q", agent.PlatformName())
	}
	if status := agent.GetPublishingStatus(context.Background(), "p1", testConfig("x")); status != publisher.StatusUnknown {
		t.Errorf("expected unknown status, got %q", status)
	}
}
