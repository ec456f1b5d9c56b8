// Package image generates cover images for blog posts.
package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/service/publisher"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "dall-e-3"
	DefaultSize    = "1024x1024"
)

// ErrEmptyPrompt is returned when no prompt is given.
var ErrEmptyPrompt = errors.New("image prompt is required")

type Request struct {
	Prompt string `json:"prompt"`
	// Style is passed through to the model, e.g. "vivid" or "natural".
	Style string `json:"style,omitempty"`
	Size  string `json:"size,omitempty"`
}

// Generator turns a prompt into a hosted image URL.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
}

// OpenAIGenerator calls the OpenAI images API.
type OpenAIGenerator struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generationResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func NewOpenAIGenerator(cfg Config, logger *zap.Logger) *OpenAIGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Size == "" {
		cfg.Size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	size := req.Size
	if size == "" {
		size = g.cfg.Size
	}

	var resp generationResponse
	_, err := publisher.DoJSON(ctx, g.client, publisher.JSONRequest{
		Method: http.MethodPost,
		URL:    g.cfg.BaseURL + "/v1/images/generations",
		Token:  g.cfg.APIKey,
		Body: generationRequest{
			Model:          g.cfg.Model,
			Prompt:         prompt,
			N:              1,
			Size:           size,
			Style:          req.Style,
			ResponseFormat: "url",
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("failed to generate image: empty response")
	}

	g.logger.Info("Image generated",
		zap.String("model", g.cfg.Model),
		zap.String("size", size))
	return resp.Data[0].URL, nil
}
