// Package openai drives OpenAI-compatible chat completion endpoints.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alantheprice/proven/pkg/generation"
)

const providerName = "openai"

// Backend implements generation.Backend
type Backend struct {
	cfg    generation.ProviderConfig
	client *openai.Client
}

// Factory registers the openai provider
type Factory struct{}

func (Factory) Name() string         { return providerName }
func (Factory) DefaultModel() string { return "gpt-4o" }
func (Factory) RequiresAPIKey() bool { return true }

// Create validates cfg and returns a backend
func (f Factory) Create(cfg generation.ProviderConfig) (generation.Backend, error) {
	if err := generation.ValidateCommon(f, cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Backend{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}, nil
}

func (b *Backend) Name() string  { return providerName }
func (b *Backend) Model() string { return b.cfg.Model }

// Generate sends one chat completion request
func (b *Backend) Generate(ctx context.Context, req generation.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.cfg.Model,
		Messages:    messages,
		Temperature: float32(b.cfg.Temperature),
		MaxTokens:   b.cfg.MaxTokens,
	})
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", generation.Invalid(providerName, "response had no content")
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return generation.ClassifyStatus(providerName, apiErr.HTTPStatusCode, nil, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		gerr := generation.ClassifyStatus(providerName, reqErr.HTTPStatusCode, nil, "")
		gerr.Err = reqErr.Err
		return gerr
	}
	return generation.TransportError(providerName, err)
}
