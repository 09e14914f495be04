// Package anthropic talks to the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alantheprice/proven/pkg/generation"
)

const (
	providerName     = "anthropic"
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Backend implements generation.Backend
type Backend struct {
	cfg    generation.ProviderConfig
	client *http.Client
}

// Factory registers the anthropic provider
type Factory struct{}

func (Factory) Name() string         { return providerName }
func (Factory) DefaultModel() string { return "claude-sonnet-4-20250514" }
func (Factory) RequiresAPIKey() bool { return true }

// Create validates cfg and returns a backend
func (f Factory) Create(cfg generation.ProviderConfig) (generation.Backend, error) {
	if err := generation.ValidateCommon(f, cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Backend{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (b *Backend) Name() string  { return providerName }
func (b *Backend) Model() string { return b.cfg.Model }

// Generate sends one non-streaming Messages request
func (b *Backend) Generate(ctx context.Context, req generation.Request) (string, error) {
	body := messagesRequest{
		Model:     b.cfg.Model,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.User}},
		MaxTokens: b.cfg.MaxTokens,
	}
	if b.cfg.Temperature > 0 {
		t := b.cfg.Temperature
		body.Temperature = &t
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(b.cfg.BaseURL, "/")+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", generation.TransportError(providerName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", generation.TransportError(providerName, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", generation.ClassifyStatus(providerName, resp.StatusCode, resp.Header, string(respBody))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", generation.Invalid(providerName, "failed to decode response: %v", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", generation.Invalid(providerName, "response had no text content")
	}
	return text.String(), nil
}
