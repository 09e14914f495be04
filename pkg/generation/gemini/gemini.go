// Package gemini calls the Google Gemini generateContent endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alantheprice/proven/pkg/generation"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// Backend implements generation.Backend
type Backend struct {
	cfg    generation.ProviderConfig
	client *http.Client
}

// Factory registers the gemini provider
type Factory struct{}

func (Factory) Name() string         { return providerName }
func (Factory) DefaultModel() string { return "gemini-2.0-flash" }
func (Factory) RequiresAPIKey() bool { return true }

// Create validates cfg and returns a backend
func (f Factory) Create(cfg generation.ProviderConfig) (generation.Backend, error) {
	if err := generation.ValidateCommon(f, cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Backend{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

func (b *Backend) Name() string  { return providerName }
func (b *Backend) Model() string { return b.cfg.Model }

// Generate sends one generateContent request
func (b *Backend) Generate(ctx context.Context, req generation.Request) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.User}}}},
		GenerationConfig: generationConfig{
			Temperature:     b.cfg.Temperature,
			MaxOutputTokens: b.cfg.MaxTokens,
		},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(b.cfg.BaseURL, "/"), url.PathEscape(b.cfg.Model), url.QueryEscape(b.cfg.APIKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		// url.Error embeds the request URL, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
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

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", generation.Invalid(providerName, "failed to decode response: %v", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", generation.Invalid(providerName, "response had no candidates")
	}

	var text strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", generation.Invalid(providerName, "candidate had no text (finish reason %q)", parsed.Candidates[0].FinishReason)
	}
	return text.String(), nil
}
