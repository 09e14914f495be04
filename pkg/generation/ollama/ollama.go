// Package ollama generates code with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/alantheprice/proven/pkg/generation"
)

const providerName = "ollama"

// Backend implements generation.Backend
type Backend struct {
	cfg    generation.ProviderConfig
	client *ollama.Client
}

// Factory registers the ollama provider
type Factory struct{}

func (Factory) Name() string         { return providerName }
func (Factory) DefaultModel() string { return "codellama" }
func (Factory) RequiresAPIKey() bool { return false }

// Create validates cfg and returns a backend. Without a BaseURL the client
// honours OLLAMA_HOST.
func (f Factory) Create(cfg generation.ProviderConfig) (generation.Backend, error) {
	if err := generation.ValidateCommon(f, cfg); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		// Local models can be slow to load
		cfg.Timeout = 10 * time.Minute
	}

	var client *ollama.Client
	if cfg.BaseURL == "" {
		c, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base URL %q: %w", cfg.BaseURL, err)
		}
		client = ollama.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	}
	return &Backend{cfg: cfg, client: client}, nil
}

func (b *Backend) Name() string  { return providerName }
func (b *Backend) Model() string { return b.cfg.Model }

// Generate runs one non-streaming chat
func (b *Backend) Generate(ctx context.Context, req generation.Request) (string, error) {
	messages := make([]ollama.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, ollama.Message{Role: "user", Content: req.User})

	options := map[string]any{}
	if b.cfg.Temperature > 0 {
		options["temperature"] = b.cfg.Temperature
	}
	if b.cfg.MaxTokens > 0 {
		options["num_predict"] = b.cfg.MaxTokens
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    b.cfg.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	var out strings.Builder
	err := b.client.Chat(ctx, chatReq, func(res ollama.ChatResponse) error {
		out.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr ollama.StatusError
		if errors.As(err, &statusErr) {
			return "", generation.ClassifyStatus(providerName, statusErr.StatusCode, nil, statusErr.ErrorMessage)
		}
		return "", generation.TransportError(providerName, err)
	}

	if strings.TrimSpace(out.String()) == "" {
		return "", generation.Invalid(providerName, "response had no content")
	}
	return out.String(), nil
}
