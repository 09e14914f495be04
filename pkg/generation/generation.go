// Package generation defines the contract between the TDD engine and the
// code-generation services it drives.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/alantheprice/proven/pkg/types"
)

// Request is one generation call. System and User are the composed prompt;
// Prior and Feedback are the context the prompt was composed from.
type Request struct {
	System   string
	User     string
	Language string
	Kind     types.ArtifactKind
	Prior    []types.Artifact
	Feedback []types.Feedback
}

// Backend produces text for a request. Implementations must honour ctx
// cancellation and report failures as *Error where the cause is known.
// Calls are not idempotent: the same request may yield different text.
type Backend interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ProviderConfig is the resolved configuration a Factory builds a Backend from.
type ProviderConfig struct {
	Name        string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Factory creates backends for one provider identity.
type Factory interface {
	// Name returns the canonical provider identity
	Name() string

	// DefaultModel is used when the configuration names no model
	DefaultModel() string

	// RequiresAPIKey reports whether Create rejects an empty APIKey
	RequiresAPIKey() bool

	// Create validates cfg and returns a ready backend
	Create(cfg ProviderConfig) (Backend, error)
}

// ValidateCommon checks the fields every factory needs.
func ValidateCommon(f Factory, cfg ProviderConfig) error {
	if cfg.Model == "" {
		return fmt.Errorf("model is required for %s provider", f.Name())
	}
	if f.RequiresAPIKey() && cfg.APIKey == "" {
		return fmt.Errorf("API key is required for %s provider", f.Name())
	}
	if cfg.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	return nil
}
