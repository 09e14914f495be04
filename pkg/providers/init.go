// Package providers wires the built-in generation backends into a registry.
package providers

import (
	"github.com/alantheprice/proven/pkg/generation"
	"github.com/alantheprice/proven/pkg/generation/anthropic"
	"github.com/alantheprice/proven/pkg/generation/gemini"
	"github.com/alantheprice/proven/pkg/generation/ollama"
	"github.com/alantheprice/proven/pkg/generation/openai"
)

// RegisterDefaultProviders registers the built-in providers and their aliases
func RegisterDefaultProviders(r *generation.Registry) error {
	defaults := []struct {
		factory generation.Factory
		aliases []string
	}{
		{anthropic.Factory{}, []string{"claude"}},
		{openai.Factory{}, []string{"gpt"}},
		{gemini.Factory{}, []string{"google"}},
		{ollama.Factory{}, nil},
	}
	for _, d := range defaults {
		if err := r.Register(d.factory, d.aliases...); err != nil {
			return err
		}
	}
	return nil
}

// NewDefaultRegistry returns a registry holding the built-in providers
func NewDefaultRegistry() *generation.Registry {
	r := generation.NewRegistry()
	if err := RegisterDefaultProviders(r); err != nil {
		panic("failed to register default providers: " + err.Error())
	}
	return r
}

// APIKeyEnv names the environment variable holding a provider's key
func APIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GOOGLE_API_KEY"
	}
	return ""
}
