// Package config resolves the settings of a run from defaults, the global
// and project YAML files, PROVEN_* environment variables and flags.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// ProjectFile is the project-local config, read from the working directory
	ProjectFile = ".proven.yaml"
	// GlobalFile lives under GlobalDir
	GlobalFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. PROVEN_MAX_RETRIES
	EnvPrefix = "PROVEN_"
)

// APIKeys holds per-vendor keys. Empty keys fall back to the vendor's
// usual environment variable.
type APIKeys struct {
	Anthropic string `yaml:"anthropic,omitempty"`
	OpenAI    string `yaml:"openai,omitempty"`
	Google    string `yaml:"google,omitempty"`
}

// OllamaConfig configures a local Ollama server
type OllamaConfig struct {
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model   string `yaml:"model,omitempty"`
}

// ExecutionConfig configures how test suites are run
type ExecutionConfig struct {
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	PTY        bool          `yaml:"pty"`
	WorkingDir string        `yaml:"working_dir,omitempty"`
}

// ServerConfig configures the optional websocket event stream
type ServerConfig struct {
	Addr           string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
	RemoteApproval bool   `yaml:"remote_approval"`
}

// Config is the merged, read-only value a run is started with
type Config struct {
	Provider              string          `yaml:"provider" validate:"required"`
	Model                 string          `yaml:"model,omitempty"`
	TestFramework         string          `yaml:"test_framework" validate:"required,oneof=pytest jest maven"`
	TestDirectory         string          `yaml:"test_directory,omitempty"`
	SourceDirectory       string          `yaml:"source_directory,omitempty"`
	MaxRetries            int             `yaml:"max_retries" validate:"min=1,max=20"`
	MaxGenerationAttempts int             `yaml:"max_generation_attempts" validate:"min=1,max=20"`
	AutoApprove           bool            `yaml:"auto_approve"`
	RunTimeout            time.Duration   `yaml:"run_timeout,omitempty" validate:"gte=0"`
	Temperature           float64         `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens             int             `yaml:"max_tokens,omitempty" validate:"gte=0"`
	APIKeys               APIKeys         `yaml:"api_keys,omitempty"`
	Ollama                OllamaConfig    `yaml:"ollama,omitempty"`
	Execution             ExecutionConfig `yaml:"execution"`
	Server                ServerConfig    `yaml:"server,omitempty"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Provider:              "anthropic",
		TestFramework:         "pytest",
		MaxRetries:            3,
		MaxGenerationAttempts: 3,
		Temperature:           0.2,
		Execution: ExecutionConfig{
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// Clone returns an independent copy
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// APIKey returns the key for a canonical provider name, consulting the
// vendor environment variables when the config holds none.
func (c *Config) APIKey(provider string) string {
	var key string
	var envs []string
	switch provider {
	case "anthropic":
		key, envs = c.APIKeys.Anthropic, []string{"ANTHROPIC_API_KEY"}
	case "openai":
		key, envs = c.APIKeys.OpenAI, []string{"OPENAI_API_KEY"}
	case "gemini":
		key, envs = c.APIKeys.Google, []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	}
	if key != "" {
		return key
	}
	for _, env := range envs {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

// SetAPIKey stores a key for the current process only
func (c *Config) SetAPIKey(provider, key string) {
	switch provider {
	case "anthropic":
		c.APIKeys.Anthropic = key
	case "openai":
		c.APIKeys.OpenAI = key
	case "gemini":
		c.APIKeys.Google = key
	}
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	cp := c.Clone()
	cp.APIKeys = APIKeys{
		Anthropic: mask(cp.APIKeys.Anthropic),
		OpenAI:    mask(cp.APIKeys.OpenAI),
		Google:    mask(cp.APIKeys.Google),
	}
	return cp
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// GlobalDir is ~/.proven, or $PROVEN_CONFIG_DIR when set
func GlobalDir() (string, error) {
	if dir := os.Getenv("PROVEN_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".proven"), nil
}

// GlobalPath is the global config file location
func GlobalPath() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GlobalFile), nil
}
