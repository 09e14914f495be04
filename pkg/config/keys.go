package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type setter func(c *Config, value string) error

func setString(field func(c *Config) *string) setter {
	return func(c *Config, value string) error {
		*field(c) = strings.TrimSpace(value)
		return nil
	}
}

func setInt(field func(c *Config) *int) setter {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", value)
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(c *Config) *bool) setter {
	return func(c *Config, value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", value)
		}
		*field(c) = b
		return nil
	}
}

func setFloat(field func(c *Config) *float64) setter {
	return func(c *Config, value string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", value)
		}
		*field(c) = f
		return nil
	}
}

// setDuration accepts Go durations ("90s", "5m") or bare seconds
func setDuration(field func(c *Config) *time.Duration) setter {
	return func(c *Config, value string) error {
		value = strings.TrimSpace(value)
		if secs, err := strconv.Atoi(value); err == nil {
			*field(c) = time.Duration(secs) * time.Second
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("expected a duration such as 90s, got %q", value)
		}
		*field(c) = d
		return nil
	}
}

// keys maps dotted YAML paths to setters
var keys = map[string]setter{
	"provider":                setString(func(c *Config) *string { return &c.Provider }),
	"model":                   setString(func(c *Config) *string { return &c.Model }),
	"test_framework":          setString(func(c *Config) *string { return &c.TestFramework }),
	"test_directory":          setString(func(c *Config) *string { return &c.TestDirectory }),
	"source_directory":        setString(func(c *Config) *string { return &c.SourceDirectory }),
	"max_retries":             setInt(func(c *Config) *int { return &c.MaxRetries }),
	"max_generation_attempts": setInt(func(c *Config) *int { return &c.MaxGenerationAttempts }),
	"auto_approve":            setBool(func(c *Config) *bool { return &c.AutoApprove }),
	"run_timeout":             setDuration(func(c *Config) *time.Duration { return &c.RunTimeout }),
	"temperature":             setFloat(func(c *Config) *float64 { return &c.Temperature }),
	"max_tokens":              setInt(func(c *Config) *int { return &c.MaxTokens }),
	"api_keys.anthropic":      setString(func(c *Config) *string { return &c.APIKeys.Anthropic }),
	"api_keys.openai":         setString(func(c *Config) *string { return &c.APIKeys.OpenAI }),
	"api_keys.google":         setString(func(c *Config) *string { return &c.APIKeys.Google }),
	"ollama.base_url":         setString(func(c *Config) *string { return &c.Ollama.BaseURL }),
	"ollama.model":            setString(func(c *Config) *string { return &c.Ollama.Model }),
	"execution.timeout":       setDuration(func(c *Config) *time.Duration { return &c.Execution.Timeout }),
	"execution.pty":           setBool(func(c *Config) *bool { return &c.Execution.PTY }),
	"execution.working_dir":   setString(func(c *Config) *string { return &c.Execution.WorkingDir }),
	"server.addr":             setString(func(c *Config) *string { return &c.Server.Addr }),
	"server.remote_approval":  setBool(func(c *Config) *bool { return &c.Server.RemoteApproval }),
}

// Keys lists the settable keys, sorted
func Keys() []string {
	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns a dotted key from its string form
func (c *Config) Set(key, value string) error {
	set, ok := keys[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// EnvName is the environment variable that overrides key
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
