package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alantheprice/proven/pkg/filesystem"
)

func projectPath(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, ProjectFile)
}

// projectSettings is what init writes: the values a team shares, never keys
type projectSettings struct {
	Provider              string        `yaml:"provider"`
	Model                 string        `yaml:"model,omitempty"`
	TestFramework         string        `yaml:"test_framework"`
	TestDirectory         string        `yaml:"test_directory,omitempty"`
	SourceDirectory       string        `yaml:"source_directory,omitempty"`
	MaxRetries            int           `yaml:"max_retries"`
	MaxGenerationAttempts int           `yaml:"max_generation_attempts"`
	AutoApprove           bool          `yaml:"auto_approve"`
	RunTimeout            time.Duration `yaml:"run_timeout,omitempty"`
}

// WriteProject writes the shareable subset of c to dir/.proven.yaml
func WriteProject(dir string, c *Config) (string, error) {
	data, err := yaml.Marshal(projectSettings{
		Provider:              c.Provider,
		Model:                 c.Model,
		TestFramework:         c.TestFramework,
		TestDirectory:         c.TestDirectory,
		SourceDirectory:       c.SourceDirectory,
		MaxRetries:            c.MaxRetries,
		MaxGenerationAttempts: c.MaxGenerationAttempts,
		AutoApprove:           c.AutoApprove,
		RunTimeout:            c.RunTimeout,
	})
	if err != nil {
		return "", err
	}
	path := projectPath(dir)
	if err := filesystem.WriteFileAtomic(path, string(data)); err != nil {
		return "", err
	}
	return path, nil
}

// SetInFile sets one dotted key in the YAML file at path, keeping every
// other key as written. The value is checked against the key's type first.
func SetInFile(path, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if strings.HasPrefix(key, "api_keys.") && !envRef.MatchString(value) {
		return fmt.Errorf("%s only accepts an environment reference such as ${%s}; keys are not stored on disk", key, strings.ToUpper(strings.TrimPrefix(key, "api_keys."))+"_API_KEY")
	}
	trial := Default()
	if err := trial.Set(key, value); err != nil {
		return err
	}

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	case !os.IsNotExist(err):
		return err
	}

	var typed any
	if err := yaml.Unmarshal([]byte(value), &typed); err != nil || typed == nil {
		typed = value
	}

	parts := strings.Split(key, ".")
	node := doc
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[p] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = typed

	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	// The merged file must still load
	check := Default()
	if err := yaml.Unmarshal(out, check); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := filesystem.WriteFileAtomic(path, string(out)); err != nil {
		return err
	}
	return nil
}

// SetGlobal sets one key in the global config file and returns its path
func SetGlobal(key, value string) (string, error) {
	path, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return path, SetInFile(path, key, value)
}
