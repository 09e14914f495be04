package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Source is one configuration layer. Layers are applied in ascending
// priority, each overriding only the values it actually sets.
type Source interface {
	Name() string
	Priority() int
	Apply(c *Config) error
}

// Standard layer priorities
const (
	PriorityGlobal  = 10
	PriorityProject = 20
	PriorityEnv     = 30
	PriorityFlags   = 40
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces ${VAR} references with their environment values
func ExpandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// FileSource overlays a YAML file. A missing optional file is skipped.
type FileSource struct {
	Path     string
	Label    string
	Prio     int
	Required bool
}

// NewFileSource creates a YAML file layer
func NewFileSource(path, label string, priority int, required bool) *FileSource {
	return &FileSource{Path: path, Label: label, Prio: priority, Required: required}
}

func (f *FileSource) Name() string  { return f.Label }
func (f *FileSource) Priority() int { return f.Prio }

// Apply implements Source
func (f *FileSource) Apply(c *Config) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) && !f.Required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", f.Path, err)
	}
	// Decoding into the populated value leaves absent keys untouched
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", f.Path, err)
	}
	return nil
}

// EnvSource applies PROVEN_* variables
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource reads the process environment
func NewEnvSource() *EnvSource { return &EnvSource{lookup: os.LookupEnv} }

func (e *EnvSource) Name() string  { return "environment" }
func (e *EnvSource) Priority() int { return PriorityEnv }

// Apply implements Source
func (e *EnvSource) Apply(c *Config) error {
	for _, key := range Keys() {
		if value, ok := e.lookup(EnvName(key)); ok && value != "" {
			if err := c.Set(key, value); err != nil {
				return fmt.Errorf("%s: %w", EnvName(key), err)
			}
		}
	}
	return nil
}

// Overrides applies explicit key/value pairs, typically from flags
type Overrides struct {
	Label  string
	Values map[string]string
}

func (o *Overrides) Name() string  { return o.Label }
func (o *Overrides) Priority() int { return PriorityFlags }

// Apply implements Source
func (o *Overrides) Apply(c *Config) error {
	for _, key := range sortedKeys(o.Values) {
		if err := c.Set(key, o.Values[key]); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Loader merges sources over the defaults
type Loader struct {
	sources []Source
}

// NewLoader creates a loader with the given sources
func NewLoader(sources ...Source) *Loader {
	return &Loader{sources: sources}
}

// AddSource adds a layer
func (l *Loader) AddSource(s Source) {
	l.sources = append(l.sources, s)
}

// Load applies every source in priority order and validates the result
func (l *Loader) Load() (*Config, error) {
	sources := append([]Source(nil), l.sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Priority() < sources[j].Priority() })

	cfg := Default()
	for _, s := range sources {
		if err := s.Apply(cfg); err != nil {
			return nil, fmt.Errorf("config source %s: %w", s.Name(), err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StandardSources returns the global, project and environment layers
func StandardSources(projectDir string) ([]Source, error) {
	global, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return []Source{
		NewFileSource(global, "global", PriorityGlobal, false),
		NewFileSource(projectPath(projectDir), "project", PriorityProject, false),
		NewEnvSource(),
	}, nil
}

// Load resolves the configuration for projectDir with optional flag overrides
func Load(projectDir string, flags map[string]string) (*Config, error) {
	sources, err := StandardSources(projectDir)
	if err != nil {
		return nil, err
	}
	loader := NewLoader(sources...)
	if len(flags) > 0 {
		loader.AddSource(&Overrides{Label: "flags", Values: flags})
	}
	return loader.Load()
}
