package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLogger writes structured JSONL events for a single TDD run.
type RunLogger struct {
	mu   sync.Mutex
	f    *os.File
	id   string
	path string
}

// secretNames are scrubbed from string fields before they hit disk.
var secretNames = []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "x-api-key"}

// NewRunLogger opens dir/run-<timestamp>-<runID>.jsonl for appending.
func NewRunLogger(dir, runID string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	name := fmt.Sprintf("run-%s-%s.jsonl", time.Now().Format("20060102_150405"), runID)
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &RunLogger{f: f, id: runID, path: path}, nil
}

// Path returns the file backing the run log.
func (r *RunLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close closes the underlying file, if open.
func (r *RunLogger) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.f.Close()
	r.f = nil
	return err
}

// LogEvent writes a JSON line with the provided type and fields.
func (r *RunLogger) LogEvent(eventType string, fields map[string]any) {
	if r == nil {
		return
	}
	payload := map[string]any{
		"ts":     time.Now().Format(time.RFC3339Nano),
		"type":   eventType,
		"run_id": r.id,
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = redact(s)
		}
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return
	}
	_, _ = r.f.Write(append(b, '\n'))
}

func redact(s string) string {
	out := s
	for _, k := range secretNames {
		out = strings.ReplaceAll(out, k, "<REDACTED>")
	}
	return out
}
