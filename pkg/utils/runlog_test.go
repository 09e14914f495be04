package utils

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogger_WritesJSONLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runlogs")
	rl, err := NewRunLogger(dir, "abcd1234")
	require.NoError(t, err)

	rl.LogEvent("transition", map[string]any{"from": "RedPending", "to": "RedApproved"})
	rl.LogEvent("generation", map[string]any{"prompt": "use OPENAI_API_KEY here", "attempt": 1})
	require.NoError(t, rl.Close())
	rl.LogEvent("ignored", nil)

	f, err := os.Open(rl.Path())
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "transition", records[0]["type"])
	assert.Equal(t, "abcd1234", records[0]["run_id"])
	assert.Equal(t, "RedApproved", records[0]["to"])
	assert.Equal(t, "use <REDACTED> here", records[1]["prompt"])
	assert.Equal(t, float64(1), records[1]["attempt"])
}

func TestRunLogger_NilIsSafe(t *testing.T) {
	var rl *RunLogger
	rl.LogEvent("noop", map[string]any{"k": "v"})
	assert.NoError(t, rl.Close())
	assert.Equal(t, "", rl.Path())
}
