package utils

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRecord struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Error string `json:"error"`
	CID   string `json:"cid"`
}

func TestLogger_JSONModeWritesJSONWithCID(t *testing.T) {
	orig, _ := os.Getwd()
	dir := t.TempDir()
	defer os.Chdir(orig)
	_ = os.Chdir(dir)

	t.Setenv("PROVEN_JSON_LOGS", "1")
	t.Setenv("PROVEN_CORRELATION_ID", "abc123")

	l := GetLogger()
	l.Log("hello world")
	_ = l.Close()

	// Read the last JSON object from the log file; lumberjack writes raw JSON lines
	f, err := os.Open(filepath.Join(".proven", "workspace.log"))
	require.NoError(t, err)
	defer f.Close()
	var lastLine string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lastLine = scanner.Text()
	}
	require.NoError(t, scanner.Err())

	var rec logRecord
	require.NoError(t, json.Unmarshal([]byte(lastLine), &rec), lastLine)
	assert.Equal(t, logRecord{Level: "info", Msg: "hello world", CID: "abc123"}, rec)
}

func TestLogger_PlainAndConsoleEcho(t *testing.T) {
	t.Setenv("PROVEN_JSON_LOGS", "")
	var file, console bytes.Buffer
	l := NewLogger(&file)
	l.SetConsole(&console)

	l.LogProcessStep("RED: generating tests")
	l.LogError(errors.New("boom"))

	assert.Contains(t, file.String(), "Process Step: RED: generating tests")
	assert.Contains(t, file.String(), "Error: boom")
	assert.Equal(t, "RED: generating tests\n", console.String())
}

func TestLogger_SetCorrelationID(t *testing.T) {
	t.Setenv("PROVEN_JSON_LOGS", "1")
	t.Setenv("PROVEN_CORRELATION_ID", "")
	var file bytes.Buffer
	l := NewLogger(&file)
	l.SetCorrelationID("run-42")
	l.LogError(errors.New("bad"))

	var rec logRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &rec))
	assert.Equal(t, "error", rec.Level)
	assert.Equal(t, "bad", rec.Error)
	assert.Equal(t, "run-42", rec.CID)
}
