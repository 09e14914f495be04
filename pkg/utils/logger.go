package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync" // For thread-safe initialization

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFile is the workspace log, relative to the project root.
var LogFile = filepath.Join(".proven", "workspace.log")

// Logger represents a workspace logger.
type Logger struct {
	logger        *log.Logger
	console       io.Writer // optional echo of process steps
	jsonMode      bool
	correlationID string
	mu            sync.Mutex
}

var (
	globalLogger *Logger
	once         sync.Once
)

// GetLogger returns the singleton instance of Logger.
// It initializes the logger with a file handler that rotates logs.
func GetLogger() *Logger {
	once.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   LogFile,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28,   // days
			Compress:   true, // disabled by default
		}
		globalLogger = NewLogger(logFile)
	})
	globalLogger.applyEnv()
	return globalLogger
}

// NewLogger builds a logger writing to w. Tests and embedders use it
// instead of the workspace singleton.
func NewLogger(w io.Writer) *Logger {
	l := &Logger{logger: log.New(w, "", log.LstdFlags)}
	l.applyEnv()
	return l
}

func (w *Logger) applyEnv() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.jsonMode = os.Getenv("PROVEN_JSON_LOGS") == "1"
	if cid := os.Getenv("PROVEN_CORRELATION_ID"); cid != "" {
		w.correlationID = cid
	}
}

// SetCorrelationID tags subsequent JSON records, typically with the run id.
func (w *Logger) SetCorrelationID(cid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if os.Getenv("PROVEN_CORRELATION_ID") == "" {
		w.correlationID = cid
	}
}

// SetConsole echoes process steps to out as well as the log file. nil disables the echo.
func (w *Logger) SetConsole(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.console = out
}

// Close closes the logger resources.
func (w *Logger) Close() error {
	if logFile, ok := w.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}

// LogProcessStep logs the current step in a process and echoes it to the console writer if set.
func (w *Logger) LogProcessStep(step string) {
	w.Logf("Process Step: %s", step)
	w.mu.Lock()
	out := w.console
	w.mu.Unlock()
	if out != nil {
		fmt.Fprintln(out, step)
	}
}

// Log logs a general message only to the log file.
func (w *Logger) Log(message string) {
	w.mu.Lock()
	jsonMode, cid := w.jsonMode, w.correlationID
	w.mu.Unlock()
	if jsonMode {
		_ = json.NewEncoder(w.logger.Writer()).Encode(map[string]any{"level": "info", "msg": message, "cid": cid})
		return
	}
	w.logger.Print(message)
}

// Logf logs a formatted general message only to the log file.
func (w *Logger) Logf(format string, v ...interface{}) {
	w.Log(fmt.Sprintf(format, v...))
}

func (w *Logger) LogError(err error) {
	w.mu.Lock()
	jsonMode, cid := w.jsonMode, w.correlationID
	w.mu.Unlock()
	if jsonMode {
		_ = json.NewEncoder(w.logger.Writer()).Encode(map[string]any{"level": "error", "error": err.Error(), "cid": cid})
		return
	}
	w.logger.Printf("Error: %s", err)
}
