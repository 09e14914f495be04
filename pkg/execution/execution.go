// Package execution runs generated test suites with the configured
// toolchain and turns the runner's output into an ExecutionResult.
package execution

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/alantheprice/proven/pkg/types"
)

// Target names the files one execution judges.
type Target struct {
	Name       string
	TestDir    string
	SourceDir  string
	TestFile   string
	SourceFile string
}

// TestPath is the full path of the test file
func (t Target) TestPath() string { return filepath.Join(t.TestDir, t.TestFile) }

// SourcePath is the full path of the implementation file
func (t Target) SourcePath() string { return filepath.Join(t.SourceDir, t.SourceFile) }

// Backend runs the test suite for a target. A nonzero runner exit is a
// normal fail result; only Error kinds and cancellation are returned as errors.
type Backend interface {
	Framework() Framework
	Run(ctx context.Context, target Target) (*types.ExecutionResult, error)
}

// ErrorKind classifies an execution failure.
type ErrorKind string

const (
	ToolchainMissing ErrorKind = "toolchain-missing"
	Timeout          ErrorKind = "timeout"
)

// Error is a classified execution failure. Output holds whatever the
// runner printed before it stopped.
type Error struct {
	Kind    ErrorKind
	Command string
	Output  string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ToolchainMissing:
		if e.Err != nil {
			return fmt.Sprintf("toolchain missing for %q: %v", e.Command, e.Err)
		}
		return fmt.Sprintf("toolchain missing for %q", e.Command)
	case Timeout:
		return fmt.Sprintf("%q timed out", e.Command)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Command)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an execution error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var eerr *Error
	if errors.As(err, &eerr) {
		return eerr.Kind
	}
	return ""
}
