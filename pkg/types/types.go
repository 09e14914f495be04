package types

import (
	"fmt"
	"time"
)

// Task is the user request a run works on. It is not modified once a run starts.
type Task struct {
	Description string `json:"description"`
	Name        string `json:"name"`
	TestDir     string `json:"test_dir"`
	SourceDir   string `json:"source_dir"`
}

// ArtifactKind distinguishes generated tests from generated implementations.
type ArtifactKind string

const (
	KindTest           ArtifactKind = "test"
	KindImplementation ArtifactKind = "implementation"
)

// Artifact is one generated text unit. A retry produces a new Artifact; an
// existing one is never modified.
type Artifact struct {
	Kind      ArtifactKind `json:"kind"`
	Path      string       `json:"path"`
	Content   string       `json:"content"`
	Attempt   int          `json:"attempt"`
	Prompt    string       `json:"prompt"`
	CreatedAt time.Time    `json:"created_at"`
}

// Label is a short human-readable identifier used in logs and prompts.
func (a Artifact) Label() string {
	return fmt.Sprintf("%s #%d (%s)", a.Kind, a.Attempt, a.Path)
}

// ExecStatus is the outcome of a test execution.
type ExecStatus string

const (
	StatusPass  ExecStatus = "pass"
	StatusFail  ExecStatus = "fail"
	StatusError ExecStatus = "error"
)

// ExecutionResult is the structured outcome of running the test suite.
type ExecutionResult struct {
	Status      ExecStatus    `json:"status"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errors      int           `json:"errors"`
	FailedCases []string      `json:"failed_cases,omitempty"`
	Output      string        `json:"output"`
	TimedOut    bool          `json:"timed_out"`
	ExitCode    int           `json:"exit_code"`
	Duration    time.Duration `json:"duration"`
}

// Summary renders the counters on one line.
func (r *ExecutionResult) Summary() string {
	if r == nil {
		return "no result"
	}
	s := fmt.Sprintf("%s: %d passed, %d failed, %d errors", r.Status, r.Passed, r.Failed, r.Errors)
	if r.TimedOut {
		s += " (timed out)"
	}
	return s
}

// FeedbackSource records who produced a piece of corrective context.
type FeedbackSource string

const (
	FromReviewer     FeedbackSource = "reviewer"
	FromVerification FeedbackSource = "verification"
	FromExecution    FeedbackSource = "execution"
)

// Feedback is corrective context carried into the next generation request.
type Feedback struct {
	Source  FeedbackSource   `json:"source"`
	Attempt int              `json:"attempt"`
	Note    string           `json:"note,omitempty"`
	Result  *ExecutionResult `json:"result,omitempty"`
}
