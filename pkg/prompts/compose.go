// Package prompts builds generation requests and the user-facing messages
// of the CLI. Nothing here performs I/O.
package prompts

import (
	"fmt"
	"strings"

	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/text"
	"github.com/alantheprice/proven/pkg/types"
)

// Phase selects which half of the cycle a prompt is for
type Phase string

const (
	Red   Phase = "red"
	Green Phase = "green"
)

// MaxDiagnosticChars bounds the raw runner output quoted in a prompt
const MaxDiagnosticChars = 6000

// Prompt is a composed generation request
type Prompt struct {
	System string
	User   string
}

// Settings is the slice of configuration a prompt depends on
type Settings struct {
	Framework execution.Framework
	Target    execution.Target
}

// Compose builds the prompt for phase. prior holds earlier artifacts of
// this run in creation order; feedback holds the corrective context
// gathered for the current phase. Green requires an accepted test in prior.
func Compose(phase Phase, task types.Task, settings Settings, prior []types.Artifact, feedback []types.Feedback) (Prompt, error) {
	switch phase {
	case Red:
		return composeRed(task, settings, prior, feedback), nil
	case Green:
		return composeGreen(task, settings, prior, feedback)
	}
	return Prompt{}, fmt.Errorf("unknown phase %q", phase)
}

func composeRed(task types.Task, s Settings, prior []types.Artifact, feedback []types.Feedback) Prompt {
	f, t := s.Framework, s.Target
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n\n", strings.TrimSpace(task.Description))
	fmt.Fprintf(&b, "Write %s tests for the module `%s`. The tests will be saved as %s.\n", f.Name, t.Name, t.TestFile)
	fmt.Fprintf(&b, "%s\n", f.ImportHint(t))

	if last := latest(prior, types.KindTest); last != nil {
		fmt.Fprintf(&b, "\n%s\n", previousTests(last.Attempt, feedback))
		writeFence(&b, f.Language, last.Content)
	}

	writeFeedback(&b, feedback)

	return Prompt{System: TestGenerationSystem(f.Name, f.Language), User: b.String()}
}

func composeGreen(task types.Task, s Settings, prior []types.Artifact, feedback []types.Feedback) (Prompt, error) {
	f, t := s.Framework, s.Target
	tests := latest(prior, types.KindTest)
	if tests == nil {
		return Prompt{}, fmt.Errorf("green phase prompt requires the accepted test artifact")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", strings.TrimSpace(task.Description))
	fmt.Fprintf(&b, "Write the implementation file %s so that these %s tests from %s pass:\n", t.SourceFile, f.Name, t.TestFile)
	writeFence(&b, f.Language, tests.Content)
	fmt.Fprintf(&b, "%s\n", f.ImportHint(t))

	if last := latest(prior, types.KindImplementation); last != nil {
		fmt.Fprintf(&b, "\nYour previous implementation (attempt #%d):\n", last.Attempt)
		writeFence(&b, f.Language, last.Content)
	}

	writeFeedback(&b, feedback)

	return Prompt{System: ImplementationSystem(f.Name, f.Language), User: b.String()}, nil
}

// previousTests introduces the last test attempt by what happened to it
func previousTests(attempt int, feedback []types.Feedback) string {
	for i := len(feedback) - 1; i >= 0; i-- {
		if feedback[i].Attempt != attempt {
			continue
		}
		switch feedback[i].Source {
		case types.FromVerification:
			return fmt.Sprintf("Your previous tests (attempt #%d) were accepted but did not fail without an implementation:", attempt)
		case types.FromReviewer:
			return fmt.Sprintf("Your previous attempt (#%d) was turned down by the reviewer:", attempt)
		}
	}
	return fmt.Sprintf("Your previous attempt (#%d):", attempt)
}

func latest(artifacts []types.Artifact, kind types.ArtifactKind) *types.Artifact {
	for i := len(artifacts) - 1; i >= 0; i-- {
		if artifacts[i].Kind == kind {
			return &artifacts[i]
		}
	}
	return nil
}

func writeFence(b *strings.Builder, language, content string) {
	fmt.Fprintf(b, "```%s\n%s\n```\n", language, strings.TrimRight(content, "\n"))
}

// writeFeedback lists every note and execution summary, then quotes the
// raw output of the most recent execution only.
func writeFeedback(b *strings.Builder, feedback []types.Feedback) {
	if len(feedback) == 0 {
		return
	}

	b.WriteString("\nFeedback on earlier attempts:\n")
	var lastResult *types.ExecutionResult
	for _, fb := range feedback {
		b.WriteString("- ")
		b.WriteString(describe(fb))
		b.WriteString("\n")
		if fb.Result != nil {
			lastResult = fb.Result
		}
	}

	if lastResult == nil {
		return
	}
	if lastResult.TimedOut {
		b.WriteString("\nThe most recent run was stopped because it exceeded the execution time limit. Look for infinite loops, unbounded recursion or blocking input.\n")
	}
	if out := strings.TrimSpace(lastResult.Output); out != "" {
		b.WriteString("\nOutput of the most recent test run:\n```\n")
		b.WriteString(text.Tail(out, MaxDiagnosticChars))
		b.WriteString("\n```\n")
	}
	b.WriteString("\nAddress every problem above in this attempt.\n")
}

func describe(fb types.Feedback) string {
	var parts []string
	switch fb.Source {
	case types.FromReviewer:
		if fb.Note == "" {
			parts = append(parts, fmt.Sprintf("Attempt %d was turned down by the reviewer without a comment; produce a different, better version.", fb.Attempt))
		} else {
			parts = append(parts, fmt.Sprintf("Reviewer on attempt %d: %s", fb.Attempt, fb.Note))
		}
	case types.FromVerification:
		parts = append(parts, fmt.Sprintf("Attempt %d did not fail when run without any implementation", fb.Attempt))
		if fb.Result != nil && fb.Result.Status == types.StatusPass {
			parts = append(parts, "the tests passed vacuously; they must import and exercise the real module so they fail until it exists.")
		} else {
			parts = append(parts, "the test run errored instead of failing; fix syntax, collection or configuration problems in the tests.")
		}
		if fb.Note != "" {
			parts = append(parts, fb.Note)
		}
	case types.FromExecution:
		parts = append(parts, fmt.Sprintf("Attempt %d: %s", fb.Attempt, fb.Result.Summary()))
		if fb.Result != nil && len(fb.Result.FailedCases) > 0 {
			parts = append(parts, "failing: "+strings.Join(fb.Result.FailedCases, ", "))
		}
		if fb.Note != "" {
			parts = append(parts, fb.Note)
		}
	default:
		parts = append(parts, fb.Note)
	}
	return strings.Join(parts, "; ")
}
