package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/tdd"
	"github.com/alantheprice/proven/pkg/types"
)

// consoleObserver prints run progress for a human
type consoleObserver struct {
	out       io.Writer
	provider  string
	model     string
	framework string
	// quiet skips the per-artifact line when the reviewer sees it anyway
	quiet bool
}

func newConsoleObserver(out io.Writer, provider, model, framework string, autoApprove bool) *consoleObserver {
	return &consoleObserver{out: out, provider: provider, model: model, framework: framework, quiet: !autoApprove}
}

func (o *consoleObserver) RunStarted(s *tdd.RunState) {
	fmt.Fprintln(o.out, prompts.RunStarting(s.Task.Name, s.Target.TestPath(), s.Target.SourcePath(),
		o.provider, o.model, o.framework))
}

func (o *consoleObserver) PhaseChanged(s *tdd.RunState, t tdd.Transition) {
	if t.To == tdd.Aborted || t.To == tdd.Done {
		return
	}
	fmt.Fprintln(o.out, prompts.PhaseChanged(string(t.From), string(t.To), t.Note))
}

func (o *consoleObserver) ArtifactGenerated(s *tdd.RunState, a types.Artifact) {
	if o.quiet {
		return
	}
	lines := strings.Count(strings.TrimRight(a.Content, "\n"), "\n") + 1
	fmt.Fprintln(o.out, prompts.GeneratedArtifact(string(a.Kind), a.Path, a.Attempt, lines))
}

func (o *consoleObserver) ExecutionFinished(s *tdd.RunState, withImplementation bool, r *types.ExecutionResult) {
	fmt.Fprintln(o.out, prompts.ExecutionFinished(withImplementation, r.Summary(), r.Duration))
}

func (o *consoleObserver) RunFinished(s *tdd.RunState) {
	d := s.FinishedAt.Sub(s.StartedAt)
	if s.Outcome == tdd.OutcomeDone {
		fmt.Fprintln(o.out, prompts.RunSucceeded(s.Summary(), d))
		return
	}
	fmt.Fprintln(o.out, prompts.RunAborted(s.Summary(), s.ExitCode()))
	if s.Err != nil && s.Reason != tdd.ReasonUserCancelled {
		fmt.Fprintln(o.out, "  "+s.Err.Error())
	}
	if diag := strings.TrimSpace(s.Diagnostic); diag != "" && (s.Err == nil || diag != s.Err.Error()) {
		fmt.Fprintln(o.out, prompts.DiagnosticHeader())
		fmt.Fprint(o.out, s.Diagnostic)
		if !strings.HasSuffix(s.Diagnostic, "\n") {
			fmt.Fprintln(o.out)
		}
	}
}
