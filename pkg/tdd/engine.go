// Package tdd drives a test-first generation run: tests are generated,
// reviewed and seen to fail, then an implementation is generated and
// retried until those tests pass or a cap is reached.
package tdd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/alantheprice/proven/pkg/approval"
	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/filesystem"
	"github.com/alantheprice/proven/pkg/generation"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/text"
	"github.com/alantheprice/proven/pkg/types"
	"github.com/alantheprice/proven/pkg/utils"
)

// errRunBudget is the cancellation cause when the run budget expires
var errRunBudget = errors.New("run time budget exhausted")

// Settings are the caps and budget of a run
type Settings struct {
	// MaxGenerationAttempts bounds test generations in Red and review
	// rejections of one implementation attempt in Green.
	MaxGenerationAttempts int
	// MaxRetries bounds implementation executions that do not pass.
	MaxRetries int
	// RunTimeout is an optional wall-clock budget for the whole run.
	RunTimeout time.Duration
}

// DefaultSettings matches the configuration defaults
func DefaultSettings() Settings {
	return Settings{MaxGenerationAttempts: 3, MaxRetries: 3}
}

// Observer is told about run progress synchronously, on the run's goroutine
type Observer interface {
	RunStarted(s *RunState)
	PhaseChanged(s *RunState, t Transition)
	ArtifactGenerated(s *RunState, a types.Artifact)
	ExecutionFinished(s *RunState, withImplementation bool, r *types.ExecutionResult)
	RunFinished(s *RunState)
}

// Engine sequences one run at a time; separate Run calls share nothing
// but the injected backends.
type Engine struct {
	generator generation.Backend
	executor  execution.Backend
	gate      approval.Gate
	settings  Settings

	backoff   *utils.RateLimitBackoff
	logger    *utils.Logger
	runLogDir string
	observers []Observer
	now       func() time.Time
}

// Option customises an Engine
type Option func(*Engine)

// WithLogger replaces the workspace logger
func WithLogger(l *utils.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithRunLogDir writes a JSONL run log per run into dir
func WithRunLogDir(dir string) Option { return func(e *Engine) { e.runLogDir = dir } }

// WithObserver adds a progress observer
func WithObserver(o Observer) Option { return func(e *Engine) { e.observers = append(e.observers, o) } }

// WithBackoff replaces the generation retry policy
func WithBackoff(b *utils.RateLimitBackoff) Option { return func(e *Engine) { e.backoff = b } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine wires the backends and gate into an engine
func NewEngine(gen generation.Backend, exec execution.Backend, gate approval.Gate, settings Settings, opts ...Option) *Engine {
	defaults := DefaultSettings()
	if settings.MaxGenerationAttempts <= 0 {
		settings.MaxGenerationAttempts = defaults.MaxGenerationAttempts
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = defaults.MaxRetries
	}
	e := &Engine{
		generator: gen,
		executor:  exec,
		gate:      gate,
		settings:  settings,
		backoff:   utils.NewRateLimitBackoff(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = utils.NewLogger(io.Discard)
	}
	return e
}

// run bundles the per-run values the steps share
type run struct {
	ctx      context.Context
	state    *RunState
	settings prompts.Settings
	runLog   *utils.RunLogger
}

// Run executes the workflow for task and returns its final state. Run
// never returns an error: every failure is an Aborted state with a reason.
func (e *Engine) Run(ctx context.Context, task types.Task) *RunState {
	if task.Name == "" {
		task.Name = text.DeriveName(task.Description)
	}
	framework := e.executor.Framework()
	target := framework.Target(task.Name, task.TestDir, task.SourceDir)
	task.TestDir, task.SourceDir = target.TestDir, target.SourceDir

	st := &RunState{
		RunID:     uuid.NewString(),
		Task:      task,
		Target:    target,
		Phase:     RedPending,
		StartedAt: e.now(),
	}

	if e.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.settings.RunTimeout, errRunBudget)
		defer cancel()
	}

	r := &run{ctx: ctx, state: st, settings: prompts.Settings{Framework: framework, Target: target}}
	if e.runLogDir != "" {
		rl, err := utils.NewRunLogger(e.runLogDir, st.RunID)
		if err != nil {
			e.logger.LogError(fmt.Errorf("run log disabled: %w", err))
		} else {
			r.runLog = rl
			defer rl.Close()
		}
	}

	e.logger.Logf("run %s started: %q (name=%s, framework=%s, provider=%s/%s)",
		st.RunID, task.Description, task.Name, framework.Name, e.generator.Name(), e.generator.Model())
	r.runLog.LogEvent("run_started", map[string]any{
		"description": task.Description,
		"name":        task.Name,
		"test_path":   target.TestPath(),
		"source_path": target.SourcePath(),
		"framework":   framework.Name,
		"provider":    e.generator.Name(),
		"model":       e.generator.Model(),
	})
	for _, o := range e.observers {
		o.RunStarted(st)
	}

	for !st.Phase.Terminal() {
		switch st.Phase {
		case RedPending:
			e.redPending(r)
		case RedRejected:
			e.transition(r, RedPending, "regenerating tests")
		case RedApproved:
			e.redApproved(r)
		case RedVerifiedFailing:
			st.Feedback = nil
			e.transition(r, GreenPending, "tests fail without an implementation")
		case GreenPending:
			e.greenPending(r)
		case GreenApproved:
			e.greenApproved(r)
		case GreenRetrying:
			e.transition(r, GreenPending, fmt.Sprintf("retry %d of %d", st.GreenAttempts, e.settings.MaxRetries-1))
		default:
			e.abort(r, ReasonGenerationFailed, fmt.Errorf("unexpected phase %s", st.Phase), "")
		}
	}

	st.FinishedAt = e.now()
	e.logger.Logf("run %s finished: %s", st.RunID, st.Summary())
	r.runLog.LogEvent("run_finished", map[string]any{
		"outcome":     string(st.Outcome),
		"reason":      string(st.Reason),
		"exit_code":   st.ExitCode(),
		"diagnostic":  st.Diagnostic,
		"duration_ms": st.FinishedAt.Sub(st.StartedAt).Milliseconds(),
	})
	for _, o := range e.observers {
		o.RunFinished(st)
	}
	return st
}

func (e *Engine) redPending(r *run) {
	st := r.state
	st.RedAttempts++

	a, ok := e.generate(r, prompts.Red, types.KindTest, st.RedAttempts, st.Target.TestPath())
	if !ok {
		return
	}

	d, ok := e.review(r, a)
	if !ok {
		return
	}
	if d.Action == approval.Accept {
		st.Test = &a
		e.transition(r, RedApproved, "tests accepted")
		return
	}

	st.Feedback = append(st.Feedback, types.Feedback{Source: types.FromReviewer, Attempt: a.Attempt, Note: d.Note})
	if st.RedAttempts >= e.settings.MaxGenerationAttempts {
		e.abort(r, ReasonGenerationRejected, nil, d.Note)
		return
	}
	e.transition(r, RedRejected, fmt.Sprintf("tests %s: %s", d.Action, d.Note))
}

func (e *Engine) redApproved(r *run) {
	st := r.state
	if err := filesystem.WriteFileAtomic(st.Target.TestPath(), st.Test.Content); err != nil {
		e.abort(r, ReasonPersistFailed, err, err.Error())
		return
	}

	// Verify against an absent implementation, even if one is on disk
	restore, err := filesystem.Stash(st.Target.SourcePath())
	if err != nil {
		e.abort(r, ReasonPersistFailed, err, err.Error())
		return
	}
	res, ok := e.execute(r, false)
	if rerr := restore(); rerr != nil {
		e.logger.LogError(fmt.Errorf("restoring %s: %w", st.Target.SourcePath(), rerr))
		if ok {
			e.abort(r, ReasonPersistFailed, rerr, rerr.Error())
			return
		}
	}
	if !ok {
		return
	}

	if res.Status == types.StatusFail {
		e.transition(r, RedVerifiedFailing, res.Summary())
		return
	}

	st.Feedback = append(st.Feedback, types.Feedback{Source: types.FromVerification, Attempt: st.Test.Attempt, Result: res})
	if st.RedAttempts >= e.settings.MaxGenerationAttempts {
		e.abort(r, ReasonRedDidNotFail, nil, res.Output)
		return
	}
	e.transition(r, RedPending, fmt.Sprintf("tests did not fail without an implementation (%s)", res.Status))
}

func (e *Engine) greenPending(r *run) {
	st := r.state
	st.ImplAttempts++

	a, ok := e.generate(r, prompts.Green, types.KindImplementation, st.ImplAttempts, st.Target.SourcePath())
	if !ok {
		return
	}

	d, ok := e.review(r, a)
	if !ok {
		return
	}
	if d.Action == approval.Accept {
		st.GreenRejections = 0
		st.Implementation = &a
		e.transition(r, GreenApproved, "implementation accepted")
		return
	}

	st.Feedback = append(st.Feedback, types.Feedback{Source: types.FromReviewer, Attempt: a.Attempt, Note: d.Note})
	st.GreenRejections++
	if st.GreenRejections >= e.settings.MaxGenerationAttempts {
		e.abort(r, ReasonGenerationRejected, nil, d.Note)
		return
	}
	e.transition(r, GreenPending, fmt.Sprintf("implementation %s: %s", d.Action, d.Note))
}

func (e *Engine) greenApproved(r *run) {
	st := r.state
	if err := filesystem.WriteFileAtomic(st.Target.SourcePath(), st.Implementation.Content); err != nil {
		e.abort(r, ReasonPersistFailed, err, err.Error())
		return
	}

	res, ok := e.execute(r, true)
	if !ok {
		return
	}

	if res.Status == types.StatusPass {
		st.Outcome = OutcomeDone
		e.transition(r, Done, res.Summary())
		return
	}

	st.GreenAttempts++
	st.Feedback = append(st.Feedback, types.Feedback{Source: types.FromExecution, Attempt: st.Implementation.Attempt, Result: res})
	if st.GreenAttempts >= e.settings.MaxRetries {
		e.abort(r, ReasonMaxRetriesExceeded, nil, res.Output)
		return
	}
	e.transition(r, GreenRetrying, res.Summary())
}

// generate composes, calls the backend and records a new artifact
func (e *Engine) generate(r *run, phase prompts.Phase, kind types.ArtifactKind, attempt int, path string) (types.Artifact, bool) {
	st := r.state
	p, err := prompts.Compose(phase, st.Task, r.settings, st.Artifacts, st.Feedback)
	if err != nil {
		e.abort(r, ReasonGenerationFailed, err, err.Error())
		return types.Artifact{}, false
	}

	req := generation.Request{
		System:   p.System,
		User:     p.User,
		Language: r.settings.Framework.Language,
		Kind:     kind,
		Prior:    st.Artifacts,
		Feedback: st.Feedback,
	}

	started := e.now()
	code, err := generation.Generate(r.ctx, e.generator, req, e.backoff, func(gerr *generation.Error, retry int, wait string) {
		e.logger.Logf("run %s: %s generation retry %d in %s: %v", st.RunID, kind, retry, wait, gerr)
		r.runLog.LogEvent("generation_retry", map[string]any{"kind": string(kind), "retry": retry, "wait": wait, "error": gerr.Error()})
	})
	r.runLog.LogEvent("generation", map[string]any{
		"kind":        string(kind),
		"attempt":     attempt,
		"duration_ms": e.now().Sub(started).Milliseconds(),
		"chars":       len(code),
		"error":       errString(err),
	})
	if err != nil {
		if e.interrupted(r, err) {
			return types.Artifact{}, false
		}
		e.abort(r, ReasonGenerationFailed, err, err.Error())
		return types.Artifact{}, false
	}

	a := types.Artifact{
		Kind:      kind,
		Path:      path,
		Content:   code,
		Attempt:   attempt,
		Prompt:    p.User,
		CreatedAt: e.now(),
	}
	st.Artifacts = append(st.Artifacts, a)
	e.logger.Logf("run %s: generated %s, %d chars", st.RunID, a.Label(), len(a.Content))
	for _, o := range e.observers {
		o.ArtifactGenerated(st, a)
	}
	return a, true
}

// review submits a to the gate, with the artifact it would replace
func (e *Engine) review(r *run, a types.Artifact) (approval.Decision, bool) {
	st := r.state
	sub := approval.Submission{Artifact: a, Superseded: st.superseded(a)}
	d, err := e.gate.Review(r.ctx, sub)
	if err != nil {
		if !e.interrupted(r, err) {
			e.abort(r, ReasonUserCancelled, err, err.Error())
		}
		return approval.Decision{}, false
	}
	e.logger.Logf("run %s: %s %s", st.RunID, a.Label(), d.Action)
	r.runLog.LogEvent("review", map[string]any{"kind": string(a.Kind), "attempt": a.Attempt, "action": string(d.Action), "note": d.Note})
	return d, true
}

// execute runs the suite and turns a timeout into a failing result
func (e *Engine) execute(r *run, withImplementation bool) (*types.ExecutionResult, bool) {
	st := r.state
	st.Executions = append(st.Executions, withImplementation)

	res, err := e.executor.Run(r.ctx, st.Target)
	if err != nil {
		if e.interrupted(r, err) {
			return nil, false
		}
		var eerr *execution.Error
		switch {
		case errors.As(err, &eerr) && eerr.Kind == execution.Timeout:
			res = &types.ExecutionResult{Status: types.StatusFail, TimedOut: true, Output: eerr.Output, ExitCode: -1}
		case errors.As(err, &eerr) && eerr.Kind == execution.ToolchainMissing:
			e.abort(r, ReasonToolchainMissing, err, joinDiagnostic(err.Error(), eerr.Output))
			return nil, false
		default:
			e.abort(r, ReasonExecutionFailed, err, err.Error())
			return nil, false
		}
	}

	st.LastResult = res
	r.runLog.LogEvent("execution", map[string]any{
		"with_implementation": withImplementation,
		"status":              string(res.Status),
		"passed":              res.Passed,
		"failed":              res.Failed,
		"errors":              res.Errors,
		"failed_cases":        res.FailedCases,
		"timed_out":           res.TimedOut,
		"exit_code":           res.ExitCode,
		"duration_ms":         res.Duration.Milliseconds(),
	})
	for _, o := range e.observers {
		o.ExecutionFinished(st, withImplementation, res)
	}
	return res, true
}

// interrupted aborts the run when ctx has ended, telling the run budget
// apart from a user cancellation.
func (e *Engine) interrupted(r *run, err error) bool {
	if r.ctx.Err() == nil {
		return false
	}
	diagnostic := ""
	if r.state.LastResult != nil {
		diagnostic = r.state.LastResult.Output
	}
	if errors.Is(context.Cause(r.ctx), errRunBudget) {
		e.abort(r, ReasonTimeout, errRunBudget, diagnostic)
	} else {
		e.abort(r, ReasonUserCancelled, err, diagnostic)
	}
	return true
}

func (e *Engine) abort(r *run, reason AbortReason, err error, diagnostic string) {
	st := r.state
	st.Outcome = OutcomeAborted
	st.Reason = reason
	st.Err = err
	st.Diagnostic = diagnostic
	note := string(reason)
	if err != nil {
		note += ": " + err.Error()
	}
	e.transition(r, Aborted, note)
}

func (e *Engine) transition(r *run, to Phase, note string) {
	st := r.state
	from := st.Phase
	if !CanTransition(from, to) {
		// A bug in the engine, not a workflow outcome
		e.logger.LogError(fmt.Errorf("illegal transition %s -> %s", from, to))
	}
	t := Transition{From: from, To: to, At: e.now(), Note: note}
	st.Phase = to
	st.History = append(st.History, t)

	e.logger.LogProcessStep(fmt.Sprintf("%s -> %s %s", from, to, note))
	r.runLog.LogEvent("transition", map[string]any{"from": string(from), "to": string(to), "note": note})
	for _, o := range e.observers {
		o.PhaseChanged(st, t)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func joinDiagnostic(msg, output string) string {
	if output == "" {
		return msg
	}
	return msg + "\n" + output
}
