package execution

import (
	"context"
	"errors"
	"time"

	"github.com/alantheprice/proven/pkg/types"
)

// DefaultTimeout bounds one test execution
const DefaultTimeout = 60 * time.Second

// Options configures a TestBackend
type Options struct {
	Runner  CommandRunner
	Timeout time.Duration
	WorkDir string
}

// TestBackend runs a Framework's command through a CommandRunner
type TestBackend struct {
	framework Framework
	runner    CommandRunner
	timeout   time.Duration
	workDir   string
}

// New creates a backend for framework f
func New(f Framework, opts Options) *TestBackend {
	if opts.Runner == nil {
		opts.Runner = PipeRunner{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &TestBackend{framework: f, runner: opts.Runner, timeout: opts.Timeout, workDir: opts.WorkDir}
}

// NewByName looks up a framework and creates its backend
func NewByName(name string, opts Options) (*TestBackend, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return New(f, opts), nil
}

// Framework implements Backend
func (b *TestBackend) Framework() Framework { return b.framework }

// Run implements Backend
func (b *TestBackend) Run(ctx context.Context, target Target) (*types.ExecutionResult, error) {
	target.TestDir = absPath(target.TestDir)
	target.SourceDir = absPath(target.SourceDir)
	cmd := b.framework.Command(target)
	cmd.Dir = b.workDir

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	res, err := b.runner.Run(runCtx, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: Timeout, Command: cmd.String(), Output: res.Output, Err: err}
		}
		return nil, err
	}

	result, err := b.framework.classify(res)
	if err != nil {
		var eerr *Error
		if errors.As(err, &eerr) && eerr.Command == "" {
			eerr.Command = cmd.String()
		}
		return nil, err
	}
	result.Output = res.Output
	result.ExitCode = res.ExitCode
	result.Duration = res.Duration
	return result, nil
}
