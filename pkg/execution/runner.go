package execution

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
)

// Command is one external process invocation. Env entries are added to
// the inherited environment.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line for logs and errors
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult is what a finished process left behind
type CommandResult struct {
	Output   string
	ExitCode int
	Signaled bool
	Duration time.Duration
}

// CommandRunner starts a process and waits for it. When ctx ends the
// process is killed and the partial result is returned with ctx's error.
// A missing executable is reported as an *Error of kind ToolchainMissing.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

// waitDelay bounds how long output pipes may outlive a killed process
const waitDelay = 2 * time.Second

func buildCmd(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.WaitDelay = waitDelay
	return cmd
}

func startError(c Command, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &Error{Kind: ToolchainMissing, Command: c.String(), Err: err}
	}
	return err
}

// finish converts the Wait error into a result, leaving only cancellation
// and unexpected failures as errors.
func finish(ctx context.Context, c Command, output string, started time.Time, waitErr error) (CommandResult, error) {
	res := CommandResult{Output: output, Duration: time.Since(started)}
	if waitErr == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		// ExitCode is -1 when the process was terminated by a signal
		res.Signaled = res.ExitCode == -1
		return res, nil
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		return res, nil
	}
	return res, startError(c, waitErr)
}

// lockedBuffer lets the copy goroutine and the caller share a buffer
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// PipeRunner captures combined stdout and stderr through pipes
type PipeRunner struct{}

// Run implements CommandRunner
func (PipeRunner) Run(ctx context.Context, c Command) (CommandResult, error) {
	cmd := buildCmd(ctx, c)
	var out lockedBuffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	started := time.Now()
	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1}, startError(c, err)
	}
	err := cmd.Wait()
	return finish(ctx, c, out.String(), started, err)
}

// PTYRunner runs the process on a pseudo-terminal so runners that only
// print their full report to a TTY behave as they would interactively.
// Terminal escape sequences are stripped from the captured output.
type PTYRunner struct{}

// Run implements CommandRunner
func (PTYRunner) Run(ctx context.Context, c Command) (CommandResult, error) {
	cmd := buildCmd(ctx, c)

	started := time.Now()
	tty, err := pty.Start(cmd)
	if err != nil {
		return CommandResult{ExitCode: -1}, startError(c, err)
	}

	var out lockedBuffer
	copied := make(chan struct{})
	go func() {
		// Reading a pty whose child exited ends with EIO
		_, _ = io.Copy(&out, tty)
		close(copied)
	}()

	waitErr := cmd.Wait()
	select {
	case <-copied:
	case <-time.After(waitDelay):
	}
	tty.Close()
	<-copied

	return finish(ctx, c, CleanTerminalOutput(out.String()), started, waitErr)
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\a]*(\a|\x1b\\)|\x1b[()][AB012]`)

// CleanTerminalOutput removes escape sequences and carriage returns
func CleanTerminalOutput(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// NewRunner picks the pty runner when usePTY is set
func NewRunner(usePTY bool) CommandRunner {
	if usePTY {
		return PTYRunner{}
	}
	return PipeRunner{}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
