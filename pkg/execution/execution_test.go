package execution

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/proven/pkg/types"
)

type fakeRunner struct {
	result CommandResult
	err    error
	block  bool
	got    []Command
}

func (f *fakeRunner) Run(ctx context.Context, c Command) (CommandResult, error) {
	f.got = append(f.got, c)
	if f.block {
		<-ctx.Done()
		return CommandResult{Output: "partial output", ExitCode: -1}, ctx.Err()
	}
	return f.result, f.err
}

func TestFrameworkNaming(t *testing.T) {
	tests := []struct {
		framework, name, test, source, language string
	}{
		{"pytest", "even", "test_even.py", "even.py", "python"},
		{"jest", "even", "even.test.js", "even.js", "javascript"},
		{"maven", "shopping_cart", "ShoppingCartTest.java", "ShoppingCart.java", "java"},
	}
	for _, tt := range tests {
		f, err := Lookup(tt.framework)
		require.NoError(t, err)
		target := f.Target(tt.name, "t", "s")
		assert.Equal(t, tt.test, target.TestFile)
		assert.Equal(t, tt.source, target.SourceFile)
		assert.Equal(t, tt.language, f.Language)
		assert.NotEmpty(t, f.ImportHint(target))
	}

	_, err := Lookup("rspec")
	assert.ErrorContains(t, err, "jest, maven, pytest")
}

func TestFrameworkDefaultDirs(t *testing.T) {
	f, err := Lookup("maven")
	require.NoError(t, err)
	target := f.Target("calc", "", "")
	assert.Equal(t, "src/test/java", target.TestDir)
	assert.Equal(t, "src/main/java", target.SourceDir)
	assert.Equal(t, []string{"-q", "test", "-Dtest=CalcTest"}, f.Command(target).Args)
}

func TestBackendBuildsPytestCommand(t *testing.T) {
	runner := &fakeRunner{result: CommandResult{Output: "==== 2 passed in 0.01s ====", ExitCode: 0}}
	b, err := NewByName("pytest", Options{Runner: runner, WorkDir: "/work"})
	require.NoError(t, err)

	res, err := b.Run(context.Background(), b.Framework().Target("even", "tests", "src"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, res.Status)
	assert.Equal(t, 2, res.Passed)

	require.Len(t, runner.got, 1)
	cmd := runner.got[0]
	assert.Equal(t, "python3", cmd.Name)
	assert.Equal(t, "/work", cmd.Dir)
	assert.True(t, strings.HasSuffix(cmd.Args[2], "tests/test_even.py"))
	require.Len(t, cmd.Env, 1)
	assert.True(t, strings.HasPrefix(cmd.Env[0], "PYTHONPATH=/"))
}

func TestBackendTimeoutCarriesPartialOutput(t *testing.T) {
	b := New(frameworks["pytest"], Options{Runner: &fakeRunner{block: true}, Timeout: 20 * time.Millisecond})

	_, err := b.Run(context.Background(), b.Framework().Target("even", "tests", "src"))
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, Timeout, eerr.Kind)
	assert.Equal(t, "partial output", eerr.Output)
}

func TestBackendCancellationIsNotTimeout(t *testing.T) {
	b := New(frameworks["pytest"], Options{Runner: &fakeRunner{block: true}, Timeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Run(ctx, b.Framework().Target("even", "tests", "src"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrorKind(""), KindOf(err))
}

func TestBackendToolchainMissingFromOutput(t *testing.T) {
	runner := &fakeRunner{result: CommandResult{Output: "/usr/bin/python3: No module named pytest", ExitCode: 1}}
	b := New(frameworks["pytest"], Options{Runner: runner})

	_, err := b.Run(context.Background(), b.Framework().Target("even", "tests", "src"))
	assert.Equal(t, ToolchainMissing, KindOf(err))
	assert.Contains(t, err.Error(), "python3 -m pytest")
}

const pytestFailOutput = `============================= test session starts ==============================
collected 3 items

tests/test_even.py::test_two PASSED                                      [ 33%]
tests/test_even.py::test_three FAILED                                    [ 66%]
tests/test_even.py::test_negative FAILED                                 [100%]

=========================== short test summary info ============================
FAILED tests/test_even.py::test_three - assert True is False
FAILED tests/test_even.py::test_negative - assert False
========================= 2 failed, 1 passed in 0.03s ==========================
`

const pytestImportOutput = `==================================== ERRORS ====================================
_____________________ ERROR collecting tests/test_even.py ______________________
ImportError while importing test module '/w/tests/test_even.py'.
E   ModuleNotFoundError: No module named 'even'
=========================== short test summary info ============================
ERROR tests/test_even.py
!!!!!!!!!!!!!!!!!!!! Interrupted: 1 error during collection !!!!!!!!!!!!!!!!!!!!
=============================== 1 error in 0.05s ===============================
`

func TestClassifyPytest(t *testing.T) {
	res, err := classifyPytest(CommandResult{Output: pytestFailOutput, ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, []string{"tests/test_even.py::test_three", "tests/test_even.py::test_negative"}, res.FailedCases)

	res, err = classifyPytest(CommandResult{Output: pytestImportOutput, ExitCode: 2})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status, "missing implementation is a failing run")
	assert.Equal(t, 1, res.Errors)

	res, err = classifyPytest(CommandResult{Output: "ERROR: usage: pytest [options]", ExitCode: 4})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, res.Status)

	res, err = classifyPytest(CommandResult{Output: "collected 0 items", ExitCode: 5})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, res.Status)

	res, err = classifyPytest(CommandResult{Output: "Segmentation fault", ExitCode: -1, Signaled: true})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, res.Status)
}

const jestFailOutput = `FAIL tests/even.test.js
  isEven
    ✓ returns true for 2 (2 ms)
    ✕ returns false for 3 (1 ms)

  ● isEven › returns false for 3

    expect(received).toBe(expected)

Tests:       1 failed, 1 passed, 2 total
`

func TestClassifyJest(t *testing.T) {
	res, err := classifyJest(CommandResult{Output: jestFailOutput, ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, 1, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"isEven › returns false for 3"}, res.FailedCases)

	missing := "FAIL tests/even.test.js\n  ● Test suite failed to run\n\n    Cannot find module 'even' from 'tests/even.test.js'\n"
	res, err = classifyJest(CommandResult{Output: missing, ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, 1, res.Errors)
	assert.Empty(t, res.FailedCases)

	res, err = classifyJest(CommandResult{Output: "No tests found, exiting with code 1", ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, res.Status)

	_, err = classifyJest(CommandResult{Output: "npm ERR! could not determine executable to run", ExitCode: 1})
	assert.Equal(t, ToolchainMissing, KindOf(err))
}

func TestClassifyMaven(t *testing.T) {
	out := `[ERROR] Tests run: 4, Failures: 1, Errors: 0, Skipped: 0, Time elapsed: 0.05 s <<< FAILURE! - in CalcTest
[ERROR] CalcTest.testDivide:21 expected: <2> but was: <3>
[ERROR] Tests run: 4, Failures: 1, Errors: 0, Skipped: 0
[ERROR] There are test failures.`
	res, err := classifyMaven(CommandResult{Output: out, ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, 3, res.Passed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"CalcTest.testDivide"}, res.FailedCases)

	compile := "[ERROR] /w/src/test/java/CalcTest.java:[5,9] cannot find symbol\n  symbol:   class Calc"
	res, err = classifyMaven(CommandResult{Output: compile, ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFail, res.Status)

	res, err = classifyMaven(CommandResult{Output: "[ERROR] No tests matching pattern \"CalcTest\" were executed!", ExitCode: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, res.Status)

	res, err = classifyMaven(CommandResult{ExitCode: 0, Output: "Tests run: 2, Failures: 0, Errors: 0"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusPass, res.Status)
	assert.Equal(t, 2, res.Passed)
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestPipeRunner(t *testing.T) {
	requireShell(t)

	res, err := PipeRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err 1>&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")

	res, err = PipeRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo $PROVEN_X"}, Env: []string{"PROVEN_X=42"}})
	require.NoError(t, err)
	assert.Equal(t, "42\n", res.Output)
}

func TestPipeRunnerMissingExecutable(t *testing.T) {
	_, err := PipeRunner{}.Run(context.Background(), Command{Name: "proven-no-such-tool"})
	assert.Equal(t, ToolchainMissing, KindOf(err))
}

func TestPipeRunnerKillsOnCancel(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := PipeRunner{}.Run(ctx, Command{Name: "sh", Args: []string{"-c", "echo started; sleep 10"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, res.Output, "started")
}

func TestPTYRunner(t *testing.T) {
	requireShell(t)
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available: %v", err)
	}
	ptmx.Close()
	tty.Close()

	res, err := PTYRunner{}.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", `printf '\033[32mgreen\033[0m\n'; exit 1`}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "green\n", res.Output)
}

func TestCleanTerminalOutput(t *testing.T) {
	assert.Equal(t, "ok\nnext\n", CleanTerminalOutput("\x1b[1;31mok\x1b[0m\r\nnext\r\n"))
}
