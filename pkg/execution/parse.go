package execution

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alantheprice/proven/pkg/types"
)

func lastInt(re *regexp.Regexp, s string) int {
	matches := re.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(matches[len(matches)-1][1])
	return n
}

func collect(s string, patterns ...*regexp.Regexp) []string {
	var cases []string
	seen := make(map[string]bool)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			name := strings.TrimSpace(m[1])
			if name != "" && !seen[name] {
				seen[name] = true
				cases = append(cases, name)
			}
		}
	}
	return cases
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

var (
	pytestPassed  = regexp.MustCompile(`(\d+) passed`)
	pytestFailed  = regexp.MustCompile(`(\d+) failed`)
	pytestErrors  = regexp.MustCompile(`(\d+) errors?\b`)
	pytestVerbose = regexp.MustCompile(`(?m)^(\S+::\S+)\s+(?:FAILED|ERROR)\b`)
	pytestShort   = regexp.MustCompile(`(?m)^(?:FAILED|ERROR) (\S+)`)
)

// Exit codes documented by pytest
const (
	pytestOK          = 0
	pytestTestsFailed = 1
	pytestInterrupted = 2
)

func classifyPytest(res CommandResult) (*types.ExecutionResult, error) {
	out := res.Output
	if containsAny(out, "No module named pytest") {
		return nil, &Error{Kind: ToolchainMissing, Output: out}
	}

	result := &types.ExecutionResult{
		Passed:      lastInt(pytestPassed, out),
		Failed:      lastInt(pytestFailed, out),
		Errors:      lastInt(pytestErrors, out),
		FailedCases: collect(out, pytestVerbose, pytestShort),
	}

	switch {
	case res.Signaled:
		result.Status = types.StatusError
	case res.ExitCode == pytestOK:
		result.Status = types.StatusPass
	case res.ExitCode == pytestTestsFailed:
		result.Status = types.StatusFail
	case res.ExitCode == pytestInterrupted && containsAny(out, "ImportError", "ModuleNotFoundError", "NameError", "AttributeError"):
		// Collection failed because the implementation is absent or incomplete
		result.Status = types.StatusFail
	default:
		result.Status = types.StatusError
	}
	return result, nil
}

var (
	jestSummary = regexp.MustCompile(`(?m)^Tests:\s+(.*)$`)
	jestPassed  = regexp.MustCompile(`(\d+) passed`)
	jestFailed  = regexp.MustCompile(`(\d+) failed`)
	jestCase    = regexp.MustCompile(`(?m)^\s*● (.+)$`)
)

func classifyJest(res CommandResult) (*types.ExecutionResult, error) {
	out := res.Output
	if containsAny(out, "could not determine executable to run", "jest: not found", "command not found: jest") {
		return nil, &Error{Kind: ToolchainMissing, Output: out}
	}

	result := &types.ExecutionResult{}
	if m := jestSummary.FindAllStringSubmatch(out, -1); len(m) > 0 {
		line := m[len(m)-1][1]
		result.Passed = lastInt(jestPassed, line)
		result.Failed = lastInt(jestFailed, line)
	}
	for _, name := range collect(out, jestCase) {
		if name == "Test suite failed to run" {
			result.Errors++
			continue
		}
		result.FailedCases = append(result.FailedCases, name)
	}

	switch {
	case res.Signaled:
		result.Status = types.StatusError
	case res.ExitCode == 0:
		result.Status = types.StatusPass
	case containsAny(out, "No tests found"):
		result.Status = types.StatusError
	case result.Failed > 0 || containsAny(out, "Cannot find module", "is not a function", "is not defined"):
		result.Status = types.StatusFail
	default:
		result.Status = types.StatusError
	}
	return result, nil
}

var (
	mavenSummary = regexp.MustCompile(`Tests run:\s*(\d+),\s*Failures:\s*(\d+),\s*Errors:\s*(\d+)`)
	mavenCase    = regexp.MustCompile(`(?m)^\[ERROR\]\s+(\w+Test\.\w+)[:(]`)
)

func classifyMaven(res CommandResult) (*types.ExecutionResult, error) {
	out := res.Output
	result := &types.ExecutionResult{FailedCases: collect(out, mavenCase)}

	if m := mavenSummary.FindAllStringSubmatch(out, -1); len(m) > 0 {
		last := m[len(m)-1]
		total, _ := strconv.Atoi(last[1])
		result.Failed, _ = strconv.Atoi(last[2])
		result.Errors, _ = strconv.Atoi(last[3])
		result.Passed = total - result.Failed - result.Errors
		if result.Passed < 0 {
			result.Passed = 0
		}
	}

	switch {
	case res.Signaled:
		result.Status = types.StatusError
	case res.ExitCode == 0:
		result.Status = types.StatusPass
	case containsAny(out, "No tests were executed", "No tests matching pattern"):
		result.Status = types.StatusError
	case containsAny(out, "cannot find symbol", "There are test failures") || result.Failed > 0 || result.Errors > 0:
		// A missing class under test surfaces as a test compilation error
		result.Status = types.StatusFail
	default:
		result.Status = types.StatusError
	}
	return result, nil
}
