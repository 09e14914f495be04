package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/types"
)

func pytestSettings(t *testing.T) Settings {
	t.Helper()
	f, err := execution.Lookup("pytest")
	require.NoError(t, err)
	return Settings{Framework: f, Target: f.Target("even", "tests", "src")}
}

var task = types.Task{Description: "write a function returning true for even integers", Name: "even"}

func TestComposeRedFirstAttempt(t *testing.T) {
	p, err := Compose(Red, task, pytestSettings(t), nil, nil)
	require.NoError(t, err)

	assert.Contains(t, p.System, "Use the pytest testing framework")
	assert.Contains(t, p.User, task.Description)
	assert.Contains(t, p.User, "test_even.py")
	assert.Contains(t, p.User, "from even import")
	assert.NotContains(t, p.User, "Feedback")
}

func TestComposeRedRetryCarriesVerificationFeedback(t *testing.T) {
	prior := []types.Artifact{{Kind: types.KindTest, Attempt: 1, Content: "def test_x():\n    assert True\n"}}
	feedback := []types.Feedback{{
		Source:  types.FromVerification,
		Attempt: 1,
		Result:  &types.ExecutionResult{Status: types.StatusPass, Passed: 1, Output: "1 passed in 0.01s"},
	}}

	p, err := Compose(Red, task, pytestSettings(t), prior, feedback)
	require.NoError(t, err)
	assert.Contains(t, p.User, "previous tests (attempt #1) were accepted but did not fail without an implementation")
	assert.NotContains(t, p.User, "turned down")
	assert.Contains(t, p.User, "assert True")
	assert.Contains(t, p.User, "did not fail when run without any implementation")
	assert.Contains(t, p.User, "passed vacuously")
	assert.Contains(t, p.User, "1 passed in 0.01s")
}

func TestComposeRedReviewerNotes(t *testing.T) {
	feedback := []types.Feedback{
		{Source: types.FromReviewer, Attempt: 1, Note: "cover negative numbers"},
		{Source: types.FromReviewer, Attempt: 2},
	}
	p, err := Compose(Red, task, pytestSettings(t), nil, feedback)
	require.NoError(t, err)
	assert.Contains(t, p.User, "Reviewer on attempt 1: cover negative numbers")
	assert.Contains(t, p.User, "Attempt 2 was turned down by the reviewer without a comment")
}

func TestComposeRedRetryAfterRejection(t *testing.T) {
	prior := []types.Artifact{{Kind: types.KindTest, Attempt: 2, Content: "def test_x():\n    assert is_even(2)\n"}}
	feedback := []types.Feedback{{Source: types.FromReviewer, Attempt: 2, Note: "cover zero"}}

	p, err := Compose(Red, task, pytestSettings(t), prior, feedback)
	require.NoError(t, err)
	assert.Contains(t, p.User, "previous attempt (#2) was turned down by the reviewer")
	assert.NotContains(t, p.User, "were accepted")
}

func TestComposeGreenEmbedsAcceptedTests(t *testing.T) {
	prior := []types.Artifact{
		{Kind: types.KindTest, Attempt: 1, Content: "old tests"},
		{Kind: types.KindTest, Attempt: 2, Content: "from even import is_even\n\ndef test_two():\n    assert is_even(2)\n"},
	}
	p, err := Compose(Green, task, pytestSettings(t), prior, nil)
	require.NoError(t, err)

	assert.Contains(t, p.System, "GREEN phase")
	assert.Contains(t, p.User, "def test_two():\n    assert is_even(2)")
	assert.NotContains(t, p.User, "old tests")
	assert.Contains(t, p.User, "even.py")
}

func TestComposeGreenWithoutTestsFails(t *testing.T) {
	_, err := Compose(Green, task, pytestSettings(t), nil, nil)
	assert.Error(t, err)
}

func TestComposeGreenRetryIsStrictlyMoreInformed(t *testing.T) {
	s := pytestSettings(t)
	tests := types.Artifact{Kind: types.KindTest, Attempt: 1, Content: "def test_two(): ..."}
	impl1 := types.Artifact{Kind: types.KindImplementation, Attempt: 1, Content: "def is_even(n):\n    return True\n"}
	impl2 := types.Artifact{Kind: types.KindImplementation, Attempt: 2, Content: "def is_even(n):\n    return n == 2\n"}

	fb1 := types.Feedback{Source: types.FromExecution, Attempt: 1, Result: &types.ExecutionResult{
		Status: types.StatusFail, Passed: 1, Failed: 1, FailedCases: []string{"test_three"}, Output: "FIRST RUN OUTPUT"}}
	fb2 := types.Feedback{Source: types.FromExecution, Attempt: 2, Result: &types.ExecutionResult{
		Status: types.StatusFail, Failed: 1, FailedCases: []string{"test_negative"}, Output: "SECOND RUN OUTPUT", TimedOut: true}}

	first, err := Compose(Green, task, s, []types.Artifact{tests, impl1}, []types.Feedback{fb1})
	require.NoError(t, err)
	second, err := Compose(Green, task, s, []types.Artifact{tests, impl1, impl2}, []types.Feedback{fb1, fb2})
	require.NoError(t, err)

	assert.Contains(t, first.User, "FIRST RUN OUTPUT")
	assert.Contains(t, first.User, "return True")

	// Summaries of every attempt, the latest output and the latest implementation
	assert.Contains(t, second.User, "failing: test_three")
	assert.Contains(t, second.User, "failing: test_negative")
	assert.Contains(t, second.User, "SECOND RUN OUTPUT")
	assert.NotContains(t, second.User, "FIRST RUN OUTPUT")
	assert.Contains(t, second.User, "return n == 2")
	assert.Contains(t, second.User, "exceeded the execution time limit")
}

func TestComposeTruncatesLongDiagnostics(t *testing.T) {
	long := strings.Repeat("noise line\n", 2000) + "THE REAL ERROR"
	fb := types.Feedback{Source: types.FromExecution, Attempt: 1, Result: &types.ExecutionResult{Status: types.StatusError, Output: long}}
	p, err := Compose(Green, task, pytestSettings(t), []types.Artifact{{Kind: types.KindTest, Content: "t"}}, []types.Feedback{fb})
	require.NoError(t, err)

	assert.Contains(t, p.User, "THE REAL ERROR")
	assert.Less(t, len(p.User), len(long))
}

func TestComposeIsPure(t *testing.T) {
	s := pytestSettings(t)
	prior := []types.Artifact{{Kind: types.KindTest, Attempt: 1, Content: "t"}}
	a, _ := Compose(Green, task, s, prior, nil)
	b, _ := Compose(Green, task, s, prior, nil)
	assert.Equal(t, a, b)

	_, err := Compose(Phase("refactor"), task, s, nil, nil)
	assert.Error(t, err)
}
