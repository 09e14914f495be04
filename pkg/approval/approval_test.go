package approval

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/proven/pkg/types"
)

func init() {
	color.NoColor = true
}

func submission(content string, attempt int) Submission {
	return Submission{Artifact: types.Artifact{Kind: types.KindTest, Path: "tests/test_even.py", Content: content, Attempt: attempt}}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"": Accept, "A": Accept, "yes": Accept, "r": Reject, "reject": Reject, " g ": Regenerate, "regen": Regenerate} {
		got, err := ParseAction(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseAction("maybe")
	assert.Error(t, err)
}

func TestAutoApprove(t *testing.T) {
	d, err := AutoApprove{}.Review(context.Background(), submission("x", 1))
	require.NoError(t, err)
	assert.Equal(t, Accept, d.Action)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = AutoApprove{}.Review(ctx, submission("x", 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueResolvedByDriver(t *testing.T) {
	q := NewQueue(1)
	go func() {
		req := <-q.Requests()
		assert.Equal(t, "x", req.Submission.Artifact.Content)
		assert.True(t, req.Resolve(Decision{Action: Regenerate, Note: "more edge cases"}))
		assert.False(t, req.Resolve(Decision{Action: Accept}), "second resolve is ignored")
	}()

	d, err := q.Review(context.Background(), submission("x", 1))
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: Regenerate, Note: "more edge cases"}, d)
	assert.Empty(t, q.Pending())
}

func TestQueueResolvedByID(t *testing.T) {
	q := NewQueue(0)
	ids := make(chan string, 1)
	q.OnRequest(func(r *Request) { ids <- r.ID })

	go func() {
		id := <-ids
		assert.Len(t, q.Pending(), 1)
		assert.NoError(t, q.Resolve(id, Decision{Action: Reject, Note: "wrong API"}))
		assert.Error(t, q.Resolve(id, Decision{Action: Accept}))
	}()

	d, err := q.Review(context.Background(), submission("x", 1))
	require.NoError(t, err)
	assert.Equal(t, Reject, d.Action)
	assert.Error(t, q.Resolve("unknown", Decision{}))
}

func TestQueueCancelledWhileWaiting(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := q.Review(ctx, submission("x", 1))
	assert.ErrorIs(t, err, context.Canceled)

	req := <-q.Requests()
	select {
	case <-req.Done():
	default:
		t.Fatal("abandoned request should be marked done")
	}
	assert.ErrorIs(t, req.Err(), context.Canceled)
	assert.Empty(t, q.Pending())
}

func runConsole(t *testing.T, input string, s Submission) (Decision, string) {
	t.Helper()
	q := NewQueue(1)
	var out bytes.Buffer
	console := NewConsole(strings.NewReader(input), &out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan struct{})
	go func() {
		console.Serve(ctx, q)
		close(served)
	}()

	d, err := q.Review(ctx, s)
	require.NoError(t, err)
	cancel()
	<-served
	return d, out.String()
}

func TestConsoleEmptyLineAccepts(t *testing.T) {
	d, out := runConsole(t, "\n", submission("def test_two():\n    assert is_even(2)\n", 1))
	assert.Equal(t, Accept, d.Action)
	assert.Contains(t, out, "1 def test_two():")
	assert.Contains(t, out, "test attempt 1: tests/test_even.py")
}

func TestConsoleRejectWithNote(t *testing.T) {
	d, _ := runConsole(t, "bogus\nr\nuse pytest.raises\n", submission("x", 1))
	assert.Equal(t, Decision{Action: Reject, Note: "use pytest.raises"}, d)
}

func TestConsoleEOFAbandonsReview(t *testing.T) {
	q := NewQueue(1)
	var out bytes.Buffer
	served := make(chan error, 1)
	go func() { served <- NewConsole(strings.NewReader(""), &out).Serve(context.Background(), q) }()

	_, err := q.Review(context.Background(), submission("x", 1))
	assert.ErrorIs(t, err, ErrInputClosed)
	assert.ErrorIs(t, <-served, ErrInputClosed)
}

func TestQueueAbandonedRequest(t *testing.T) {
	q := NewQueue(1)
	go func() {
		req := <-q.Requests()
		assert.True(t, req.Abandon(ErrInputClosed))
		assert.False(t, req.Resolve(Decision{Action: Accept}), "abandoned request cannot be resolved")
		assert.ErrorIs(t, req.Err(), ErrInputClosed)
	}()

	_, err := q.Review(context.Background(), submission("x", 1))
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestConsoleShowsDiffAgainstSuperseded(t *testing.T) {
	s := submission("a = 1\nb = 3\n", 2)
	s.Superseded = &types.Artifact{Content: "a = 1\nb = 2\n", Attempt: 1}

	d, out := runConsole(t, "a\n", s)
	assert.Equal(t, Accept, d.Action)
	assert.Contains(t, out, "changes since attempt 1")
	assert.Contains(t, out, "- b = 2")
	assert.Contains(t, out, "+ b = 3")
}

func TestDiffStatsAndElision(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 20; i++ {
		oldLines = append(oldLines, "same")
		newLines = append(newLines, "same")
	}
	newLines[10] = "changed"

	diffs := DiffLines(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	added, removed := DiffStats(diffs)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	var out bytes.Buffer
	WriteDiff(&out, strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	assert.Contains(t, out.String(), "  ...")
	assert.Contains(t, out.String(), "+ changed")

	out.Reset()
	WriteDiff(&out, "x\n", "x\n")
	assert.Contains(t, out.String(), "no changes")
}

func TestLinesSharedBetweenConsumers(t *testing.T) {
	lines := NewLines(strings.NewReader("first\nr\nbad tests\n"))
	ctx := context.Background()

	line, ok, err := lines.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	// A console built on the same source sees the following lines
	q := NewQueue(1)
	var out bytes.Buffer
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go NewConsoleLines(lines, &out).Serve(cctx, q)

	d, err := q.Review(ctx, Submission{Artifact: types.Artifact{Kind: types.KindTest, Content: "x\n", Attempt: 1}})
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: Reject, Note: "bad tests"}, d)

	_, ok, err = lines.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinesNextHonoursContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewLines(pr).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
