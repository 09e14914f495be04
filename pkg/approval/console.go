package approval

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Console resolves queue requests from line-oriented input. Empty input
// accepts; end of input abandons the request with ErrInputClosed.
type Console struct {
	lines *Lines
	out   io.Writer
}

// NewConsole creates a driver reading from in and writing to out
func NewConsole(in io.Reader, out io.Writer) *Console {
	return NewConsoleLines(NewLines(in), out)
}

// NewConsoleLines creates a driver sharing an existing line source
func NewConsoleLines(lines *Lines, out io.Writer) *Console {
	return &Console{lines: lines, out: out}
}

// Serve resolves requests from q until ctx ends or input runs out
func (c *Console) Serve(ctx context.Context, q *Queue) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-q.Requests():
			select {
			case <-req.Done():
				// Resolved remotely or abandoned before we got to it
				continue
			default:
			}
			if !c.handle(ctx, req) {
				return ErrInputClosed
			}
		}
	}
}

// readLine waits for one line. ok is false at end of input; interrupted
// is set when ctx ended or the request was resolved elsewhere.
func (c *Console) readLine(ctx context.Context, req *Request) (line string, ok, interrupted bool) {
	select {
	case <-ctx.Done():
		return "", false, true
	case <-req.Done():
		return "", false, true
	case line, ok = <-c.lines.C():
		return line, ok, false
	}
}

// handle reviews one request; it returns false once input has ended
func (c *Console) handle(ctx context.Context, req *Request) bool {
	c.show(req.Submission)

	for {
		fmt.Fprint(c.out, color.New(color.Bold).Sprint("[a]ccept / [r]eject / re[g]enerate (Enter = accept): "))
		line, ok, interrupted := c.readLine(ctx, req)
		if interrupted {
			fmt.Fprintln(c.out)
			if ctx.Err() == nil {
				fmt.Fprintln(c.out, "Resolved by another client.")
			}
			return true
		}
		if !ok {
			fmt.Fprintln(c.out)
			req.Abandon(ErrInputClosed)
			return false
		}

		action, err := ParseAction(line)
		if err != nil {
			color.New(color.FgYellow).Fprintln(c.out, err.Error())
			continue
		}

		decision := Decision{Action: action}
		if action != Accept {
			fmt.Fprint(c.out, "Note for the next attempt (optional): ")
			note, ok, interrupted := c.readLine(ctx, req)
			if interrupted {
				fmt.Fprintln(c.out)
				return true
			}
			if ok {
				decision.Note = strings.TrimSpace(note)
			}
		}
		req.Resolve(decision)
		return true
	}
}

func (c *Console) show(s Submission) {
	a := s.Artifact
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(c.out, "\n--- %s attempt %d: %s ---\n", a.Kind, a.Attempt, a.Path)

	lines := strings.Split(strings.TrimRight(a.Content, "\n"), "\n")
	width := len(fmt.Sprint(len(lines)))
	gutter := color.New(color.Faint)
	for i, line := range lines {
		gutter.Fprintf(c.out, "%*d ", width, i+1)
		fmt.Fprintln(c.out, line)
	}

	if s.Superseded != nil {
		header.Fprintf(c.out, "--- changes since attempt %d ---\n", s.Superseded.Attempt)
		WriteDiff(c.out, s.Superseded.Content, a.Content)
	}
}
