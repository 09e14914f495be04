package approval

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// Lines reads an input stream on one goroutine and hands its lines to
// whichever consumer asks next, so a prompt loop and the console driver
// can share stdin.
type Lines struct {
	in   io.Reader
	once sync.Once
	ch   chan string
}

// NewLines wraps in; reading starts on first use
func NewLines(in io.Reader) *Lines {
	return &Lines{in: in, ch: make(chan string)}
}

// C returns the channel of lines, closed at end of input
func (l *Lines) C() <-chan string {
	l.once.Do(func() {
		go func() {
			scanner := bufio.NewScanner(l.in)
			for scanner.Scan() {
				l.ch <- scanner.Text()
			}
			close(l.ch)
		}()
	})
	return l.ch
}

// Next waits for a line. ok is false at end of input.
func (l *Lines) Next(ctx context.Context) (line string, ok bool, err error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case line, ok = <-l.C():
		return line, ok, nil
	}
}
