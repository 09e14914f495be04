package approval

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineDiff is a line-level change between two artifact versions
type LineDiff struct {
	Op   diffmatchpatch.Operation
	Line string
}

// DiffLines compares old and new line by line
func DiffLines(oldText, newText string) []LineDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []LineDiff
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			out = append(out, LineDiff{Op: d.Type, Line: line})
		}
	}
	return out
}

// DiffStats counts added and removed lines
func DiffStats(diffs []LineDiff) (added, removed int) {
	for _, d := range diffs {
		switch d.Op {
		case diffmatchpatch.DiffInsert:
			added++
		case diffmatchpatch.DiffDelete:
			removed++
		}
	}
	return added, removed
}

// contextLines is how many unchanged lines are kept around a change
const contextLines = 2

// WriteDiff prints a coloured unified-style diff, eliding long unchanged runs
func WriteDiff(w io.Writer, oldText, newText string) {
	diffs := DiffLines(oldText, newText)
	added, removed := DiffStats(diffs)
	if added == 0 && removed == 0 {
		fmt.Fprintln(w, "(no changes from the previous attempt)")
		return
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)

	keep := make([]bool, len(diffs))
	for i, d := range diffs {
		if d.Op == diffmatchpatch.DiffEqual {
			continue
		}
		for j := i - contextLines; j <= i+contextLines; j++ {
			if j >= 0 && j < len(diffs) {
				keep[j] = true
			}
		}
	}

	fmt.Fprintf(w, "%s %s\n", green.Sprintf("+%d", added), red.Sprintf("-%d", removed))
	skipped := false
	for i, d := range diffs {
		if !keep[i] {
			if !skipped {
				faint.Fprintln(w, "  ...")
				skipped = true
			}
			continue
		}
		skipped = false
		switch d.Op {
		case diffmatchpatch.DiffInsert:
			green.Fprintf(w, "+ %s\n", d.Line)
		case diffmatchpatch.DiffDelete:
			red.Fprintf(w, "- %s\n", d.Line)
		default:
			fmt.Fprintf(w, "  %s\n", d.Line)
		}
	}
}
