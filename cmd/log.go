package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/utils"
	"github.com/alantheprice/proven/pkg/workspace"
)

var (
	rawLog   bool
	logLimit int
)

var logCmd = &cobra.Command{
	Use:   "log [run-id]",
	Short: "List recent runs or print the events of one run",
	Long: `Without arguments, lists the most recent runs recorded in .proven/runlogs.
With a run id (or a unique prefix), prints that run's events.
Use --raw-log to print the end of .proven/workspace.log instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if rawLog {
			return displayVerboseLog(out, utils.LogFile, logLimit)
		}
		dir := filepath.Join(workspace.StateDir, "runlogs")
		if len(args) == 1 {
			return printRun(out, dir, args[0])
		}
		return listRuns(out, dir, logLimit)
	},
}

func init() {
	logCmd.Flags().BoolVar(&rawLog, "raw-log", false, "Display the end of the workspace log")
	logCmd.Flags().IntVar(&logLimit, "limit", 20, "Number of runs (or log lines with --raw-log) to show")
	rootCmd.AddCommand(logCmd)
}

// runSummary is what the run listing shows per run log file
type runSummary struct {
	path        string
	runID       string
	started     string
	description string
	outcome     string
	reason      string
}

func readRunLog(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var e map[string]any
		if json.Unmarshal(scanner.Bytes(), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, scanner.Err()
}

func summarize(path string) (runSummary, error) {
	entries, err := readRunLog(path)
	if err != nil {
		return runSummary{}, err
	}
	s := runSummary{path: path, outcome: "running"}
	for _, e := range entries {
		str := func(k string) string { v, _ := e[k].(string); return v }
		switch str("type") {
		case "run_started":
			s.runID = str("run_id")
			s.started = str("ts")
			s.description = str("description")
		case "run_finished":
			s.outcome = str("outcome")
			s.reason = str("reason")
		}
	}
	return s, nil
}

func runLogFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "run-*.jsonl"))
	if err != nil {
		return nil, err
	}
	// names start with a timestamp, so lexical order is chronological
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}

func listRuns(out io.Writer, dir string, limit int) error {
	files, err := runLogFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No runs recorded in %s yet.\n", dir)
		return nil
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	for _, f := range files {
		s, err := summarize(f)
		if err != nil {
			continue
		}
		outcome := s.outcome
		switch s.outcome {
		case "done":
			outcome = color.GreenString("done")
		case "aborted":
			outcome = color.RedString("aborted (%s)", s.reason)
		}
		fmt.Fprintf(out, "%s  %s  %s  %s\n", shortID(s.runID), s.started, outcome, s.description)
	}
	return nil
}

func printRun(out io.Writer, dir, id string) error {
	files, err := runLogFiles(dir)
	if err != nil {
		return err
	}
	var found []string
	for _, f := range files {
		if strings.Contains(filepath.Base(f), "-"+id) {
			found = append(found, f)
		}
	}
	switch len(found) {
	case 0:
		return fmt.Errorf("no run matching %q in %s", id, dir)
	case 1:
	default:
		return fmt.Errorf("%q matches %d runs; use a longer prefix", id, len(found))
	}

	entries, err := readRunLog(found[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		ts, _ := e["ts"].(string)
		typ, _ := e["type"].(string)
		delete(e, "ts")
		delete(e, "type")
		delete(e, "run_id")
		fields, _ := json.Marshal(e)
		fmt.Fprintf(out, "%s %s %s\n", ts, color.CyanString("%-20s", typ), fields)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// displayVerboseLog prints the last limit lines of the workspace log
func displayVerboseLog(out io.Writer, path string, limit int) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		fmt.Fprintf(out, "Log file not found at %s. No log entries yet.\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}
	if len(lines) == 0 {
		fmt.Fprintln(out, "Log file is empty.")
		return nil
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}
