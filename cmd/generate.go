package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/approval"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/tdd"
	"github.com/alantheprice/proven/pkg/utils"
)

var generateCmd = &cobra.Command{
	Use:   "generate [description]",
	Short: "Build a behaviour test-first from a description",
	Long: `Generates tests for the description, checks that they fail without an
implementation, then generates an implementation and retries until the tests
pass. Each generated file is shown for review unless --yes is given.

The exit status tells how the run ended: 0 done, 2 rejected, 3 tests never
failed, 4 retries exhausted, 5 generation error, 6 toolchain missing,
7 time budget exceeded, 8 write error, 9 test runner error, 130 cancelled.`,
	Example: `  proven generate "parse ISO-8601 durations" --name duration
  proven generate -y --framework jest "slugify a title"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		description := strings.TrimSpace(strings.Join(args, " "))
		if description == "" {
			return &exitError{code: tdd.ExitUsage, err: fmt.Errorf("%s", prompts.DescriptionRequired())}
		}

		cfg, err := loadConfig(generateFlags.overrides(cmd))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := &session{
			cfg:    cfg,
			serve:  cmd.Flags().Changed("serve"),
			out:    cmd.OutOrStdout(),
			logger: utils.GetLogger(),
		}
		if isTerminal(os.Stdin) {
			s.keyInput = os.Stdin
			s.lines = approval.NewLines(os.Stdin)
		}
		return finishRun(s.runTask(ctx, description, generateFlags.name))
	},
}

func init() {
	generateFlags.register(generateCmd)
}

// finishRun turns a run's outcome into the command's error
func finishRun(st *tdd.RunState, err error) error {
	if err != nil {
		return err
	}
	if code := st.ExitCode(); code != tdd.ExitDone {
		return &exitError{code: code}
	}
	return nil
}

// background is used when a command runs without a cobra context
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
