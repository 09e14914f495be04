package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/tdd"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "proven",
	Short: "Test-first code generation",
	Long: `proven turns a one-line description into working code the test-first way:
it generates tests, shows they fail, then generates an implementation and
retries until those tests pass.

Available commands:
  generate - Build a behaviour test-first from a description
  init     - Write a project .proven.yaml
  config   - Show or change settings
  version  - Print version information

Run without a command for an interactive session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd)
	},
}

// exitError carries a process exit status out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// ExitCode maps an Execute error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return tdd.ExitDone
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return tdd.ExitUsage
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	err := rootCmd.Execute()
	var ee *exitError
	if err != nil && !(errors.As(err, &ee) && ee.err == nil) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootFlags.register(rootCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}
