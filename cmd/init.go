package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/config"
	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/tdd"
	"github.com/alantheprice/proven/pkg/workspace"
)

var (
	initForce     bool
	initProvider  string
	initFramework string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a project .proven.yaml in the current directory",
	Long: `Writes .proven.yaml with the merged settings a team can share (provider,
framework, directories, caps). API keys are never written. When a .gitignore
exists, .proven/ is added to it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initProject(cmd, ".")
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing .proven.yaml")
	initCmd.Flags().StringVar(&initProvider, "provider", "", "Generation provider to record")
	initCmd.Flags().StringVar(&initFramework, "framework", "", "Test framework to record")
}

func initProject(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()
	path := filepath.Join(dir, config.ProjectFile)
	if _, err := os.Stat(path); err == nil && !initForce {
		return &exitError{code: tdd.ExitUsage, err: fmt.Errorf("%s", prompts.ConfigAlreadyExists(path))}
	}

	overrides := map[string]string{}
	if initProvider != "" {
		overrides["provider"] = initProvider
	}
	if initFramework != "" {
		overrides["test_framework"] = initFramework
	}
	cfg, err := config.Load(dir, overrides)
	if err != nil {
		return &exitError{code: tdd.ExitUsage, err: err}
	}

	// Record concrete directories so the project file is self-describing
	if f, err := execution.Lookup(cfg.TestFramework); err == nil {
		if cfg.TestDirectory == "" {
			cfg.TestDirectory = f.DefaultTestDir
		}
		if cfg.SourceDirectory == "" {
			cfg.SourceDirectory = f.DefaultSourceDir
		}
	}

	written, err := config.WriteProject(dir, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, prompts.ConfigSaved(written))

	changed, err := workspace.EnsureStateDirIgnored(dir)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintln(out, prompts.GitignoreUpdated(filepath.Join(dir, ".gitignore")))
	}
	return nil
}
