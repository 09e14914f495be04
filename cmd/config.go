package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/config"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/providers"
	"github.com/alantheprice/proven/pkg/tdd"
)

var configSetProject bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, string(data))

		fmt.Fprintln(out, "\nAPI keys:")
		for _, name := range providers.NewDefaultRegistry().Names() {
			if providers.APIKeyEnv(name) == "" {
				continue
			}
			fmt.Fprintln(out, prompts.KeyStatus(name, cfg.APIKey(name) != ""))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key in the global (or, with --project, the project) config file",
	Long: `Sets one dotted key, e.g. max_retries, execution.timeout or ollama.base_url.
API keys only accept an environment reference such as ${ANTHROPIC_API_KEY}.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		if configSetProject {
			path = filepath.Join(".", config.ProjectFile)
			err = config.SetInFile(path, args[0], args[1])
		} else {
			path, err = config.SetGlobal(args[0], args[1])
		}
		if err != nil {
			return &exitError{code: tdd.ExitUsage, err: err}
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompts.ConfigSaved(path))
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable keys and their environment overrides",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, k := range config.Keys() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-26s %s\n", k, config.EnvName(k))
		}
	},
}

func init() {
	configSetCmd.Flags().BoolVar(&configSetProject, "project", false, "Write to ./.proven.yaml instead of the global file")
	configCmd.AddCommand(configShowCmd, configSetCmd, configKeysCmd)
}
