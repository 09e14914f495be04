package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alantheprice/proven/pkg/approval"
	"github.com/alantheprice/proven/pkg/config"
	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/providers"
	"github.com/alantheprice/proven/pkg/tdd"
	"github.com/alantheprice/proven/pkg/utils"
)

// repl is the interactive session: slash commands adjust settings for the
// session, anything else is run as a description.
type repl struct {
	lines     *approval.Lines
	out       io.Writer
	overrides map[string]string
	// keys holds API keys typed at startup, by canonical provider
	keys map[string]string
	load func(overrides map[string]string) (*config.Config, error)
	run  func(ctx context.Context, cfg *config.Config, description string) (*tdd.RunState, error)
}

func runInteractive(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	r := &repl{
		out:       out,
		overrides: rootFlags.overrides(cmd),
		keys:      map[string]string{},
		load:      loadConfig,
	}

	cfg, err := r.config()
	if err != nil {
		return err
	}

	// Prompt for a missing key before stdin is handed to the line reader
	var keyInput *os.File
	if isTerminal(os.Stdin) {
		keyInput = os.Stdin
	}
	if gen, err := newGenerator(cfg, keyInput, out); err == nil {
		if key := cfg.APIKey(gen.Name()); key != "" {
			r.keys[gen.Name()] = key
		}
	} else {
		color.New(color.FgYellow).Fprintln(out, err.Error())
	}

	r.lines = approval.NewLines(os.Stdin)
	serve := cmd.Flags().Changed("serve")
	r.run = func(ctx context.Context, cfg *config.Config, description string) (*tdd.RunState, error) {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		s := &session{cfg: cfg, serve: serve, lines: r.lines, out: out, logger: utils.GetLogger()}
		return s.runTask(ctx, description, rootFlags.name)
	}

	fmt.Fprintln(out, prompts.InteractiveWelcome(cfg.Provider, cfg.TestFramework))
	return r.loop(background(cmd))
}

// config loads the settings with session overrides and typed keys
func (r *repl) config() (*config.Config, error) {
	cfg, err := r.load(r.overrides)
	if err != nil {
		return nil, err
	}
	for provider, key := range r.keys {
		if cfg.APIKey(provider) == "" {
			cfg.SetAPIKey(provider, key)
		}
	}
	return cfg, nil
}

func (r *repl) loop(ctx context.Context) error {
	prompt := color.New(color.FgGreen, color.Bold).Sprint("proven> ")
	for {
		fmt.Fprint(r.out, prompt)
		line, ok, err := r.lines.Next(ctx)
		if err != nil {
			return nil
		}
		if !ok {
			fmt.Fprintln(r.out)
			return nil
		}
		if quit := r.handle(ctx, strings.TrimSpace(line)); quit {
			return nil
		}
	}
}

// handle processes one input line and reports whether to leave
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.build(ctx, line)
		return false
	}

	fields := strings.Fields(line)
	command, arg := fields[0], ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch command {
	case "/quit", "/exit", "/q":
		fmt.Fprintln(r.out, prompts.Goodbye())
		return true

	case "/help", "/?":
		fmt.Fprintln(r.out, prompts.InteractiveHelp(providers.NewDefaultRegistry().Names(), execution.Names()))

	case "/config":
		cfg, err := r.config()
		if err != nil {
			r.fail(err)
			return false
		}
		data, err := config.Marshal(cfg.Redacted())
		if err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprint(r.out, string(data))

	case "/provider":
		name, ok := providers.NewDefaultRegistry().Resolve(arg)
		if !ok {
			r.fail(fmt.Errorf("unknown provider %q (available: %s)", arg, strings.Join(providers.NewDefaultRegistry().Names(), ", ")))
			return false
		}
		r.overrides["provider"] = name
		// A model name belongs to the provider it was chosen for
		delete(r.overrides, "model")
		fmt.Fprintln(r.out, prompts.SettingChanged("provider", name))

	case "/framework":
		f, err := execution.Lookup(arg)
		if err != nil {
			r.fail(err)
			return false
		}
		r.overrides["test_framework"] = f.Name
		fmt.Fprintln(r.out, prompts.SettingChanged("framework", f.Name))

	default:
		fmt.Fprintln(r.out, prompts.UnknownCommand(command))
	}
	return false
}

func (r *repl) build(ctx context.Context, description string) {
	cfg, err := r.config()
	if err != nil {
		r.fail(err)
		return
	}
	if _, err := r.run(ctx, cfg, description); err != nil {
		r.fail(err)
	}
}

func (r *repl) fail(err error) {
	color.New(color.FgRed).Fprintln(r.out, "Error:", err)
}
