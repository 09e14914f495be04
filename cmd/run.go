package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alantheprice/proven/pkg/approval"
	"github.com/alantheprice/proven/pkg/config"
	"github.com/alantheprice/proven/pkg/events"
	"github.com/alantheprice/proven/pkg/execution"
	"github.com/alantheprice/proven/pkg/generation"
	"github.com/alantheprice/proven/pkg/prompts"
	"github.com/alantheprice/proven/pkg/providers"
	"github.com/alantheprice/proven/pkg/tdd"
	"github.com/alantheprice/proven/pkg/types"
	"github.com/alantheprice/proven/pkg/utils"
	"github.com/alantheprice/proven/pkg/webui"
	"github.com/alantheprice/proven/pkg/workspace"
)

// runFlags are the options shared by generate and the interactive session
type runFlags struct {
	name           string
	testDir        string
	sourceDir      string
	yes            bool
	serve          string
	remoteApproval bool
	provider       string
	model          string
	framework      string
	maxRetries     int
	timeout        time.Duration
}

var (
	rootFlags     = &runFlags{}
	generateFlags = &runFlags{}
)

// serveDefault marks --serve given without an address
const serveDefault = "config"

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.name, "name", "n", "", "Logical name of the unit (derived from the description when empty)")
	fs.StringVarP(&f.testDir, "test-dir", "t", "", "Directory for the generated tests")
	fs.StringVarP(&f.sourceDir, "source-dir", "s", "", "Directory for the generated implementation")
	fs.BoolVarP(&f.yes, "yes", "y", false, "Accept every generated artifact without review")
	fs.StringVar(&f.serve, "serve", "", "Stream run events over a websocket on this address")
	fs.Lookup("serve").NoOptDefVal = serveDefault
	fs.BoolVar(&f.remoteApproval, "remote-approval", false, "Accept approval decisions from websocket clients")
	fs.StringVar(&f.provider, "provider", "", "Generation provider (anthropic, openai, gemini, ollama)")
	fs.StringVar(&f.model, "model", "", "Model name for the provider")
	fs.StringVar(&f.framework, "framework", "", "Test framework (pytest, jest, maven)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "Implementation attempts before giving up")
	fs.DurationVar(&f.timeout, "timeout", 0, "Time budget for the whole run, e.g. 10m")
}

// overrides returns config values for the flags the user set
func (f *runFlags) overrides(cmd *cobra.Command) map[string]string {
	out := map[string]string{}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("provider") {
		out["provider"] = f.provider
	}
	if changed("model") {
		out["model"] = f.model
	}
	if changed("framework") {
		out["test_framework"] = f.framework
	}
	if changed("test-dir") {
		out["test_directory"] = f.testDir
	}
	if changed("source-dir") {
		out["source_directory"] = f.sourceDir
	}
	if changed("max-retries") {
		out["max_retries"] = strconv.Itoa(f.maxRetries)
	}
	if changed("timeout") {
		out["run_timeout"] = f.timeout.String()
	}
	if f.yes {
		out["auto_approve"] = "true"
	}
	if f.remoteApproval {
		out["server.remote_approval"] = "true"
	}
	if changed("serve") && f.serve != serveDefault {
		out["server.addr"] = f.serve
	}
	return out
}

// session is everything one run needs besides the task
type session struct {
	cfg   *config.Config
	serve bool
	// lines feeds console approval; nil when nobody can answer on stdin
	lines *approval.Lines
	// keyInput is the terminal for API key prompts; nil disables prompting
	keyInput *os.File
	out      io.Writer
	logger   *utils.Logger
}

func loadConfig(overrides map[string]string) (*config.Config, error) {
	cfg, err := config.Load(".", overrides)
	if err != nil {
		return nil, &exitError{code: tdd.ExitUsage, err: errors.New(prompts.ConfigLoadFailed(err))}
	}
	return cfg, nil
}

// isTerminal reports whether f is an interactive terminal
func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// newGenerator creates the configured backend, prompting on keyInput for
// a missing key. Prompted keys live only in this process.
func newGenerator(cfg *config.Config, keyInput *os.File, out io.Writer) (generation.Backend, error) {
	registry := providers.NewDefaultRegistry()
	name, ok := registry.Resolve(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %s)", cfg.Provider, strings.Join(registry.Names(), ", "))
	}
	factory, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	pc := generation.ProviderConfig{
		Name:        name,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey(name),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if name == "ollama" {
		pc.BaseURL = cfg.Ollama.BaseURL
		if pc.Model == "" {
			pc.Model = cfg.Ollama.Model
		}
	}

	if factory.RequiresAPIKey() && pc.APIKey == "" {
		envVar := providers.APIKeyEnv(name)
		if !isTerminal(keyInput) {
			return nil, fmt.Errorf("%s", prompts.APIKeyMissing(name, envVar))
		}
		fmt.Fprint(out, prompts.EnterAPIKey(name, envVar))
		key, err := term.ReadPassword(int(keyInput.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, fmt.Errorf("failed to read API key: %w", err)
		}
		pc.APIKey = strings.TrimSpace(string(key))
		if pc.APIKey == "" {
			return nil, fmt.Errorf("%s", prompts.APIKeyMissing(name, envVar))
		}
		cfg.SetAPIKey(name, pc.APIKey)
	}

	return registry.Create(pc)
}

// runTask wires the backends, gate and observers for one run and blocks
// until it finishes.
func (s *session) runTask(ctx context.Context, description, name string) (*tdd.RunState, error) {
	cfg := s.cfg
	gen, err := newGenerator(cfg, s.keyInput, s.out)
	if err != nil {
		return nil, &exitError{code: tdd.ExitUsage, err: err}
	}

	exec, err := execution.NewByName(cfg.TestFramework, execution.Options{
		Runner:  execution.NewRunner(cfg.Execution.PTY),
		Timeout: cfg.Execution.Timeout,
		WorkDir: cfg.Execution.WorkingDir,
	})
	if err != nil {
		return nil, &exitError{code: tdd.ExitUsage, err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := events.NewEventBus()
	var queue *approval.Queue
	var gate approval.Gate = approval.AutoApprove{}
	if !cfg.AutoApprove {
		queue = approval.NewQueue(1)
		gate = queue
		remoteOnly := s.serve && cfg.Server.RemoteApproval
		switch {
		case s.lines != nil:
			go approval.NewConsoleLines(s.lines, s.out).Serve(ctx, queue)
		case !remoteOnly:
			return nil, &exitError{code: tdd.ExitUsage, err: fmt.Errorf("%s", prompts.ApprovalNeedsTerminal())}
		}
	}

	if s.serve {
		srv := webui.NewServer(cfg.Server.Addr, bus, queue, cfg.Server.RemoteApproval, s.logger)
		if err := srv.Start(ctx); err != nil {
			return nil, &exitError{code: tdd.ExitUsage, err: err}
		}
		defer srv.Shutdown()
		fmt.Fprintln(s.out, prompts.EventServerListening(srv.Addr(), cfg.Server.RemoteApproval && queue != nil))
	}

	backoff := utils.NewRateLimitBackoff()
	backoff.SetOutputFunc(func(msg string) { color.New(color.FgYellow).Fprint(s.out, msg) })

	engine := tdd.NewEngine(gen, exec, gate,
		tdd.Settings{
			MaxGenerationAttempts: cfg.MaxGenerationAttempts,
			MaxRetries:            cfg.MaxRetries,
			RunTimeout:            cfg.RunTimeout,
		},
		tdd.WithLogger(s.logger),
		tdd.WithBackoff(backoff),
		tdd.WithRunLogDir(filepath.Join(workspace.StateDir, "runlogs")),
		tdd.WithObserver(newConsoleObserver(s.out, gen.Name(), gen.Model(), exec.Framework().Name, cfg.AutoApprove)),
		tdd.WithObserver(tdd.NewPublisher(bus)),
	)

	task := types.Task{
		Description: description,
		Name:        name,
		TestDir:     cfg.TestDirectory,
		SourceDir:   cfg.SourceDirectory,
	}
	return engine.Run(ctx, task), nil
}
