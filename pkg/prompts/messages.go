package prompts

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// --- Config Prompts ---

func ConfigLoadFailed(err error) string {
	return fmt.Sprintf("Failed to load configuration: %v", err)
}

func ConfigSaved(path string) string {
	return fmt.Sprintf("Config saved to %s", path)
}

func ConfigAlreadyExists(path string) string {
	return fmt.Sprintf("%s already exists; pass --force to overwrite it.", path)
}

func GitignoreUpdated(path string) string {
	return fmt.Sprintf("Added .proven/ to %s", path)
}

func EnterAPIKey(provider, envVar string) string {
	return fmt.Sprintf("No API key found for %s (set %s to skip this prompt).\nEnter API key (not saved): ", provider, envVar)
}

func APIKeyMissing(provider, envVar string) string {
	return fmt.Sprintf("No API key configured for %s. Set %s or reference it from the config file as ${%s}.", provider, envVar, envVar)
}

func KeyStatus(provider string, set bool) string {
	if set {
		return fmt.Sprintf("  %-10s %s", provider, color.GreenString("set"))
	}
	return fmt.Sprintf("  %-10s %s", provider, color.YellowString("missing"))
}

// --- Run Messages ---

func DescriptionRequired() string {
	return "A description of the behaviour to build is required, e.g. proven generate \"add two numbers\"."
}

func ApprovalNeedsTerminal() string {
	return "Reviewing artifacts needs an interactive terminal. Pass --yes to accept them automatically, or --serve with --remote-approval to review from a websocket client."
}

func RunStarting(name, testPath, sourcePath, provider, model, framework string) string {
	return fmt.Sprintf("Building %s with %s/%s (%s)\n  tests:          %s\n  implementation: %s",
		color.New(color.Bold).Sprint(name), provider, model, framework, testPath, sourcePath)
}

func EventServerListening(addr string, remote bool) string {
	if remote {
		return fmt.Sprintf("Streaming events on ws://%s/ws (remote approval enabled)", addr)
	}
	return fmt.Sprintf("Streaming events on ws://%s/ws", addr)
}

func GeneratedArtifact(kind, path string, attempt, lines int) string {
	return fmt.Sprintf("Generated %s #%d for %s (%d lines)", kind, attempt, path, lines)
}

func ExecutionFinished(withImplementation bool, summary string, d time.Duration) string {
	label := "Tests without implementation"
	if withImplementation {
		label = "Tests with implementation"
	}
	return fmt.Sprintf("%s: %s in %s", label, summary, d.Round(time.Millisecond))
}

func PhaseChanged(from, to, note string) string {
	if note == "" {
		return color.CyanString("[%s -> %s]", from, to)
	}
	return fmt.Sprintf("%s %s", color.CyanString("[%s -> %s]", from, to), note)
}

func RunSucceeded(summary string, d time.Duration) string {
	return color.GreenString("✓ %s (%s)", summary, d.Round(time.Second))
}

func RunAborted(summary string, code int) string {
	return color.RedString("✗ %s [exit %d]", summary, code)
}

func DiagnosticHeader() string {
	return "Last test output:"
}

// --- Interactive Messages ---

func InteractiveWelcome(provider, framework string) string {
	return fmt.Sprintf("proven interactive mode (provider: %s, framework: %s)\nDescribe a behaviour to build it test-first, or /help for commands.", provider, framework)
}

func InteractiveHelp(providers, frameworks []string) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("  /help                 show this help\n")
	b.WriteString("  /config               show the active configuration\n")
	fmt.Fprintf(&b, "  /provider <name>      switch provider (%s)\n", strings.Join(providers, ", "))
	fmt.Fprintf(&b, "  /framework <name>     switch test framework (%s)\n", strings.Join(frameworks, ", "))
	b.WriteString("  /quit                 leave\n")
	b.WriteString("Anything else is a description to build.")
	return b.String()
}

func UnknownCommand(cmd string) string {
	return fmt.Sprintf("Unknown command %s; type /help for the list.", cmd)
}

func SettingChanged(key, value string) string {
	return fmt.Sprintf("%s set to %s for this session", key, value)
}

func Goodbye() string {
	return "Bye."
}
