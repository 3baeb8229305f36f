package cli

import (
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Output      string `help:"Output format" default:"auto" enum:"json,plain,rich,yaml,auto" short:"o" env:"KSTORE_OUTPUT"`
	ConfigFile  string `help:"Config file path" name:"config-file" type:"path" env:"KSTORE_CONFIG"`
	Verbose     bool   `help:"Verbose output" short:"v" env:"KSTORE_VERBOSE"`
	ResultsOnly bool   `help:"Strip JSON envelope, return data array only" env:"KSTORE_RESULTS_ONLY"`
	NoInput     bool   `help:"Disable interactive prompts (fail instead)" env:"KSTORE_NO_INPUT"`
	Force       bool   `help:"Skip confirmation prompts for destructive operations" env:"KSTORE_FORCE"`
	DryRun      bool   `help:"Preview operation without executing" name:"dry-run" env:"KSTORE_DRY_RUN"`
}

// ResolvedOutput returns the effective output mode.
// "auto" uses the configured default, then detects a TTY: rich on a
// terminal, plain otherwise.
func (g *Globals) ResolvedOutput(configured string) string {
	if g.Output != "auto" {
		return g.Output
	}
	if configured != "" {
		return configured
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}
