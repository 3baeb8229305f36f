package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/output"
	"github.com/semmy-space/kstore/internal/secrets"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
}

// CLI is the root command structure
type CLI struct {
	Globals

	Init       InitCmd                      `cmd:"" help:"Interactively define a first store"`
	Store      StoreCmd                     `cmd:"" help:"Store commands"`
	Alias      AliasCmd                     `cmd:"" help:"Alias commands"`
	Path       PathCmd                      `cmd:"" help:"Named directory commands"`
	Password   PasswordCmd                  `cmd:"" help:"Stored password commands"`
	Config     ConfigCmd                    `cmd:"" help:"Configuration commands"`
	Ls         LsCmd                        `cmd:"" help:"Shortcuts for listing stores and aliases"`
	Schema     SchemaCmd                    `cmd:"" help:"Show the command tree"`
	Completion kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
	Version    VersionCmd                   `cmd:"" help:"Show version information"`

	// Overrides for tests. Nil means the process defaults.
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	codecs  keystore.CodecSource
	secrets func(dataDir string) (secrets.Store, error)
}

// AfterApply hook runs once flags are applied, before the command.
// It loads config, creates the formatter and the app, and binds them.
func (c *CLI) AfterApply(ctx *kong.Context) error {
	if c.stdin == nil {
		c.stdin = os.Stdin
	}
	if c.stdout == nil {
		c.stdout = os.Stdout
	}
	if c.stderr == nil {
		c.stderr = os.Stderr
	}

	// Load config (returns defaults if missing)
	path := c.ConfigFile
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to load config: %v", err),
			ExitCode: output.ExitConfigError,
			Err:      err,
		}
	}

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))

	// Create output formatter
	mode := c.ResolvedOutput(cfg.DefaultOutput)
	formatter := &FormatterProvider{Formatter: output.NewWithWriters(mode, c.stdout, c.stderr)}
	if mode == "json" {
		formatter.Formatter = output.NewJSON(c.stdout, c.stderr, c.ResultsOnly)
	}

	app := newApp(cfg, &c.Globals, logger, c)

	// Bind dependencies to kong context
	ctx.Bind(cfg)
	ctx.Bind(formatter)
	ctx.Bind(&c.Globals)
	ctx.Bind(app)
	ctx.Bind(logger)

	return nil
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context, app *App) error {
	fmt.Fprintf(app.stdout, "kstore version %s\n", ctx.Model.Vars()["version"])
	return nil
}
