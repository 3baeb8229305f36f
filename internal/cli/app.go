package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/keystore"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
	"github.com/semmy-space/kstore/internal/paths"
	"github.com/semmy-space/kstore/internal/secrets"
)

// StoreFlag selects the store an alias command works on.
type StoreFlag struct {
	Store string `help:"Store to operate on (defaults to default_store)" short:"s" env:"KSTORE_STORE" predictor:"store"`
}

// App lazily builds the manager and starts the configured stores
// commands ask for.
type App struct {
	cfg     *config.Config
	globals *Globals
	log     *slog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	in     *bufio.Reader

	codecs     keystore.CodecSource
	openSecret func(dataDir string) (secrets.Store, error)

	once      sync.Once
	paths     *paths.Registry
	passwords *secrets.Resolver
	manager   *manage.Manager
}

func newApp(cfg *config.Config, globals *Globals, logger *slog.Logger, c *CLI) *App {
	a := &App{
		cfg:        cfg,
		globals:    globals,
		log:        logger,
		stdin:      c.stdin,
		stdout:     c.stdout,
		stderr:     c.stderr,
		codecs:     c.codecs,
		openSecret: c.secrets,
	}
	if a.codecs == nil {
		a.codecs = format.NewDefaultRegistry()
	}
	if a.openSecret == nil {
		a.openSecret = secrets.NewStore
	}
	return a
}

func (a *App) init() {
	a.once.Do(func() {
		a.paths = paths.NewDefaultRegistry()
		for name, dir := range a.cfg.Paths {
			a.paths.Define(name, dir)
		}
		a.passwords = secrets.NewResolver(func() (secrets.Store, error) {
			return a.openSecret(a.dataDir())
		})
		a.manager = manage.NewManager(manage.Env{
			Paths:     a.paths,
			Codecs:    a.codecs,
			Passwords: a.passwords,
			Logger:    a.log,
		})
	})
}

// Manager returns the manager, building it on first call.
func (a *App) Manager() *manage.Manager {
	a.init()
	return a.manager
}

// Paths returns the named directory registry.
func (a *App) Paths() *paths.Registry {
	a.init()
	return a.paths
}

// Secrets returns the password store store definitions refer to.
func (a *App) Secrets() (secrets.Store, error) {
	a.init()
	store, err := a.passwords.Store()
	if err != nil {
		return nil, &output.CLIError{
			Message:  fmt.Sprintf("Failed to initialize password store: %v", err),
			ExitCode: output.ExitGeneral,
			Err:      err,
		}
	}
	return store, nil
}

func (a *App) dataDir() string {
	if dir, ok := a.paths.Lookup(paths.DataDir); ok {
		return dir
	}
	return config.DataDir()
}

// StoreName picks name, or the configured default store.
func (a *App) StoreName(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if a.cfg.DefaultStore != "" {
		return a.cfg.DefaultStore, nil
	}
	return "", &output.CLIError{
		Message:  "No store given and no default store configured",
		Hint:     "Pass --store or run: kstore config set default_store NAME",
		ExitCode: output.ExitUsage,
	}
}

// Start starts the configured store name unless it already runs.
func (a *App) Start(name string) error {
	m := a.Manager()
	if _, err := m.Service(name); err == nil {
		return nil
	}
	def, ok := a.cfg.Stores[name]
	if !ok {
		return cliError(fmt.Errorf("%w: %s", manage.ErrUnknownStore, name))
	}
	if _, err := m.Execute(manage.Request{Op: manage.OpCreate, Store: name, Definition: &def}); err != nil {
		return cliError(err)
	}
	return nil
}

// StartAll starts every configured store. Stores that fail are reported
// by name and skipped.
func (a *App) StartAll() map[string]error {
	failed := make(map[string]error)
	for _, name := range a.cfg.StoreNames() {
		if err := a.Start(name); err != nil {
			failed[name] = err
		}
	}
	return failed
}

// Execute starts the request's store if needed, then runs req.
func (a *App) Execute(req manage.Request) (any, error) {
	if req.Store != "" && req.Op != manage.OpCreate {
		if err := a.Start(req.Store); err != nil {
			return nil, err
		}
	}
	result, err := a.Manager().Execute(req)
	if err != nil {
		return nil, cliError(err)
	}
	return result, nil
}

// Notef prints a confirmation line to stderr
func (a *App) Notef(format string, args ...any) {
	fmt.Fprintf(a.stderr, format+"\n", args...)
}

// requireConfirmation fails destructive commands run without --force.
func (a *App) requireConfirmation(confirm bool, what string) error {
	if confirm || a.globals.Force || a.globals.DryRun {
		return nil
	}
	return &output.CLIError{
		Message:  fmt.Sprintf("%s requires --confirm or --force flag", what),
		ExitCode: output.ExitUsage,
	}
}

// isCLIError reports whether err already carries an exit code.
func isCLIError(err error) bool {
	var cliErr *output.CLIError
	return errors.As(err, &cliErr)
}
