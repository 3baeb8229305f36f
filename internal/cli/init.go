package cli

import (
	"fmt"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/format"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
	"github.com/semmy-space/kstore/internal/paths"
	"github.com/semmy-space/kstore/internal/secrets"
)

// InitCmd implements the interactive setup wizard
type InitCmd struct{}

// Run executes the setup wizard
func (cmd *InitCmd) Run(cfg *config.Config, app *App) error {
	if app.globals.NoInput {
		return &output.CLIError{
			Message:  "init is interactive and cannot run with --no-input",
			Hint:     "Use: kstore store create NAME --password REF --path FILE",
			ExitCode: output.ExitUsage,
		}
	}
	reader := app.input()
	w := app.stderr

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  kstore setup\n")
	fmt.Fprintf(w, "  ============\n\n")

	// Step 1: Name and type
	fmt.Fprintf(w, "  Step 1: Name the store\n\n")
	name := prompt(reader, w, "  Store name [default]: ")
	if name == "" {
		name = "default"
	}
	if _, ok := cfg.Stores[name]; ok {
		return &output.CLIError{
			Message:  fmt.Sprintf("Store %s is already defined", name),
			ExitCode: output.ExitConflict,
		}
	}

	typ := prompt(reader, w, fmt.Sprintf("  Container type (%s, %s) [%s]: ", format.TypeGCM, format.TypeChaCha, format.TypeGCM))
	if typ == "" {
		typ = format.TypeGCM
	}
	if _, err := app.codecs.Codec(format.DefaultProvider, typ); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Invalid container type: %s", typ),
			ExitCode: output.ExitUsage,
			Err:      err,
		}
	}

	// Step 2: Location
	dataDir, _ := app.Paths().Lookup(paths.DataDir)
	fmt.Fprintf(w, "\n  Step 2: Choose the store file\n\n")
	fmt.Fprintf(w, "    Relative paths are kept under %s\n", dataDir)
	fmt.Fprintf(w, "    and follow it when it is relocated.\n\n")
	file := prompt(reader, w, fmt.Sprintf("  File [%s.ks]: ", name))
	if file == "" {
		file = name + ".ks"
	}

	// Step 3: Password
	fmt.Fprintf(w, "\n  Step 3: Set the store password\n\n")
	password, err := app.readSecret("Store password")
	if err != nil {
		return err
	}

	def := manage.Definition{
		Type:       typ,
		Password:   secrets.KeyringRef(name),
		Path:       file,
		RelativeTo: paths.DataDir,
		Watch:      true,
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would define store %s at %s", name, file)
		return nil
	}

	store, err := app.Secrets()
	if err != nil {
		return err
	}
	if err := store.Set(name, string(password)); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to store password: %v", err),
			ExitCode: output.ExitGeneral,
			Err:      err,
		}
	}

	result, err := app.Execute(manage.Request{Op: manage.OpCreate, Store: name, Definition: &def})
	if err == nil {
		_, err = app.Execute(manage.Request{Op: manage.OpSave, Store: name})
	}
	if err != nil {
		_ = store.Delete(name)
		return err
	}

	if err := cfg.SetStore(name, def.WithDefaults()); err != nil {
		return output.Wrap(output.ExitConfigError, err)
	}
	if cfg.DefaultStore == "" {
		if err := cfg.Set("default_store", name); err != nil {
			return output.Wrap(output.ExitConfigError, err)
		}
	}

	// Done
	storageType := "keyring"
	if secrets.IsWSL() || secrets.IsHeadless() {
		storageType = "encrypted file"
	}
	location := ""
	if st, ok := result.(manage.State); ok {
		location = st.Location
	}

	fmt.Fprintf(w, "\n  Setup complete!\n\n")
	fmt.Fprintf(w, "    Store:    %s\n", name)
	fmt.Fprintf(w, "    File:     %s\n", location)
	fmt.Fprintf(w, "    Password: %s\n", storageType)
	fmt.Fprintf(w, "    Config:   %s\n\n", cfg.Path())
	fmt.Fprintf(w, "  Try it out:\n\n")
	fmt.Fprintf(w, "    kstore alias set-secret api-key --generate 32\n")
	fmt.Fprintf(w, "    kstore alias list\n\n")

	return nil
}
