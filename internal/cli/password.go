package cli

import (
	"errors"
	"fmt"

	"github.com/semmy-space/kstore/internal/output"
	"github.com/semmy-space/kstore/internal/secrets"
)

// PasswordCmd holds stored password subcommands
type PasswordCmd struct {
	Set    PasswordSetCmd    `cmd:"" help:"Store a password for keyring: references"`
	Delete PasswordDeleteCmd `cmd:"" help:"Delete a stored password"`
	List   PasswordListCmd   `cmd:"" help:"List stored password names"`
}

// PasswordSetCmd implements password set command
type PasswordSetCmd struct {
	Name string `arg:"" help:"Password name"`
}

// Run executes the set command
func (cmd *PasswordSetCmd) Run(fp *FormatterProvider, app *App) error {
	value, err := app.readSecret("Password")
	if err != nil {
		return err
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would store password %s", cmd.Name)
		return nil
	}

	store, err := app.Secrets()
	if err != nil {
		return err
	}
	if err := store.Set(cmd.Name, string(value)); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to store password: %v", err),
			ExitCode: output.ExitGeneral,
			Err:      err,
		}
	}

	app.Notef("Stored password %s", cmd.Name)
	fp.Formatter.PrintHint(fmt.Sprintf("Reference it with: --password %s", secrets.KeyringRef(cmd.Name)))
	return nil
}

// PasswordDeleteCmd implements password delete command
type PasswordDeleteCmd struct {
	Name    string `arg:"" help:"Password name"`
	Confirm bool   `help:"Confirm deletion"`
}

// Run executes the delete command
func (cmd *PasswordDeleteCmd) Run(app *App) error {
	if err := app.requireConfirmation(cmd.Confirm, "Deletion"); err != nil {
		return err
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would delete password %s", cmd.Name)
		return nil
	}

	store, err := app.Secrets()
	if err != nil {
		return err
	}
	if err := store.Delete(cmd.Name); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return cliError(fmt.Errorf("password %s: %w", cmd.Name, err))
		}
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to delete password: %v", err),
			ExitCode: output.ExitGeneral,
			Err:      err,
		}
	}

	app.Notef("Deleted password %s", cmd.Name)
	return nil
}

// PasswordListCmd implements password list command
type PasswordListCmd struct{}

// Run executes the list command
func (cmd *PasswordListCmd) Run(fp *FormatterProvider, app *App) error {
	store, err := app.Secrets()
	if err != nil {
		return err
	}
	names, err := store.List()
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to list passwords: %v", err),
			ExitCode: output.ExitGeneral,
			Err:      err,
		}
	}

	type passwordRow struct {
		Name      string `json:"name"`
		Reference string `json:"reference"`
	}
	rows := make([]passwordRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, passwordRow{Name: name, Reference: secrets.KeyringRef(name)})
	}
	return fp.Formatter.PrintList(rows, []output.Column{
		{Name: "Name", Key: "Name"},
		{Name: "Reference", Key: "Reference"},
	})
}
