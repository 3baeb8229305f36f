package cli

import (
	"fmt"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
)

// StoreCmd holds store subcommands
type StoreCmd struct {
	Create      StoreCreateCmd      `cmd:"" help:"Define a store and open it"`
	List        StoreListCmd        `cmd:"" help:"List defined stores"`
	State       StoreStateCmd       `cmd:"" help:"Show the state of a store"`
	Reload      StoreReloadCmd      `cmd:"" help:"Reload a store from its file (--dry-run only verifies it)"`
	Save        StoreSaveCmd        `cmd:"" help:"Write a store back to its file"`
	Reconfigure StoreReconfigureCmd `cmd:"" help:"Change a store definition"`
	Remove      StoreRemoveCmd      `cmd:"" help:"Remove a store definition"`
}

// storeRow is one line of store list output
type storeRow struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Location string `json:"location"`
	Entries  int    `json:"entries"`
	Status   string `json:"status"`
}

var storeColumns = []output.Column{
	{Name: "Name", Key: "Name"},
	{Name: "Type", Key: "Type"},
	{Name: "Location", Key: "Location", Width: 48},
	{Name: "Entries", Key: "Entries"},
	{Name: "Status", Key: "Status"},
}

// StoreCreateCmd implements store create command
type StoreCreateCmd struct {
	Name       string `arg:"" help:"Store name"`
	Type       string `help:"Container type" default:"kstore-gcm" enum:"kstore-gcm,kstore-chacha"`
	Provider   string `help:"Format provider" default:"builtin"`
	Password   string `help:"Password reference: keyring:NAME, env:VAR, file:PATH, pass:TEXT"`
	Path       string `help:"Store file path; omit for a memory-only store"`
	RelativeTo string `help:"Named directory the path is relative to" default:"kstore.data.dir" predictor:"path"`
	Required   bool   `help:"Fail if the store file does not exist"`
	Watch      bool   `help:"Track relocation of the relative-to directory"`
	Default    bool   `help:"Make this the default store"`
}

func (cmd *StoreCreateCmd) definition() manage.Definition {
	def := manage.Definition{
		Provider: cmd.Provider,
		Type:     cmd.Type,
		Password: cmd.Password,
		Path:     cmd.Path,
		Required: cmd.Required,
		Watch:    cmd.Watch,
	}
	if cmd.Path != "" {
		def.RelativeTo = cmd.RelativeTo
	}
	return def
}

// Run executes the create command
func (cmd *StoreCreateCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	if _, ok := cfg.Stores[cmd.Name]; ok {
		return &output.CLIError{
			Message:  fmt.Sprintf("Store %s is already defined", cmd.Name),
			Hint:     "Use: kstore store reconfigure " + cmd.Name,
			ExitCode: output.ExitConflict,
		}
	}
	def := cmd.definition()

	// Opening the store validates the definition, the password and the file
	result, err := app.Execute(manage.Request{Op: manage.OpCreate, Store: cmd.Name, Definition: &def})
	if err != nil {
		return err
	}

	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would define store: %s", cmd.Name)
		return fp.Formatter.Print(result)
	}

	// Write the file of a new store so it exists with its password
	if def.Path != "" && !def.Required {
		if st, ok := result.(manage.State); ok && st.Entries == 0 {
			if _, err := app.Execute(manage.Request{Op: manage.OpSave, Store: cmd.Name}); err != nil {
				return err
			}
		}
	}

	if err := cfg.SetStore(cmd.Name, def); err != nil {
		return output.Wrap(output.ExitConfigError, err)
	}
	if cmd.Default || cfg.DefaultStore == "" {
		if err := cfg.Set("default_store", cmd.Name); err != nil {
			return output.Wrap(output.ExitConfigError, err)
		}
	}

	app.Notef("Defined store %s", cmd.Name)
	return fp.Formatter.Print(result)
}

// StoreListCmd implements store list command
type StoreListCmd struct{}

// Run executes the list command
func (cmd *StoreListCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	failed := app.StartAll()

	rows := make([]storeRow, 0, len(cfg.Stores))
	for _, name := range cfg.StoreNames() {
		row := storeRow{Name: name, Type: cfg.Stores[name].Type, Status: "ok"}
		if err, ok := failed[name]; ok {
			row.Status = err.Error()
			rows = append(rows, row)
			continue
		}
		svc, err := app.Manager().Service(name)
		if err != nil {
			return cliError(err)
		}
		st := svc.State()
		row.Location = st.Location
		row.Entries = st.Entries
		if row.Location == "" {
			row.Location = "(memory)"
		}
		if name == cfg.DefaultStore {
			row.Status = "ok (default)"
		}
		rows = append(rows, row)
	}

	return fp.Formatter.PrintList(rows, storeColumns)
}

// StoreStateCmd implements store state command
type StoreStateCmd struct {
	Name string `arg:"" optional:"" help:"Store name; every store when omitted" predictor:"store"`
}

// Run executes the state command
func (cmd *StoreStateCmd) Run(fp *FormatterProvider, app *App) error {
	if cmd.Name == "" {
		app.StartAll()
	}
	result, err := app.Execute(manage.Request{Op: manage.OpState, Store: cmd.Name})
	if err != nil {
		return err
	}
	return fp.Formatter.Print(result)
}

// StoreReloadCmd implements store reload command
type StoreReloadCmd struct {
	Name string `arg:"" optional:"" help:"Store name" predictor:"store"`
}

// Run executes the reload command
func (cmd *StoreReloadCmd) Run(fp *FormatterProvider, globals *Globals, app *App) error {
	name, err := app.StoreName(cmd.Name)
	if err != nil {
		return err
	}
	result, err := app.Execute(manage.Request{Op: manage.OpReload, Store: name, DryRun: globals.DryRun})
	if err != nil {
		return err
	}
	if globals.DryRun {
		app.Notef("[DRY RUN] Store %s loads; running content kept", name)
	}
	return fp.Formatter.Print(result)
}

// StoreSaveCmd implements store save command
type StoreSaveCmd struct {
	Name string `arg:"" optional:"" help:"Store name" predictor:"store"`
}

// Run executes the save command
func (cmd *StoreSaveCmd) Run(globals *Globals, app *App) error {
	name, err := app.StoreName(cmd.Name)
	if err != nil {
		return err
	}
	if globals.DryRun {
		app.Notef("[DRY RUN] Would rewrite store: %s", name)
		return nil
	}
	if _, err := app.Execute(manage.Request{Op: manage.OpSave, Store: name}); err != nil {
		return err
	}
	app.Notef("Saved store %s", name)
	return nil
}

// StoreReconfigureCmd implements store reconfigure command.
// Unset flags keep their current value.
type StoreReconfigureCmd struct {
	Name       string  `arg:"" help:"Store name" predictor:"store"`
	Type       *string `help:"Container type"`
	Provider   *string `help:"Format provider"`
	Password   *string `help:"Password reference"`
	Path       *string `help:"Store file path; empty for memory-only"`
	RelativeTo *string `help:"Named directory the path is relative to" predictor:"path"`
	Required   string  `help:"Fail if the store file does not exist" enum:"true,false," default:""`
	Watch      string  `help:"Track relocation of the relative-to directory" enum:"true,false," default:""`
}

func (cmd *StoreReconfigureCmd) apply(def manage.Definition) manage.Definition {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&def.Type, cmd.Type)
	set(&def.Provider, cmd.Provider)
	set(&def.Password, cmd.Password)
	set(&def.Path, cmd.Path)
	set(&def.RelativeTo, cmd.RelativeTo)
	if cmd.Required != "" {
		def.Required = cmd.Required == "true"
	}
	if cmd.Watch != "" {
		def.Watch = cmd.Watch == "true"
	}
	if def.Path == "" {
		def.RelativeTo = ""
	}
	return def
}

// Run executes the reconfigure command
func (cmd *StoreReconfigureCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	current, ok := cfg.Stores[cmd.Name]
	if !ok {
		return cliError(fmt.Errorf("%w: %s", manage.ErrUnknownStore, cmd.Name))
	}
	def := cmd.apply(current)
	result, err := app.Execute(manage.Request{Op: manage.OpReconfigure, Store: cmd.Name, Definition: &def})
	if err != nil {
		return err
	}

	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would update store definition: %s", cmd.Name)
		return fp.Formatter.Print(result)
	}
	if err := cfg.SetStore(cmd.Name, def.WithDefaults()); err != nil {
		return output.Wrap(output.ExitConfigError, err)
	}
	app.Notef("Updated store %s", cmd.Name)
	return fp.Formatter.Print(result)
}

// StoreRemoveCmd implements store remove command
type StoreRemoveCmd struct {
	Name    string `arg:"" help:"Store name" predictor:"store"`
	Confirm bool   `help:"Confirm removal"`
}

// Run executes the remove command. The store file is left in place.
func (cmd *StoreRemoveCmd) Run(cfg *config.Config, app *App) error {
	if err := app.requireConfirmation(cmd.Confirm, "Removal"); err != nil {
		return err
	}
	if _, ok := cfg.Stores[cmd.Name]; !ok {
		return cliError(fmt.Errorf("%w: %s", manage.ErrUnknownStore, cmd.Name))
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would remove store definition: %s", cmd.Name)
		return nil
	}

	if _, err := app.Manager().Service(cmd.Name); err == nil {
		if _, err := app.Execute(manage.Request{Op: manage.OpRemove, Store: cmd.Name}); err != nil {
			return err
		}
	}
	if err := cfg.RemoveStore(cmd.Name); err != nil {
		return cliError(err)
	}
	app.Notef("Removed store %s", cmd.Name)
	return nil
}
