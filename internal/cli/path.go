package cli

import (
	"fmt"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/manage"
	"github.com/semmy-space/kstore/internal/output"
)

// PathCmd holds named directory subcommands
type PathCmd struct {
	List     PathListCmd     `cmd:"" help:"List named directories"`
	Relocate PathRelocateCmd `cmd:"" help:"Move a named directory"`
	Reset    PathResetCmd    `cmd:"" help:"Drop a directory override"`
}

// pathRow is one line of path list output
type pathRow struct {
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	Source string `json:"source"`
	Stores string `json:"stores,omitempty"`
}

var pathColumns = []output.Column{
	{Name: "Name", Key: "Name"},
	{Name: "Directory", Key: "Dir", Width: 48},
	{Name: "Source", Key: "Source"},
	{Name: "Stores", Key: "Stores"},
}

// PathListCmd implements path list command
type PathListCmd struct{}

// Run executes the list command
func (cmd *PathListCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	reg := app.Paths()
	names := reg.Names()
	rows := make([]pathRow, 0, len(names))
	for _, name := range names {
		dir, _ := reg.Lookup(name)
		row := pathRow{Name: name, Dir: dir, Source: "default"}
		if _, ok := cfg.Paths[name]; ok {
			row.Source = "config"
		}
		for _, store := range cfg.StoreNames() {
			if cfg.Stores[store].RelativeTo != name {
				continue
			}
			if row.Stores != "" {
				row.Stores += ","
			}
			row.Stores += store
		}
		rows = append(rows, row)
	}
	return fp.Formatter.PrintList(rows, pathColumns)
}

// relocation reports what a relocation did to the stores
type relocation struct {
	Name           string         `json:"name"`
	Dir            string         `json:"dir,omitempty"`
	ReloadRequired bool           `json:"reload_required"`
	Stores         []manage.State `json:"stores,omitempty"`
}

// PathRelocateCmd implements path relocate command
type PathRelocateCmd struct {
	Name    string `arg:"" help:"Directory name" predictor:"path"`
	Dir     string `arg:"" help:"New directory" type:"path"`
	Restart bool   `help:"Restart dependent stores at the new location"`
}

// Run executes the relocate command
func (cmd *PathRelocateCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would relocate %s to %s", cmd.Name, cmd.Dir)
		return nil
	}

	// Running stores subscribe to the directories they watch
	app.StartAll()
	reload, err := app.Manager().Relocate(cmd.Name, cmd.Dir, cmd.Restart)
	if err != nil {
		return cliError(err)
	}
	if err := cfg.SetPath(cmd.Name, cmd.Dir); err != nil {
		return output.Wrap(output.ExitConfigError, err)
	}

	app.Notef("Relocated %s to %s", cmd.Name, cmd.Dir)
	if reload {
		app.Notef("Some stores keep the old location until reloaded")
	}
	return fp.Formatter.Print(relocation{
		Name:           cmd.Name,
		Dir:            cmd.Dir,
		ReloadRequired: reload,
		Stores:         dependentStates(cfg, app, cmd.Name),
	})
}

// PathResetCmd implements path reset command
type PathResetCmd struct {
	Name    string `arg:"" help:"Directory name" predictor:"path"`
	Restart bool   `help:"Stop dependent stores"`
}

// Run executes the reset command
func (cmd *PathResetCmd) Run(cfg *config.Config, fp *FormatterProvider, app *App) error {
	if _, ok := cfg.Paths[cmd.Name]; !ok {
		return &output.CLIError{
			Message:  fmt.Sprintf("No override for %s", cmd.Name),
			ExitCode: output.ExitNotFound,
		}
	}
	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would drop override for %s", cmd.Name)
		return nil
	}

	app.StartAll()
	reload := app.Manager().RemovePath(cmd.Name, cmd.Restart)
	if err := cfg.RemovePath(cmd.Name); err != nil {
		return output.Wrap(output.ExitConfigError, err)
	}

	app.Notef("Dropped override for %s", cmd.Name)
	return fp.Formatter.Print(relocation{
		Name:           cmd.Name,
		ReloadRequired: reload,
		Stores:         dependentStates(cfg, app, cmd.Name),
	})
}

func dependentStates(cfg *config.Config, app *App, pathName string) []manage.State {
	var states []manage.State
	for _, name := range cfg.StoreNames() {
		if cfg.Stores[name].RelativeTo != pathName {
			continue
		}
		if svc, err := app.Manager().Service(name); err == nil {
			states = append(states, svc.State())
		}
	}
	return states
}
