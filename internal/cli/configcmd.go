package cli

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/semmy-space/kstore/internal/config"
	"github.com/semmy-space/kstore/internal/output"
)

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// ConfigGetCmd implements config get command
type ConfigGetCmd struct {
	Key string `arg:"" help:"Config key to get (e.g., default_store)"`
}

// Run executes the get command
func (cmd *ConfigGetCmd) Run(cfg *config.Config, app *App) error {
	value, err := cfg.Get(cmd.Key)
	if err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			Hint:     "Keys: " + strings.Join(cfg.Keys(), ", "),
			ExitCode: output.ExitNotFound,
		}
	}

	// Print value to stdout
	fmt.Fprintln(app.stdout, value)
	return nil
}

// ConfigSetCmd implements config set command
type ConfigSetCmd struct {
	Key   string `arg:"" help:"Config key to set"`
	Value string `arg:"" help:"Value to set"`
}

// Run executes the set command
func (cmd *ConfigSetCmd) Run(cfg *config.Config, app *App) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			Hint:     "Keys: " + strings.Join(cfg.Keys(), ", "),
			ExitCode: output.ExitUsage,
		}
	}
	if err := validateSetting(cfg, cmd.Key, cmd.Value); err != nil {
		return err
	}

	if app.globals.DryRun {
		app.Notef("[DRY RUN] Would set %s = %s", cmd.Key, cmd.Value)
		return nil
	}

	// Set and save
	if err := cfg.Set(cmd.Key, cmd.Value); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to set config: %v", err),
			ExitCode: output.ExitConfigError,
			Err:      err,
		}
	}

	app.Notef("Set %s = %s", cmd.Key, cmd.Value)
	return nil
}

// validateSetting rejects values the CLI could not use
func validateSetting(cfg *config.Config, key, value string) error {
	switch key {
	case "default_output":
		if !slices.Contains(output.Modes, value) {
			return &output.CLIError{
				Message:  fmt.Sprintf("Invalid output mode: %s. Valid modes: %s", value, strings.Join(output.Modes, ", ")),
				ExitCode: output.ExitUsage,
			}
		}
	case "default_store":
		if _, ok := cfg.Stores[value]; !ok {
			return &output.CLIError{
				Message:  fmt.Sprintf("Store %s is not defined", value),
				Hint:     "Define it with: kstore store create " + value,
				ExitCode: output.ExitUsage,
			}
		}
	}
	return nil
}

// ConfigUnsetCmd implements config unset command
type ConfigUnsetCmd struct {
	Key string `arg:"" help:"Config key to remove"`
}

// Run executes the unset command
func (cmd *ConfigUnsetCmd) Run(cfg *config.Config, app *App) error {
	// Validate key exists
	if _, err := cfg.Get(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Unknown config key: %s", cmd.Key),
			ExitCode: output.ExitUsage,
		}
	}

	if err := cfg.Unset(cmd.Key); err != nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("Failed to unset config: %v", err),
			ExitCode: output.ExitConfigError,
			Err:      err,
		}
	}

	app.Notef("Unset %s", cmd.Key)
	return nil
}

// ConfigListConfigCmd implements config list command
type ConfigListConfigCmd struct{}

// configItem is one line of config list output
type configItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// configItems flattens the config into key-value pairs. Clear-text store
// passwords are masked.
func configItems(cfg *config.Config) []configItem {
	var items []configItem
	for _, key := range cfg.Keys() {
		value, _ := cfg.Get(key)
		items = append(items, configItem{Key: key, Value: value})
	}

	pathNames := make([]string, 0, len(cfg.Paths))
	for name := range cfg.Paths {
		pathNames = append(pathNames, name)
	}
	slices.Sort(pathNames)
	for _, name := range pathNames {
		items = append(items, configItem{Key: "paths." + name, Value: cfg.Paths[name]})
	}

	for _, name := range cfg.StoreNames() {
		def := cfg.Stores[name].Redacted()
		prefix := "stores." + name + "."
		items = append(items,
			configItem{Key: prefix + "type", Value: def.Type},
			configItem{Key: prefix + "provider", Value: def.Provider},
			configItem{Key: prefix + "password", Value: def.Password},
			configItem{Key: prefix + "path", Value: def.Path},
			configItem{Key: prefix + "relative_to", Value: def.RelativeTo},
			configItem{Key: prefix + "required", Value: strconv.FormatBool(def.Required)},
			configItem{Key: prefix + "watch", Value: strconv.FormatBool(def.Watch)},
		)
	}
	return items
}

// Run executes the list command
func (cmd *ConfigListConfigCmd) Run(cfg *config.Config, fp *FormatterProvider) error {
	cols := []output.Column{
		{Name: "Key", Key: "Key"},
		{Name: "Value", Key: "Value"},
	}

	return fp.Formatter.PrintList(configItems(cfg), cols)
}

// ConfigPathCmd implements config path command
type ConfigPathCmd struct{}

// Run executes the path command
func (cmd *ConfigPathCmd) Run(cfg *config.Config, app *App) error {
	path := cfg.Path()

	// Print path to stdout
	fmt.Fprintln(app.stdout, path)

	// Print existence hint to stderr
	if _, err := os.Stat(path); os.IsNotExist(err) {
		app.Notef("(file does not exist yet - will be created on first write)")
	} else {
		app.Notef("(file exists)")
	}

	return nil
}
