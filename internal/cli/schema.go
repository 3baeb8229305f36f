package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/semmy-space/kstore/internal/output"
)

// SchemaCmd outputs the machine-readable command tree
type SchemaCmd struct {
	Command string `arg:"" optional:"" help:"Command path to show schema for (e.g., 'alias import-cert')"`
	Hidden  bool   `help:"Include hidden commands and flags"`
}

// SchemaNode represents a node in the command tree
type SchemaNode struct {
	Name     string        `json:"name" yaml:"name"`
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Help     string        `json:"help,omitempty" yaml:"help,omitempty"`
	Aliases  []string      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Flags    []*SchemaFlag `json:"flags,omitempty" yaml:"flags,omitempty"`
	Args     []*SchemaArg  `json:"args,omitempty" yaml:"args,omitempty"`
	Children []*SchemaNode `json:"commands,omitempty" yaml:"commands,omitempty"`
}

// SchemaFlag represents a command flag
type SchemaFlag struct {
	Name      string   `json:"name" yaml:"name"`
	Help      string   `json:"help,omitempty" yaml:"help,omitempty"`
	Type      string   `json:"type" yaml:"type"`
	Required  bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Default   string   `json:"default,omitempty" yaml:"default,omitempty"`
	Enum      []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Short     string   `json:"short,omitempty" yaml:"short,omitempty"`
	Env       string   `json:"env,omitempty" yaml:"env,omitempty"`
	Predictor string   `json:"predictor,omitempty" yaml:"predictor,omitempty"`
}

// SchemaArg represents a positional argument
type SchemaArg struct {
	Name     string `json:"name" yaml:"name"`
	Help     string `json:"help,omitempty" yaml:"help,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Run executes the schema command
func (cmd *SchemaCmd) Run(ctx *kong.Context, fp *FormatterProvider) error {
	target := ctx.Model.Node
	if cmd.Command != "" {
		var err error
		if target, err = findNodeByPath(target, cmd.Command); err != nil {
			return &output.CLIError{
				Message:  err.Error(),
				Hint:     "Run: kstore schema",
				ExitCode: output.ExitUsage,
			}
		}
	}

	return fp.Formatter.Print(buildSchemaNode(target, cmd.Hidden))
}

// buildSchemaNode recursively builds schema from Kong node
func buildSchemaNode(node *kong.Node, hidden bool) *SchemaNode {
	schema := &SchemaNode{
		Name:    node.Name,
		Help:    node.Help,
		Aliases: node.Aliases,
	}
	if node.Type != kong.ApplicationNode {
		schema.Path = node.FullPath()
	}

	// Skip the flags every command has
	for _, flag := range node.Flags {
		if flag.Name == "help" || (flag.Hidden && !hidden) {
			continue
		}
		schema.Flags = append(schema.Flags, buildSchemaFlag(flag))
	}

	for _, arg := range node.Positional {
		schema.Args = append(schema.Args, &SchemaArg{
			Name:     arg.Name,
			Help:     arg.Help,
			Required: arg.Required,
		})
	}

	for _, child := range node.Children {
		if child.Hidden && !hidden {
			continue
		}
		schema.Children = append(schema.Children, buildSchemaNode(child, hidden))
	}

	return schema
}

func buildSchemaFlag(flag *kong.Flag) *SchemaFlag {
	sf := &SchemaFlag{
		Name:     flag.Name,
		Help:     flag.Help,
		Type:     "string",
		Required: flag.Required,
		Default:  flag.Default,
	}
	if flag.Value != nil && flag.Value.Target.IsValid() {
		sf.Type = fmt.Sprintf("%T", flag.Value.Target.Interface())
	}
	if len(flag.Envs) > 0 {
		sf.Env = flag.Envs[0]
	}
	if flag.Short != 0 {
		sf.Short = string(flag.Short)
	}
	if flag.Enum != "" {
		sf.Enum = strings.Split(flag.Enum, ",")
	}
	if flag.Tag != nil {
		sf.Predictor = flag.Tag.Get("predictor")
	}
	return sf
}

// findNodeByPath walks the node tree to find a specific command path
func findNodeByPath(root *kong.Node, path string) (*kong.Node, error) {
	current := root
	for _, part := range strings.Fields(path) {
		next := childNamed(current, part)
		if next == nil {
			return nil, fmt.Errorf("command not found: %s", path)
		}
		current = next
	}
	return current, nil
}

func childNamed(node *kong.Node, name string) *kong.Node {
	for _, child := range node.Children {
		if child.Name == name {
			return child
		}
		for _, alias := range child.Aliases {
			if alias == name {
				return child
			}
		}
	}
	return nil
}
