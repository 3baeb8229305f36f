package main

import (
	"errors"
	"os"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/kstore/internal/cli"
	"github.com/semmy-space/kstore/internal/output"
)

var (
	version = "dev"
)

func main() {
	cliInstance := &cli.CLI{}
	parser := kong.Must(cliInstance,
		kong.Name("kstore"),
		kong.Description("Atomic, revertible secret stores"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	// Answer shell completion requests and exit
	kongplete.Complete(parser, cli.Predictors()...)

	ctx, err := parser.Parse(os.Args[1:])
	var cliErr *output.CLIError
	if err != nil && !errors.As(err, &cliErr) {
		parser.FatalIfErrorf(err)
	}

	// Run command with bound dependencies
	if err == nil {
		err = ctx.Run()
	}
	if err != nil {
		// The configured formatter may not exist when the hook failed
		output.PrintError(output.New("plain"), err)
		os.Exit(output.ExitCode(err))
	}
}
