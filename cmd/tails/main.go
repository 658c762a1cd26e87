package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tails/cmd/tails/commands"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("tails"),
		kong.Description("Compile, watch and serve a tails web application."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default()}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
