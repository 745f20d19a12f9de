package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Run      RunCmd           `cmd:"" default:"1" help:"Run the farming process"`
	Validate ValidateCmd      `cmd:"" help:"Validate process and bot configuration files"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cardfarm"),
		kong.Description("Multi-account idle card-drop farmer"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
