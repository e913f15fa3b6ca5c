package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/dmbuild/cmd/dmbuild/commands"
	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{}
	ctx := kong.Parse(&cli,
		kong.Name("dmbuild"),
		kong.Description("Build documents into html, pdf, epub and other formats."),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	err := ctx.Run(global, &cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
