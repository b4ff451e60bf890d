package main

import (
	"context"

	"github.com/jessevdk/go-flags"

	"code.tidebook.io/tidebook/config"
	"code.tidebook.io/tidebook/logging"
)

type InitCmd struct {
	RootPathFlag

	Force bool `short:"f" long:"force" description:"Overwrite an existing configuration"`
}

var initCmd InitCmd

// Init registers the init subcommand, which writes the default
// configuration into the root path.
func Init(_ context.Context, parser *flags.Parser) error {
	initCmd = InitCmd{
		RootPathFlag: NewRootPathFlag(),
	}
	_, err := parser.AddCommand("init", "Initialize a tidebook node", "Generate the minimal configuration required for a tidebook node to start", &initCmd)
	return err
}

func (opts *InitCmd) Execute(_ []string) error {
	log := logging.NewLoggerFromEnv("dev")
	defer log.AtExit()

	if err := config.Write(opts.RootPath, config.NewDefaultConfig(), opts.Force); err != nil {
		return err
	}
	log.Info("configuration generated",
		logging.String("path", opts.RootPath),
	)
	return nil
}
