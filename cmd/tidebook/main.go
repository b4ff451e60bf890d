package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := Main(context.Background()); err != nil {
		os.Exit(1)
	}
}

// Main runs the tidebook command line, wiring the subcommands into one
// go-flags parser.
func Main(ctx context.Context) error {
	parser := flags.NewParser(&Empty{}, flags.Default)

	for _, register := range []func(context.Context, *flags.Parser) error{
		Init,
		Run,
	} {
		if err := register(ctx, parser); err != nil {
			return err
		}
	}

	if _, err := parser.Parse(); err != nil {
		switch t := err.(type) {
		case *flags.Error:
			if t.Type != flags.ErrHelp {
				parser.WriteHelp(os.Stdout)
			}
		}
		return err
	}
	return nil
}

// Empty is the top level option set, all options live on subcommands.
type Empty struct{}

// RootPathFlag is shared by every subcommand needing the node home.
type RootPathFlag struct {
	RootPath string `short:"r" long:"root-path" description:"Path of the root directory in which the configuration is located"`
}

// NewRootPathFlag returns the flag with its default home directory.
func NewRootPathFlag() RootPathFlag {
	return RootPathFlag{RootPath: defaultRootPath()}
}

func defaultRootPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to resolve home directory: %v\n", err)
		return ".tidebook"
	}
	return filepath.Join(home, ".tidebook")
}
