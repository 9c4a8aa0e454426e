// Rchd is the remote compilation helper daemon: it classifies build commands,
// selects and health-checks workers, and offloads approved builds over SSH.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/rchlabs/rch/clicommand"
	"github.com/rchlabs/rch/version"
)

func main() {
	app := cli.NewApp()
	app.Name = "rchd"
	app.Version = version.Version()
	app.Usage = "the remote compilation helper daemon"
	app.Commands = clicommand.RchdCommands
	app.ErrWriter = os.Stderr

	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(app.ErrWriter, "rchd: unknown subcommand %q\n", command)
		fmt.Fprintf(app.ErrWriter, "Run '%s --help' for usage.\n", c.App.Name)
		os.Exit(1)
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(clicommand.PrintMessageAndReturnExitCode(err))
	}
}
