// Rch is the client for talking to a running rchd daemon: classify, build,
// status, cancel, drain, and worker-set management.
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
	app.Name = "rch"
	app.Version = version.Version()
	app.Usage = "talk to a running rchd daemon"
	app.Commands = clicommand.RchCommands
	app.ErrWriter = os.Stderr

	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(app.ErrWriter, "rch: unknown subcommand %q\n", command)
		fmt.Fprintf(app.ErrWriter, "Run '%s --help' for usage.\n", c.App.Name)
		os.Exit(1)
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(clicommand.PrintMessageAndReturnExitCode(err))
	}
}
