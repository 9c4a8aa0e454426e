package clicommand

import "github.com/urfave/cli"

// RchdCommands is the command set for the rchd daemon binary.
var RchdCommands = []cli.Command{
	DaemonStartCommand,
}

// RchCommands is the command set for the rch client binary.
var RchCommands = []cli.Command{
	ClassifyCommand,
	BuildCommand,
	StatusCommand,
	CancelCommand,
	DrainCommand,
	WorkersCommand,
}
