package clicommand

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/rchlabs/rch/internal/config"
	"github.com/rchlabs/rch/internal/osutil"
	"github.com/rchlabs/rch/internal/socket"
)

// clientFlags are the subset of config.Flags a client subcommand needs:
// where to find the daemon and how to authenticate to it. Client commands
// don't take the daemon's admission/transfer tuning flags.
func clientFlags() []cli.Flag {
	d := config.Default()
	return []cli.Flag{
		cli.StringFlag{Name: "socket-path", Value: d.SocketPath, Usage: "Path to the daemon's Unix domain socket", EnvVar: "RCH_SOCKET_PATH"},
		cli.StringFlag{Name: "token", Usage: "Bearer token presented to the daemon", EnvVar: "RCH_TOKEN"},
		cli.StringFlag{Name: "token-path", Value: d.TokenPath, Usage: "Path to a file containing the bearer token", EnvVar: "RCH_TOKEN_PATH"},
		cli.StringFlag{Name: "config", Usage: "Path to a configuration file", EnvVar: "RCH_CONFIG"},
		cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", EnvVar: "RCH_DEBUG"},
	}
}

// dial loads just enough config to find and authenticate to the daemon's
// socket, then returns a connected socket.Client.
func dial(ctx context.Context, c *cli.Context) (*socket.Client, error) {
	cfg := config.Default()
	if _, _, err := config.Load(c, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	socketPath, err := osutil.NormalizeFilePath(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("normalizing socket path: %w", err)
	}

	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cl, err := socket.NewClient(dialCtx, socketPath, token)
	if err != nil {
		return nil, NewExitError(101, fmt.Errorf("connecting to rchd at %s: %w", socketPath, err))
	}
	return cl, nil
}

// commandFromArgs joins a subcommand's positional args back into one raw
// shell command string, matching how a shell would have passed it to rch
// in the first place (`rch build -- gcc -c foo.c` style invocation).
func commandFromArgs(args cli.Args) string {
	return strings.Join(args, " ")
}

func currentWorkDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return wd, nil
}
