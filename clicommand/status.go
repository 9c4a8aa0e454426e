package clicommand

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/urfave/cli"
)

var StatusCommand = cli.Command{
	Name:  "status",
	Usage: "Show the daemon's current activity snapshot",
	Flags: clientFlags(),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		cl, err := dial(ctx, c)
		if err != nil {
			return err
		}

		var snapshot map[string]any
		if err := cl.Do(ctx, http.MethodGet, "http://unix/api/v0/status", nil, &snapshot); err != nil {
			return NewExitError(1, fmt.Errorf("status request failed: %w", err))
		}

		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	},
}

var CancelCommand = cli.Command{
	Name:      "cancel",
	Usage:     "Cancel an in-flight build",
	ArgsUsage: "<build-request-id>",
	Flags:     clientFlags(),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		id := c.Args().First()
		if id == "" {
			return NewExitError(64, fmt.Errorf("usage: rch cancel <build-request-id>"))
		}

		cl, err := dial(ctx, c)
		if err != nil {
			return err
		}
		if err := cl.Do(ctx, http.MethodPost, "http://unix/api/v0/cancel/"+id, nil, nil); err != nil {
			return NewExitError(1, fmt.Errorf("cancel request failed: %w", err))
		}
		fmt.Fprintf(c.App.Writer, "cancelled %s\n", id)
		return nil
	},
}

var DrainCommand = cli.Command{
	Name:      "drain",
	Usage:     "Stop admitting new builds to a worker",
	ArgsUsage: "<worker-id>",
	Flags:     clientFlags(),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		id := c.Args().First()
		if id == "" {
			return NewExitError(64, fmt.Errorf("usage: rch drain <worker-id>"))
		}

		cl, err := dial(ctx, c)
		if err != nil {
			return err
		}
		if err := cl.Do(ctx, http.MethodPost, "http://unix/api/v0/drain/"+id, nil, nil); err != nil {
			return NewExitError(1, fmt.Errorf("drain request failed: %w", err))
		}
		fmt.Fprintf(c.App.Writer, "draining %s\n", id)
		return nil
	},
}
