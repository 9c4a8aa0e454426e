package clicommand

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli"

	"github.com/rchlabs/rch/internal/config"
	"github.com/rchlabs/rch/rchapi"
)

const workersDescription = `Usage:

    rch workers list
    rch workers add --host <host> --user <user> [--port 22] [--capacity 1] [--tags tag1,tag2] <id>
    rch workers remove <id>

Description:

Reads and writes the daemon's worker definitions file directly. Changes take
effect the next time rchd is restarted; there is no hot reload.`

var WorkersCommand = cli.Command{
	Name:        "workers",
	Usage:       "Manage the configured worker pool",
	Description: workersDescription,
	Subcommands: []cli.Command{
		workersListCommand,
		workersAddCommand,
		workersRemoveCommand,
	},
}

func workersPath(c *cli.Context) (string, error) {
	cfg := config.Default()
	if _, _, err := config.Load(c, &cfg); err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	return cfg.WorkersPath, nil
}

var workersListCommand = cli.Command{
	Name:  "list",
	Usage: "List configured workers",
	Flags: clientFlags(),
	Action: func(c *cli.Context) error {
		path, err := workersPath(c)
		if err != nil {
			return NewExitError(1, err)
		}
		workers, err := config.LoadWorkers(path)
		if err != nil {
			return NewExitError(1, fmt.Errorf("reading workers file: %w", err))
		}

		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tHOST\tPORT\tUSER\tCAPACITY\tPRIORITY\tTAGS")
		for _, w := range workers {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
				w.ID, w.Host, w.Port, w.User, w.Capacity, w.Priority, strings.Join(w.Tags, ","))
		}
		return tw.Flush()
	},
}

var workersAddCommand = cli.Command{
	Name:      "add",
	Usage:     "Add or replace a worker definition",
	ArgsUsage: "<id>",
	Flags: append(clientFlags(),
		cli.StringFlag{Name: "host", Usage: "Worker hostname or address"},
		cli.StringFlag{Name: "user", Usage: "SSH username"},
		cli.IntFlag{Name: "port", Value: 22, Usage: "SSH port"},
		cli.IntFlag{Name: "capacity", Value: 1, Usage: "Number of concurrent builds this worker accepts"},
		cli.IntFlag{Name: "priority", Usage: "Selection priority; higher is preferred"},
		cli.StringFlag{Name: "tags", Usage: "Comma-separated toolchain tags this worker can serve"},
	),
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return NewExitError(64, fmt.Errorf("usage: rch workers add --host <host> --user <user> <id>"))
		}
		host := c.String("host")
		user := c.String("user")
		if host == "" || user == "" {
			return NewExitError(64, fmt.Errorf("--host and --user are required"))
		}

		path, err := workersPath(c)
		if err != nil {
			return NewExitError(1, err)
		}
		workers, err := config.LoadWorkers(path)
		if err != nil {
			return NewExitError(1, fmt.Errorf("reading workers file: %w", err))
		}

		var tags []string
		if raw := c.String("tags"); raw != "" {
			tags = strings.Split(raw, ",")
		}
		next := rchapi.Worker{
			ID:       id,
			Host:     host,
			Port:     c.Int("port"),
			User:     user,
			Capacity: c.Int("capacity"),
			Tags:     tags,
			Priority: c.Int("priority"),
		}

		replaced := false
		for i, w := range workers {
			if w.ID == id {
				workers[i] = next
				replaced = true
				break
			}
		}
		if !replaced {
			workers = append(workers, next)
		}

		if err := config.SaveWorkers(path, workers); err != nil {
			return NewExitError(1, fmt.Errorf("writing workers file: %w", err))
		}
		verb := "added"
		if replaced {
			verb = "updated"
		}
		fmt.Fprintf(c.App.Writer, "%s worker %s\n", verb, id)
		return nil
	},
}

var workersRemoveCommand = cli.Command{
	Name:      "remove",
	Usage:     "Remove a worker definition",
	ArgsUsage: "<id>",
	Flags:     clientFlags(),
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return NewExitError(64, fmt.Errorf("usage: rch workers remove <id>"))
		}

		path, err := workersPath(c)
		if err != nil {
			return NewExitError(1, err)
		}
		workers, err := config.LoadWorkers(path)
		if err != nil {
			return NewExitError(1, fmt.Errorf("reading workers file: %w", err))
		}

		kept := workers[:0]
		found := false
		for _, w := range workers {
			if w.ID == id {
				found = true
				continue
			}
			kept = append(kept, w)
		}
		if !found {
			return NewExitError(1, fmt.Errorf("no worker %q configured", id))
		}

		if err := config.SaveWorkers(path, kept); err != nil {
			return NewExitError(1, fmt.Errorf("writing workers file: %w", err))
		}
		fmt.Fprintf(c.App.Writer, "removed worker %s\n", id)
		return nil
	},
}
