package clicommand

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rchlabs/rch/rchapi"
	"github.com/urfave/cli"
)

const buildDescription = `Usage:

    rch build -- <command...>

Description:

Submits a command as a BuildRequest to rchd. If the classifier judges it a
compilation, rchd offloads it to a worker over the transfer protocol;
otherwise rchd refuses the request and the command is not run. Prints one
line per event as it streams in, and exits non-zero if the build's terminal
status was not "completed".`

var BuildCommand = cli.Command{
	Name:        "build",
	Usage:       "Run a command, offloaded to a worker if the classifier approves it",
	Description: buildDescription,
	Flags: append(clientFlags(),
		cli.BoolFlag{Name: "allow-local-fallback", Usage: "When no worker is available, end the event stream with reason admission_denied instead of no_workers_available; the command is not run locally"},
	),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		raw := commandFromArgs(c.Args())
		if raw == "" {
			return NewExitError(64, fmt.Errorf("usage: rch build -- <command...>"))
		}
		workDir, err := currentWorkDir()
		if err != nil {
			return NewExitError(1, err)
		}

		cl, err := dial(ctx, c)
		if err != nil {
			return err
		}

		reqBody := map[string]any{
			"raw":                  raw,
			"work_dir":             workDir,
			"allow_local_fallback": c.Bool("allow-local-fallback"),
		}

		rc, err := cl.DoStream(ctx, http.MethodPost, "http://unix/api/v0/build", reqBody)
		if err != nil {
			return NewExitError(1, fmt.Errorf("build request failed: %w", err))
		}
		defer func() { _ = rc.Close() }()

		var lastStatus string
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			var ev struct {
				Status rchapi.BuildStatus `json:"status"`
				Detail string             `json:"detail"`
				Reason string             `json:"reason"`
			}
			if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
				continue
			}
			lastStatus = ev.Status.String()
			if ev.Detail != "" {
				fmt.Fprintf(c.App.Writer, "%s: %s\n", ev.Status, ev.Detail)
			} else {
				fmt.Fprintln(c.App.Writer, ev.Status)
			}
			if ev.Reason != "" {
				fmt.Fprintf(c.App.Writer, "  reason: %s\n", ev.Reason)
			}
		}
		if err := scanner.Err(); err != nil {
			return NewExitError(1, fmt.Errorf("reading build event stream: %w", err))
		}

		if lastStatus != "completed" {
			return NewExitError(1, fmt.Errorf("build did not complete: last status %q", lastStatus))
		}
		return nil
	},
}
