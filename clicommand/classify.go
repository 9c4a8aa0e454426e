package clicommand

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/urfave/cli"
)

const classifyDescription = `Usage:

    rch classify -- <command...>

Description:

Asks rchd whether a shell command would be offloaded to a remote worker,
without actually running it. Prints the verdict, the classifier tier that
decided it, and the confidence score.`

var ClassifyCommand = cli.Command{
	Name:        "classify",
	Usage:       "Classify a command without running it",
	Description: classifyDescription,
	Flags:       clientFlags(),
	Action: func(c *cli.Context) error {
		ctx := context.Background()
		raw := commandFromArgs(c.Args())
		if raw == "" {
			return NewExitError(64, fmt.Errorf("usage: rch classify -- <command...>"))
		}
		workDir, err := currentWorkDir()
		if err != nil {
			return NewExitError(1, err)
		}

		cl, err := dial(ctx, c)
		if err != nil {
			return err
		}

		reqBody := map[string]any{"raw": raw, "work_dir": workDir}
		var resp struct {
			Verdict    string  `json:"verdict"`
			Tier       int     `json:"tier"`
			Confidence float64 `json:"confidence"`
			Reason     string  `json:"reason"`
		}
		if err := cl.Do(ctx, http.MethodPost, "http://unix/api/v0/classify", reqBody, &resp); err != nil {
			return NewExitError(1, fmt.Errorf("classify request failed: %w", err))
		}

		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}
