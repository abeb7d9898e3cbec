// Package command provides CLI command definitions for drawhub-cli.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/oxleyk/drawhub/internal/cli/connection"
	"github.com/oxleyk/drawhub/internal/cli/output"
)

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check server health",
		Action: healthAction,
	}
}

func healthAction(c *cli.Context) error {
	client := NewClient(c)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
		Time     string `json:"time"`
	}
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	if output.Format(flags.Output) == output.FormatJSON {
		return (&output.JSONFormatter{}).Format(c.App.Writer, result)
	}

	fmt.Fprintf(c.App.Writer, "%s: %s (%d sessions)\n",
		client.BaseURL(), result.Status, result.Sessions)
	return nil
}
