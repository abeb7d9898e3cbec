// Package command provides CLI command definitions for drawhub-cli.
//
// It uses urfave/cli/v2 for command parsing. Commands talk to the
// drawhub-server status API over HTTP.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/oxleyk/drawhub/internal/cli/connection"
	"github.com/oxleyk/drawhub/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "drawhub-cli",
		Usage:   "drawhub server administration tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			HealthCommand(),
			SessionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "drawhub-server status API address",
			EnvVars: []string{"DRAWHUB_SERVER"},
			Value:   "localhost:27750",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			Value:   "table",
		},
	}
}

// GlobalFlags holds parsed global flag values.
type GlobalFlags struct {
	Server string
	Output string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server: c.String("server"),
		Output: c.String("output"),
	}
}

// NewClient builds a status API client from the global flags.
func NewClient(c *cli.Context) *connection.Client {
	return connection.NewClient(c.String("server"))
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
