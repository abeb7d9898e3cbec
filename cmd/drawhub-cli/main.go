// Package main provides the entry point for drawhub-cli, the
// command-line administration tool for drawhub-server.
package main

import (
	"fmt"
	"os"

	"github.com/oxleyk/drawhub/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
