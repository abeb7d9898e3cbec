// Package output provides output formatting for drawhub-cli.
package output

import "io"

// Format identifies an output format.
type Format string

// Supported output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Formatter renders a value to a writer.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// NewFormatter returns the formatter for the given format, defaulting
// to the table formatter.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{}
	default:
		return &TableFormatter{}
	}
}
