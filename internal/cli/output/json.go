// Package output provides output formatting for drawhub-cli.
package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter renders data as indented JSON.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
