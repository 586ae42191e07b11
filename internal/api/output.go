package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat is the encoding used for command results.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// format is set from the root command's --output flag.
var format = OutputFormatYAML

// SetOutputFormat selects the encoding for Output. Unknown names are rejected
// and leave the current format unchanged.
func SetOutputFormat(name string) error {
	switch f := OutputFormat(name); f {
	case OutputFormatYAML, OutputFormatJSON:
		format = f
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want yaml or json)", name)
	}
}

// Output writes data to stdout in the selected format.
func Output(data any) error {
	return OutputTo(os.Stdout, format, data)
}

// OutputTo writes data to the given writer in the specified format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		plain, err := toPlain(data)
		if err != nil {
			return fmt.Errorf("failed to convert output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(plain)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// toPlain round-trips data through JSON so the YAML encoder sees the same
// field names and omissions as the JSON encoder.
func toPlain(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
