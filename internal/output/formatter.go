// Package output renders command results for machine consumption.
package output

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Format represents an output format type.
type Format string

const (
	// FormatJSON is the default machine-readable format.
	FormatJSON Format = "json"
	// FormatYAML renders results as YAML.
	FormatYAML Format = "yaml"
)

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: json, yaml)", format)
	}
}

// Formatted renders data in the requested format. JSON output is indented
// with keys sorted, suitable for piping into other tooling.
func Formatted(data any, format Format) (string, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to render JSON: %w", err)
		}
		return string(out), nil

	case FormatYAML:
		out, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to render YAML: %w", err)
		}
		return string(out), nil

	default:
		return "", fmt.Errorf("unsupported output format: %s (supported: json, yaml)", format)
	}
}
