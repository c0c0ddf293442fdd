// Package output provides formatters for displaying the provisioning plan
// in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/gngordon/vmdeploy/internal/config"
	"github.com/gngordon/vmdeploy/internal/hardware"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"
	// FormatYAML is a YAML format for declarative use.
	FormatYAML Format = "yaml"
	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// PlanEntry is one VM of the provisioning plan: the loaded spec plus the
// hardware layout that would be applied.
type PlanEntry struct {
	Spec   config.VMSpec
	Layout hardware.Layout
}

// Plan derives the full provisioning plan for a VM list.
func Plan(specs []config.VMSpec) []PlanEntry {
	entries := make([]PlanEntry, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, PlanEntry{
			Spec:   spec,
			Layout: hardware.Derive(spec.CPUCount, spec.GuestID),
		})
	}
	return entries
}

// Formatter formats a provisioning plan for output.
type Formatter interface {
	// FormatPlan formats the plan entries for a VM list.
	FormatPlan(entries []PlanEntry) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format
	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	switch Format(format) {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
