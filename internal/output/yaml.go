package output

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats the plan as YAML.
type YAMLFormatter struct{}

// FormatPlan formats the plan entries as a YAML sequence.
func (f *YAMLFormatter) FormatPlan(entries []PlanEntry) (string, error) {
	data, err := yaml.Marshal(toDocuments(entries))
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan to YAML: %w", err)
	}
	return string(data), nil
}
