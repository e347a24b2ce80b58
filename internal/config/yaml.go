package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseYAMLFile reads a flat YAML mapping of option names to scalars or
// lists of scalars.
func parseYAMLFile(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	values := make(Values, len(raw))
	for name, v := range raw {
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				s, err := stringify(item)
				if err != nil {
					return nil, fmt.Errorf("option '%s': %w", name, err)
				}
				parts = append(parts, s)
			}
			values[name] = strings.Join(parts, ",")
			continue
		}
		s, err := stringify(v)
		if err != nil {
			return nil, fmt.Errorf("option '%s': %w", name, err)
		}
		values[name] = s
	}
	return values, nil
}
