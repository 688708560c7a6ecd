package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rental_expiry_monitor/internal/domain/record"
)

// LoadKeywords returns the default column keywords, with per-field overrides from a YAML file
// when path is set. The file maps field names to keyword lists, for example:
//
//	remaining_days: [剩余天数, 剩余]
//	start_date: [起租日期]
func LoadKeywords(path string) (record.Keywords, error) {
	defaults := record.DefaultKeywords()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column keywords file: %w", err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse column keywords file %s: %w", path, err)
	}

	override := make(record.Keywords, len(raw))
	for name, words := range raw {
		field := record.Field(name)
		if !field.IsKnown() {
			return nil, fmt.Errorf("column keywords file %s: unknown field %q", path, name)
		}
		override[field] = words
	}
	return defaults.Merge(override), nil
}
