package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig declares one connected datasource.
// Type selects the registered adapter ("postgres", "sqlserver", "snowflake");
// Settings carries the adapter-specific connection fields.
type SourceConfig struct {
	SourceID string         `yaml:"source_id"`
	Type     string         `yaml:"type"`
	Settings map[string]any `yaml:"settings"`
}

// KeywordRule maps a query substring to a source preference.
// Rules are configuration so that adding a source needs no code change.
type KeywordRule struct {
	Pattern  string `yaml:"pattern"`
	SourceID string `yaml:"source_id"`
}

// SourcesFile is the parsed shape of sources.yaml.
type SourcesFile struct {
	Sources  []SourceConfig `yaml:"sources"`
	Keywords []KeywordRule  `yaml:"keywords"`
}

// LoadSources reads the datasource declarations and keyword rules.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var sf SourcesFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	seen := make(map[string]bool, len(sf.Sources))
	for _, s := range sf.Sources {
		if s.SourceID == "" {
			return nil, fmt.Errorf("source with type %q is missing source_id", s.Type)
		}
		if seen[s.SourceID] {
			return nil, fmt.Errorf("duplicate source_id %q", s.SourceID)
		}
		seen[s.SourceID] = true
	}

	return &sf, nil
}

// Source returns the declaration for a source id, or nil if not declared.
func (sf *SourcesFile) Source(sourceID string) *SourceConfig {
	for i := range sf.Sources {
		if sf.Sources[i].SourceID == sourceID {
			return &sf.Sources[i]
		}
	}
	return nil
}
