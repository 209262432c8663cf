package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// RoutingPattern is one row of a routing table: a regular expression, the
// intent or domain tag it votes for, and the weight of that vote.
type RoutingPattern struct {
	Pattern string  `yaml:"pattern"`
	Tag     string  `yaml:"tag"`
	Weight  float64 `yaml:"weight"`
}

// RoutingTables holds the declarative intent and domain pattern tables.
type RoutingTables struct {
	Intents []RoutingPattern `yaml:"intents"`
	Domains []RoutingPattern `yaml:"domains"`
}

// SourceFileConfig is the per-source section of the YAML file.
type SourceFileConfig struct {
	Enabled *bool `yaml:"enabled"`
}

// fileConfig is the loadwatch.yaml structure.
type fileConfig struct {
	Oracle           OracleConfig                `yaml:"oracle"`
	Routing          RoutingTables               `yaml:"routing"`
	ProbeDeadlinesMS map[string]int              `yaml:"probe_deadlines_ms"`
	Sources          map[string]SourceFileConfig `yaml:"sources"`
}

// loadFile parses the YAML config file at path. A missing file (or empty
// path) is not an error — the built-in defaults carry the configuration.
func loadFile(path string) (*fileConfig, error) {
	if path == "" {
		return &fileConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeWithBuiltin overlays the file config on the built-in defaults.
// Non-empty file sections win; routing tables from the file replace the
// built-in tables wholesale (partial pattern merges are too surprising).
func mergeWithBuiltin(file *fileConfig) (*fileConfig, error) {
	merged := builtinConfig()
	if err := mergo.Merge(merged, file, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge config layers: %w", err)
	}
	return merged, nil
}
