// Package config loads and validates loadwatch configuration.
//
// Configuration comes from three layers, lowest precedence first:
// built-in defaults, an optional YAML file, and environment variables.
// Layers are merged at load time; the resulting Config is treated as
// immutable afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// OracleConfig points the reasoning façade at its backing chat-completions
// service. An empty BaseURL means the oracle is unreachable and every call
// takes the deterministic fallback path.
type OracleConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// APIKey resolves the key from the configured environment variable.
func (o OracleConfig) APIKey() string {
	if o.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(o.APIKeyEnv)
}

// Config is the fully-resolved runtime configuration.
type Config struct {
	HTTPPort string

	// Investigation limits
	MaxParallel           int
	MaxChildDepth         int
	MaxIterationsPerAgent int

	// Confidence thresholds (hypothesis status, routing and synthesis gates)
	Thresholds models.Thresholds

	// Timing
	HeartbeatInterval     time.Duration
	InvestigationDeadline time.Duration
	AgentDeadline         time.Duration
	OracleTimeout         time.Duration
	ProbeDeadline         time.Duration            // default per-probe deadline
	ProbeDeadlines        map[string]time.Duration // capability → override

	Oracle OracleConfig

	// Routing holds the declarative intent/domain pattern tables.
	// The orchestrator compiles them at boot.
	Routing RoutingTables

	// DisabledSources names optional data sources switched off by the
	// YAML file or SOURCE_<NAME>_ENABLED=false.
	DisabledSources map[string]bool
}

// ProbeDeadlineFor returns the deadline for a capability, falling back to
// the global default.
func (c *Config) ProbeDeadlineFor(capability string) time.Duration {
	if d, ok := c.ProbeDeadlines[capability]; ok {
		return d
	}
	return c.ProbeDeadline
}

// SourceEnabled reports whether a data source is enabled.
func (c *Config) SourceEnabled(name string) bool {
	return !c.DisabledSources[name]
}

// Load builds the Config from built-in defaults, the optional YAML file at
// path (skipped when path is empty or missing), and environment variables.
func Load(path string) (*Config, error) {
	fileCfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	merged, err := mergeWithBuiltin(fileCfg)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		MaxParallel:           getEnvInt("MAX_PARALLEL", 5),
		MaxChildDepth:         getEnvInt("MAX_CHILD_DEPTH", 2),
		MaxIterationsPerAgent: getEnvInt("MAX_ITERATIONS_PER_AGENT", 5),
		Thresholds: models.Thresholds{
			High: getEnvFloat("HIGH_CONFIDENCE", 0.85),
			Med:  getEnvFloat("MED_CONFIDENCE", 0.60),
			Low:  getEnvFloat("LOW_CONFIDENCE", 0.10),
		},
		HeartbeatInterval:     getEnvMillis("HEARTBEAT_INTERVAL_MS", 2000),
		InvestigationDeadline: getEnvMillis("INVESTIGATION_DEADLINE_MS", 300000),
		AgentDeadline:         getEnvMillis("AGENT_DEADLINE_MS", 90000),
		OracleTimeout:         getEnvMillis("ORACLE_TIMEOUT_MS", 30000),
		ProbeDeadline:         getEnvMillis("PROBE_DEADLINE_MS", 15000),
		ProbeDeadlines:        make(map[string]time.Duration),
		Oracle: OracleConfig{
			BaseURL:     getEnv("ORACLE_BASE_URL", merged.Oracle.BaseURL),
			APIKeyEnv:   getEnv("ORACLE_API_KEY_ENV", orDefault(merged.Oracle.APIKeyEnv, "ORACLE_API_KEY")),
			Model:       getEnv("ORACLE_MODEL", merged.Oracle.Model),
			Temperature: merged.Oracle.Temperature,
		},
		Routing:         merged.Routing,
		DisabledSources: make(map[string]bool),
	}

	for capability, ms := range merged.ProbeDeadlinesMS {
		cfg.ProbeDeadlines[capability] = time.Duration(ms) * time.Millisecond
	}
	for name, src := range merged.Sources {
		if src.Enabled != nil && !*src.Enabled {
			cfg.DisabledSources[name] = true
		}
	}
	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("MAX_PARALLEL must be at least 1, got %d", c.MaxParallel)
	}
	if c.MaxIterationsPerAgent < 1 {
		return fmt.Errorf("MAX_ITERATIONS_PER_AGENT must be at least 1, got %d", c.MaxIterationsPerAgent)
	}
	if c.MaxChildDepth < 0 {
		return fmt.Errorf("MAX_CHILD_DEPTH must not be negative, got %d", c.MaxChildDepth)
	}
	t := c.Thresholds
	if !(t.Low < t.Med && t.Med < t.High) || t.Low < 0 || t.High > 1 {
		return fmt.Errorf("confidence thresholds must satisfy 0 <= low < med < high <= 1, got low=%.2f med=%.2f high=%.2f",
			t.Low, t.Med, t.High)
	}
	if len(c.Routing.Intents) == 0 || len(c.Routing.Domains) == 0 {
		return fmt.Errorf("routing tables must not be empty")
	}
	return nil
}

// applyEnvOverrides handles the dynamic environment knobs:
// PROBE_DEADLINE_MS_<CAPABILITY> and SOURCE_<NAME>_ENABLED.
// Capability and source names are upper-cased with dashes replaced by
// underscores in the variable name.
func applyEnvOverrides(cfg *Config) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(key, "PROBE_DEADLINE_MS_"):
			capability := envToName(strings.TrimPrefix(key, "PROBE_DEADLINE_MS_"))
			if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
				cfg.ProbeDeadlines[capability] = time.Duration(ms) * time.Millisecond
			}
		case strings.HasPrefix(key, "SOURCE_") && strings.HasSuffix(key, "_ENABLED"):
			name := envToName(strings.TrimSuffix(strings.TrimPrefix(key, "SOURCE_"), "_ENABLED"))
			if enabled, err := strconv.ParseBool(value); err == nil {
				if enabled {
					delete(cfg.DisabledSources, name)
				} else {
					cfg.DisabledSources[name] = true
				}
			}
		}
	}
}

// envToName converts an env-style suffix (UPPER_SNAKE) to the kebab-case
// names sources and capabilities use.
func envToName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "-")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvMillis(key string, fallbackMS int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMS)) * time.Millisecond
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
