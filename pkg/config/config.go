package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/fridayops/crossing/pkg/models"
)

// Embedded default configuration
// Use 'go generate ./pkg/config' to update from root config.toml
//
//go:generate cp ../../config.toml default_config.toml
//go:embed default_config.toml
var embeddedConfigData []byte

// Config holds the analyzer configuration.
type Config struct {
	Analysis    AnalysisConfig    `toml:"analysis"`
	RiskBanding RiskBandingConfig `toml:"risk_banding"`
}

// AnalysisConfig holds the knobs the core accepts.
type AnalysisConfig struct {
	MaxCallDepth   int      `toml:"max_call_depth"`
	DetectImplicit bool     `toml:"detect_implicit"`
	MinRiskLevel   string   `toml:"min_risk_level"`
	AllowedTypes   []string `toml:"allowed_types"`
}

// RiskBandingConfig holds the tunable thresholds mapping scores to discrete
// risk levels. The mapping must stay monotonic in (distinct meanings,
// collapse fraction); these are the documented defaults.
type RiskBandingConfig struct {
	ElevatedMeanings int     `toml:"elevated_meanings"`
	ElevatedCollapse float64 `toml:"elevated_collapse"`
	HighMeanings     int     `toml:"high_meanings"`
	HighCollapse     float64 `toml:"high_collapse"`
}

// DefaultConfig returns the default configuration with optional local
// overrides. It always starts with the embedded config, then prefers a local
// config.toml when one exists.
func DefaultConfig() (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(embeddedConfigData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config: %w", err)
	}

	localConfigPaths := []string{
		"config.toml",
		"../config.toml",
		"../../config.toml",
	}

	for _, path := range localConfigPaths {
		if _, err := os.Stat(path); err == nil {
			local, err := LoadFromFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load local config %s: %v\n", path, err)
				break
			}
			return local, nil
		}
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a TOML file.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return &cfg, nil
}

// MinRisk returns the parsed minimum risk level.
func (c *Config) MinRisk() (models.RiskLevel, error) {
	return models.ParseRiskLevel(c.Analysis.MinRiskLevel)
}

// TypeAllowed reports whether a caught type name is excluded from scoring.
func (c *Config) TypeAllowed(name string) bool {
	for _, t := range c.Analysis.AllowedTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Validate rejects a configuration before any analysis starts. Validation
// failures are fatal; nothing is analyzed and no partial output is produced.
func (c *Config) Validate() error {
	if c.Analysis.MaxCallDepth <= 0 {
		return fmt.Errorf("%w: max_call_depth must be positive, got %d",
			models.ErrInvalidConfiguration, c.Analysis.MaxCallDepth)
	}
	if _, err := c.MinRisk(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidConfiguration, err)
	}
	if c.RiskBanding.ElevatedMeanings < 2 || c.RiskBanding.HighMeanings < c.RiskBanding.ElevatedMeanings {
		return fmt.Errorf("%w: risk banding thresholds must be monotonic", models.ErrInvalidConfiguration)
	}
	if c.RiskBanding.HighCollapse < c.RiskBanding.ElevatedCollapse {
		return fmt.Errorf("%w: high_collapse must be >= elevated_collapse", models.ErrInvalidConfiguration)
	}
	return nil
}
