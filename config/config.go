// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fieldops/dispatchd/infra/metrics"
	"github.com/fieldops/dispatchd/infra/store"
)

type Config struct {
	Assignment AssignmentConfig `json:"assignment"`
	Model      ModelConfig      `json:"model"`
	Store      store.Config     `json:"store"`
	Metrics    metrics.Config   `json:"metrics"`
}

// AssignmentConfig drives candidate generation, scoring and commits.
// These values are typically produced by the threshold-selection tooling
// upstream; the engine only validates and consumes them.
type AssignmentConfig struct {
	// UseMLAssignment selects the exhaustive ML strategy over cascading
	// skill levels.
	UseMLAssignment bool `json:"use_ml_assignment"`
	// MinSuccessThreshold rejects ML candidates predicted below it.
	MinSuccessThreshold float64 `json:"min_success_threshold"`
	// MaxCapacityRatio bounds a technician's running assignments at
	// capacity times this ratio.
	MaxCapacityRatio float64 `json:"max_capacity_ratio"`

	// EnableDynamicWeights grid-searches the score weights against history.
	EnableDynamicWeights bool `json:"enable_dynamic_weights"`
	// UseSuccessOnly scores candidates purely on predicted success.
	UseSuccessOnly   bool    `json:"use_success_only"`
	WeightSuccess    float64 `json:"weight_success"`
	WeightConfidence float64 `json:"weight_confidence"`

	IdealDistanceKM float64 `json:"ideal_distance_km"`
	MaxDistanceKM   float64 `json:"max_distance_km"`
}

// ModelConfig drives estimator training.
type ModelConfig struct {
	// EnableEnhancedModel allows the boosted model on deep history.
	EnableEnhancedModel bool `json:"enable_enhanced_model"`
	// EnablePerformanceTracking wraps the estimator with the
	// per-technician success-rate adjustment.
	EnablePerformanceTracking bool `json:"enable_performance_tracking"`
	// LearnSkillCompat derives skill-pair compatibility scores from history
	// instead of relying on the static taxonomy alone.
	LearnSkillCompat bool `json:"learn_skill_compat"`
	// LearnMultipliers derives skill-tier multipliers from history.
	LearnMultipliers bool `json:"learn_multipliers"`
	// RuleWeight blends the rule table into a trained model's output.
	RuleWeight float64 `json:"rule_weight"`
}

// Load reads the config file, applies K_ environment overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides. The provider splits the returned key
	// on "__" to nest sections, so the callback must leave it intact.
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), "k_")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Assignment.MinSuccessThreshold == 0 {
		c.Assignment.MinSuccessThreshold = 0.60
	}
	if c.Assignment.MaxCapacityRatio == 0 {
		c.Assignment.MaxCapacityRatio = 1.2
	}
	if c.Assignment.WeightSuccess == 0 && c.Assignment.WeightConfidence == 0 {
		c.Assignment.WeightSuccess = 0.75
		c.Assignment.WeightConfidence = 0.25
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "csv"
	}
	if c.Store.CSVDir == "" {
		c.Store.CSVDir = "data"
	}
}

// Validate rejects configurations the engine must not run with. These are
// fatal: nothing is loaded or assigned past a validation error.
func (c Config) Validate() error {
	a := c.Assignment
	if a.MinSuccessThreshold < 0 || a.MinSuccessThreshold > 1 {
		return fmt.Errorf("min_success_threshold %.2f outside [0, 1]", a.MinSuccessThreshold)
	}
	if a.MaxCapacityRatio < 1 {
		return fmt.Errorf("max_capacity_ratio %.2f below 1", a.MaxCapacityRatio)
	}
	if a.WeightSuccess < 0 || a.WeightConfidence < 0 {
		return fmt.Errorf("score weights must be non-negative")
	}
	if sum := a.WeightSuccess + a.WeightConfidence; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("score weights sum to %.3f, want 1", sum)
	}
	if c.Model.RuleWeight < 0 || c.Model.RuleWeight > 1 {
		return fmt.Errorf("rule_weight %.2f outside [0, 1]", c.Model.RuleWeight)
	}
	if c.Store.Backend != "csv" && c.Store.Backend != "postgres" {
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
