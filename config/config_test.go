package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `assignment:
  use_ml_assignment: true
  min_success_threshold: 0.7
  max_capacity_ratio: 1.5
  enable_dynamic_weights: true
  weight_success: 0.6
  weight_confidence: 0.4
model:
  enable_enhanced_model: true
  enable_performance_tracking: true
  learn_skill_compat: true
  rule_weight: 0.3
store:
  backend: "postgres"
  csv_dir: "/var/lib/dispatchd"
  postgres:
    host: "db.internal"
    port: 5432
    user: "dispatchd"
    password: "secret"
    database: "fieldops"
metrics:
  prometheus: true
  influx:
    enabled: true
    url: "http://influx:8086"
    token: "tok"
    org: "fieldops"
    bucket: "dispatch"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"use_ml_assignment", cfg.Assignment.UseMLAssignment, true},
		{"min_success_threshold", cfg.Assignment.MinSuccessThreshold, 0.7},
		{"max_capacity_ratio", cfg.Assignment.MaxCapacityRatio, 1.5},
		{"enable_dynamic_weights", cfg.Assignment.EnableDynamicWeights, true},
		{"weight_success", cfg.Assignment.WeightSuccess, 0.6},
		{"enable_enhanced_model", cfg.Model.EnableEnhancedModel, true},
		{"learn_skill_compat", cfg.Model.LearnSkillCompat, true},
		{"rule_weight", cfg.Model.RuleWeight, 0.3},
		{"store.backend", cfg.Store.Backend, "postgres"},
		{"store.csv_dir", cfg.Store.CSVDir, "/var/lib/dispatchd"},
		{"postgres.host", cfg.Store.Postgres.Host, "db.internal"},
		{"postgres.port", cfg.Store.Postgres.Port, 5432},
		{"metrics.prometheus", cfg.Metrics.Prometheus, true},
		{"influx.bucket", cfg.Metrics.Influx.Bucket, "dispatch"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "assignment: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Assignment.MinSuccessThreshold != 0.60 {
		t.Errorf("default threshold = %v", cfg.Assignment.MinSuccessThreshold)
	}
	if cfg.Assignment.MaxCapacityRatio != 1.2 {
		t.Errorf("default capacity ratio = %v", cfg.Assignment.MaxCapacityRatio)
	}
	if cfg.Assignment.WeightSuccess != 0.75 || cfg.Assignment.WeightConfidence != 0.25 {
		t.Errorf("default weights = %v/%v", cfg.Assignment.WeightSuccess, cfg.Assignment.WeightConfidence)
	}
	if cfg.Store.Backend != "csv" || cfg.Store.CSVDir != "data" {
		t.Errorf("default store = %+v", cfg.Store)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "assignment:\n  min_success_threshold: 0.5\n")
	t.Setenv("K_ASSIGNMENT__MIN_SUCCESS_THRESHOLD", "0.9")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Assignment.MinSuccessThreshold != 0.9 {
		t.Errorf("env override ignored, threshold = %v", cfg.Assignment.MinSuccessThreshold)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"threshold above one", "assignment:\n  min_success_threshold: 1.5\n"},
		{"capacity ratio below one", "assignment:\n  max_capacity_ratio: 0.5\n"},
		{"weights not summing to one", "assignment:\n  weight_success: 0.9\n  weight_confidence: 0.3\n"},
		{"negative weight", "assignment:\n  weight_success: 1.2\n  weight_confidence: -0.2\n"},
		{"rule weight above one", "model:\n  rule_weight: 2\n"},
		{"unknown backend", "store:\n  backend: \"mysql\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, "config.yaml", c.yaml)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load(writeConfig(t, "config.toml", "x = 1\n")); err == nil {
		t.Fatal("expected format error")
	}
}
