// Package config provides configuration management for the Pickwise pipeline.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	v.SetEnvPrefix("PICKWISE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional
// fields, including the full per-sport threshold tables. The file is
// optional; environment variables and defaults are enough for development.
func LoadWithDefaults(configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v.SetConfigType("yaml")
	v.SetEnvPrefix("PICKWISE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If file doesn't exist, continue with defaults and environment variables

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pickwise")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.model_version", "totals-v2")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9100)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("simulation.default_sample_count", 25000)
	v.SetDefault("simulation.sample_tiers", []int{10000, 25000, 50000, 100000})
	v.SetDefault("simulation.workers", 8)
	v.SetDefault("simulation.chunk_size", 2500)
	v.SetDefault("simulation.budget_millis", 2000)

	v.SetDefault("feedback.snapshot_cron", "0 6 * * *")
	v.SetDefault("feedback.retry_sweep_seconds", 300)
	v.SetDefault("feedback.baseline_ttl_hours", 24)
	v.SetDefault("feedback.min_gradings", 5)
	// Snapshots rebuild daily; twice that before readiness degrades.
	v.SetDefault("feedback.snapshot_max_age_hours", 48)

	v.SetDefault("odds_feed.timeout_seconds", 30)
	v.SetDefault("odds_feed.max_retries", 4)
	v.SetDefault("odds_feed.rate_limit", 10.0)
	v.SetDefault("odds_feed.circuit_breaker_max", 5)

	v.SetDefault("param_service.timeout_seconds", 10)

	v.SetDefault("features.live_context_enabled", true)
	v.SetDefault("features.decomposition_enabled", true)
	v.SetDefault("features.publishing_enabled", true)

	for sport, table := range defaultSportTables() {
		prefix := "sports." + sport + "."
		for key, value := range table {
			v.SetDefault(prefix+key, value)
		}
	}
}

// defaultSportTables returns the illustrative per-sport defaults. Production
// deployments override these from config; nothing in the pipeline hard-codes
// them.
func defaultSportTables() map[string]map[string]interface{} {
	return map[string]map[string]interface{}{
		"basketball": {
			"line_min":               120.0,
			"line_max":               320.0,
			"freshness_hours":        24.0,
			"clamp_z":                2.0,
			"extreme_z":              3.0,
			"relaxed_z":              2.5,
			"high_confidence":        70.0,
			"live_pace_delta":        15.0,
			"max_points_per_minute":  3.5,
			"game_minutes":           48.0,
			"pace_delta_threshold":   2.0,
			"efficiency_threshold":   0.5,
			"drift_tolerance":        1.5,
			"deviation_soft":         4.0,
			"deviation_hard":         8.0,
			"max_deviation_penalty":  0.10,
			"variance_z_soft":        1.25,
			"variance_z_hard":        1.40,
			"variance_z_block":       1.60,
			"baseline_cov":           0.055,
			"cov_spread":             0.02,
			"min_data_quality":       0.7,
			"bootstrap_prob_cap":     0.60,
			"bootstrap_edge_penalty": 0.15,
			"miss_minor_cut":         6.0,
			"miss_moderate_cut":      12.0,
			"pick_gates": map[string]interface{}{
				"min_probability": 0.58,
				"min_edge":        3.0,
				"min_confidence":  65.0,
				"max_variance_z":  1.25,
				"max_deviation":   6.0,
			},
			"lean_gates": map[string]interface{}{
				"min_probability": 0.55,
				"min_edge":        2.0,
				"min_confidence":  55.0,
				"max_variance_z":  1.40,
				"max_deviation":   8.0,
			},
		},
		"football": {
			"line_min":               20.0,
			"line_max":               90.0,
			"freshness_hours":        72.0,
			"clamp_z":                2.0,
			"extreme_z":              3.0,
			"relaxed_z":              2.5,
			"high_confidence":        70.0,
			"live_pace_delta":        10.0,
			"max_points_per_minute":  1.9,
			"game_minutes":           60.0,
			"pace_delta_threshold":   1.5,
			"efficiency_threshold":   0.4,
			"drift_tolerance":        1.0,
			"deviation_soft":         3.0,
			"deviation_hard":         6.0,
			"max_deviation_penalty":  0.10,
			"variance_z_soft":        1.25,
			"variance_z_hard":        1.40,
			"variance_z_block":       1.60,
			"baseline_cov":           0.20,
			"cov_spread":             0.05,
			"min_data_quality":       0.7,
			"bootstrap_prob_cap":     0.60,
			"bootstrap_edge_penalty": 0.15,
			"miss_minor_cut":         4.0,
			"miss_moderate_cut":      9.0,
			"pick_gates": map[string]interface{}{
				"min_probability": 0.58,
				"min_edge":        2.5,
				"min_confidence":  65.0,
				"max_variance_z":  1.25,
				"max_deviation":   4.5,
			},
			"lean_gates": map[string]interface{}{
				"min_probability": 0.55,
				"min_edge":        1.5,
				"min_confidence":  55.0,
				"max_variance_z":  1.40,
				"max_deviation":   6.0,
			},
		},
	}
}
