// Package config provides configuration management for the Pickwise pipeline.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App          AppConfig              `mapstructure:"app" validate:"required"`
	Database     DatabaseConfig         `mapstructure:"database" validate:"required"`
	OddsFeed     OddsFeedConfig         `mapstructure:"odds_feed" validate:"required"`
	LiveFeed     LiveFeedConfig         `mapstructure:"live_feed"`
	ParamService ParamServiceConfig     `mapstructure:"param_service" validate:"required"`
	Simulation   SimulationConfig       `mapstructure:"simulation" validate:"required"`
	Sports       map[string]SportConfig `mapstructure:"sports" validate:"required,min=1"`
	Feedback     FeedbackConfig         `mapstructure:"feedback" validate:"required"`
	Metrics      MetricsConfig          `mapstructure:"metrics" validate:"required"`
	Features     FeaturesConfig         `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name         string `mapstructure:"name" validate:"required"`
	Environment  string `mapstructure:"environment" validate:"required,environment"`
	LogLevel     string `mapstructure:"log_level" validate:"required,loglevel"`
	ModelVersion string `mapstructure:"model_version" validate:"required"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// DSN returns a PostgreSQL connection string for this database.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// OddsFeedConfig represents the odds-retrieval collaborator configuration
type OddsFeedConfig struct {
	BaseURL           string  `mapstructure:"base_url" validate:"required,url"`
	APIKey            string  `mapstructure:"api_key"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"required,gt=0"`
	CircuitBreakerMax int     `mapstructure:"circuit_breaker_max" validate:"required,gt=0"`
}

// LiveFeedConfig represents the live score stream configuration
type LiveFeedConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	StreamURL        string `mapstructure:"stream_url"`
	Token            string `mapstructure:"token"`
	ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
}

// ParamServiceConfig represents the upstream rate-parameter service
type ParamServiceConfig struct {
	HTTPURL        string `mapstructure:"http_url" validate:"required,url"`
	GRPCAddress    string `mapstructure:"grpc_address" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	UseTLS         bool   `mapstructure:"use_tls"`
}

// SimulationConfig represents simulation engine configuration
type SimulationConfig struct {
	DefaultSampleCount int   `mapstructure:"default_sample_count" validate:"required,gt=0"`
	SampleTiers        []int `mapstructure:"sample_tiers" validate:"required,min=1"`
	Workers            int   `mapstructure:"workers" validate:"required,gt=0"`
	ChunkSize          int   `mapstructure:"chunk_size" validate:"required,gt=0"`
	BudgetMillis       int   `mapstructure:"budget_millis" validate:"required,gt=0"`
}

// GateConfig holds the threshold set for one classification tier.
type GateConfig struct {
	MinProbability float64 `mapstructure:"min_probability" validate:"required,gt=0,lt=1"`
	MinEdge        float64 `mapstructure:"min_edge" validate:"required,gt=0"`
	MinConfidence  float64 `mapstructure:"min_confidence" validate:"required,gt=0,lte=100"`
	MaxVarianceZ   float64 `mapstructure:"max_variance_z" validate:"required,gt=0"`
	MaxDeviation   float64 `mapstructure:"max_deviation" validate:"required,gt=0"`
}

// SportConfig holds every sport-tunable threshold in the pipeline. The
// numbers are configuration data, not algorithmic constants.
type SportConfig struct {
	LineMin              float64    `mapstructure:"line_min" validate:"required,gt=0"`
	LineMax              float64    `mapstructure:"line_max" validate:"required,gt=0"`
	FreshnessHours       float64    `mapstructure:"freshness_hours" validate:"required,gt=0"`
	ClampZ               float64    `mapstructure:"clamp_z" validate:"required,gt=0"`
	ExtremeZ             float64    `mapstructure:"extreme_z" validate:"required,gt=0"`
	RelaxedZ             float64    `mapstructure:"relaxed_z" validate:"required,gt=0"`
	HighConfidence       float64    `mapstructure:"high_confidence" validate:"required,gt=0,lte=100"`
	LivePaceDelta        float64    `mapstructure:"live_pace_delta" validate:"required,gt=0"`
	MaxPointsPerMinute   float64    `mapstructure:"max_points_per_minute" validate:"required,gt=0"`
	GameMinutes          float64    `mapstructure:"game_minutes" validate:"required,gt=0"`
	PaceDeltaThreshold   float64    `mapstructure:"pace_delta_threshold" validate:"required,gt=0"`
	EfficiencyThreshold  float64    `mapstructure:"efficiency_threshold" validate:"required,gt=0"`
	DriftTolerance       float64    `mapstructure:"drift_tolerance" validate:"required,gt=0"`
	DeviationSoft        float64    `mapstructure:"deviation_soft" validate:"required,gt=0"`
	DeviationHard        float64    `mapstructure:"deviation_hard" validate:"required,gt=0"`
	MaxDeviationPenalty  float64    `mapstructure:"max_deviation_penalty" validate:"required,gt=0,lte=1"`
	VarianceZSoft        float64    `mapstructure:"variance_z_soft" validate:"required,gt=0"`
	VarianceZHard        float64    `mapstructure:"variance_z_hard" validate:"required,gt=0"`
	VarianceZBlock       float64    `mapstructure:"variance_z_block" validate:"required,gt=0"`
	BaselineCov          float64    `mapstructure:"baseline_cov" validate:"required,gt=0"`
	CovSpread            float64    `mapstructure:"cov_spread" validate:"required,gt=0"`
	MinDataQuality       float64    `mapstructure:"min_data_quality" validate:"required,gt=0,lte=1"`
	BootstrapProbCap     float64    `mapstructure:"bootstrap_prob_cap" validate:"required,gt=0,lt=1"`
	BootstrapEdgePenalty float64    `mapstructure:"bootstrap_edge_penalty" validate:"required,gt=0,lt=1"`
	MissMinorCut         float64    `mapstructure:"miss_minor_cut" validate:"required,gt=0"`
	MissModerateCut      float64    `mapstructure:"miss_moderate_cut" validate:"required,gt=0"`
	PickGates            GateConfig `mapstructure:"pick_gates" validate:"required"`
	LeanGates            GateConfig `mapstructure:"lean_gates" validate:"required"`
}

// FeedbackConfig represents the offline feedback job configuration
type FeedbackConfig struct {
	SnapshotCron        string `mapstructure:"snapshot_cron" validate:"required"`
	RetrySweepSeconds   int    `mapstructure:"retry_sweep_seconds" validate:"required,gt=0"`
	BaselineTTLHours    int    `mapstructure:"baseline_ttl_hours" validate:"required,gt=0"`
	MinGradings         int    `mapstructure:"min_gradings" validate:"required,gt=0"`
	SnapshotMaxAgeHours int    `mapstructure:"snapshot_max_age_hours" validate:"required,gt=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	LiveContextEnabled   bool `mapstructure:"live_context_enabled"`
	DecompositionEnabled bool `mapstructure:"decomposition_enabled"`
	PublishingEnabled    bool `mapstructure:"publishing_enabled"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Sport returns the threshold table for a sport.
func (c *Config) Sport(name string) (SportConfig, error) {
	sc, ok := c.Sports[name]
	if !ok {
		return SportConfig{}, fmt.Errorf("no configuration for sport %q", name)
	}
	return sc, nil
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// SimulationTierValid reports whether sampleCount is one of the configured
// tiers.
func (c *Config) SimulationTierValid(sampleCount int) bool {
	for _, tier := range c.Simulation.SampleTiers {
		if tier == sampleCount {
			return true
		}
	}
	return false
}
