// Package config loads the engine's YAML configuration with environment
// variable overrides, following the teacher's LoadAppConfig /
// applyEnvOverrides / DefaultAppConfig / Validate shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineSection configures the market data pipeline (spec.md §6).
type PipelineSection struct {
	Symbols            []string `yaml:"symbols"`
	Timeframes         []string `yaml:"timeframes"`
	TickIntervalSec    float64  `yaml:"tick_interval_sec"`
	MaxTickAgeSec      int      `yaml:"max_tick_age_sec"`
	BufferSize         int      `yaml:"buffer_size"`
	ShutdownTimeoutSec float64  `yaml:"shutdown_timeout_sec"`
	CallbackBudgetMs   int      `yaml:"callback_budget_ms"`
}

// DetectorsSection configures pattern-detector thresholds.
type DetectorsSection struct {
	MinGapSizePips      float64 `yaml:"min_gap_size_pips"`
	FillTolerancePips   float64 `yaml:"fill_tolerance_pips"`
	MaxFVGsPerSymbol    int     `yaml:"max_fvgs_per_symbol"`
	MaxAgeDays          int     `yaml:"max_age_days"`
	LookbackPeriod      int     `yaml:"lookback_period"`
	MaxDistancePips     float64 `yaml:"max_distance_pips"`
	MinConfidence       float64 `yaml:"min_confidence"`
	VolumeThreshold     float64 `yaml:"volume_threshold"`
	MinDisplacementPips float64 `yaml:"min_displacement_pips"`
	MomentumThreshold   float64 `yaml:"momentum_threshold"`
}

// RiskSection configures position sizing, exposure, and compliance gates.
type RiskSection struct {
	RiskPct            float64  `yaml:"risk_pct"`
	MaxSymbolVolume    float64  `yaml:"max_symbol_volume"`
	Blacklist          []string `yaml:"blacklist"`
	RestrictedHoursUTC []int    `yaml:"restricted_hours_utc"`
	MaxSpreadPoints    float64  `yaml:"max_spread_points"`
	LossCooldownSec    float64  `yaml:"loss_cooldown_sec"`
}

// RateLimitSection configures the token-bucket rate limiter.
type RateLimitSection struct {
	Enabled       bool `yaml:"rate_limit_enabled"`
	GlobalRate    int  `yaml:"global_rate"`
	PerSymbolRate int  `yaml:"per_symbol_rate"`
	WindowSec     int  `yaml:"window_sec"`
}

// RouterSection configures the execution router and its circuit breaker.
type RouterSection struct {
	MaxRetries                int     `yaml:"max_retries"`
	RetryDelaySeconds         float64 `yaml:"retry_delay_seconds"`
	MaxLatencyMs              float64 `yaml:"max_latency_ms"`
	CircuitBreakerThreshold   int     `yaml:"circuit_breaker_threshold"`
	CircuitBreakerWindowSec   float64 `yaml:"circuit_breaker_window_sec"`
	CircuitBreakerCooldownSec float64 `yaml:"circuit_breaker_cooldown_sec"`
}

// HealthSection configures the composite health monitor.
type HealthSection struct {
	CompositeHealthEnabled bool    `yaml:"composite_health_enabled"`
	MaxLatencyMs           float64 `yaml:"max_latency_ms"`
	MaxMarketDataAgeSec    float64 `yaml:"max_market_data_age_sec"`
	MaxHeartbeatAgeSec     float64 `yaml:"max_heartbeat_age_sec"`
}

// MetricsSection configures the metrics aggregator's persistence.
type MetricsSection struct {
	MetricsDir          string `yaml:"metrics_dir"`
	HistoryLimit        int    `yaml:"history_limit"`
	LatencySamplesLimit int    `yaml:"latency_samples_limit"`
}

// PostgresSection configures the optional secondary execution-audit store.
type PostgresSection struct {
	Enabled      bool          `yaml:"enabled"`
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// RedisSection configures the optional distributed cache.
type RedisSection struct {
	Addr              string `yaml:"addr"`
	DB                int    `yaml:"db"`
	DefaultTTLSeconds int    `yaml:"default_ttl_seconds"`
}

// AppConfig is the complete engine configuration, loaded from YAML with
// environment variable overrides layered on top.
type AppConfig struct {
	DataRoot   string           `yaml:"data_root"`
	Pipeline   PipelineSection  `yaml:"pipeline"`
	Detectors  DetectorsSection `yaml:"detectors"`
	Risk       RiskSection      `yaml:"risk"`
	RateLimit  RateLimitSection `yaml:"rate_limit"`
	Router     RouterSection    `yaml:"router"`
	Health     HealthSection    `yaml:"health"`
	Metrics    MetricsSection   `yaml:"metrics"`
	Postgres   PostgresSection  `yaml:"postgres"`
	Redis      RedisSection     `yaml:"redis"`
	SimMode    bool             `yaml:"sim_mode"`
}

// DefaultAppConfig returns the engine's documented defaults from spec.md §6.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		DataRoot: "./data",
		Pipeline: PipelineSection{
			Symbols:            []string{"EURUSD"},
			Timeframes:         []string{"M1", "M5", "M15", "H1", "H4", "D1"},
			TickIntervalSec:    0.1,
			MaxTickAgeSec:      60,
			BufferSize:         10000,
			ShutdownTimeoutSec: 2.0,
			CallbackBudgetMs:   50,
		},
		Detectors: DetectorsSection{
			MinGapSizePips:      0.8,
			FillTolerancePips:   0.1,
			MaxFVGsPerSymbol:    50,
			MaxAgeDays:          30,
			LookbackPeriod:      25,
			MaxDistancePips:     100,
			MinConfidence:       0.5,
			VolumeThreshold:     0.8,
			MinDisplacementPips: 50,
			MomentumThreshold:   0.7,
		},
		Risk: RiskSection{
			RiskPct:         0.01,
			MaxSymbolVolume: 1.0,
			LossCooldownSec: 300,
		},
		RateLimit: RateLimitSection{
			Enabled:       true,
			GlobalRate:    10,
			PerSymbolRate: 3,
			WindowSec:     60,
		},
		Router: RouterSection{
			MaxRetries:                2,
			RetryDelaySeconds:         1.0,
			MaxLatencyMs:              500,
			CircuitBreakerThreshold:   3,
			CircuitBreakerWindowSec:   60,
			CircuitBreakerCooldownSec: 30,
		},
		Health: HealthSection{
			CompositeHealthEnabled: true,
			MaxLatencyMs:           1000,
			MaxMarketDataAgeSec:    120,
			MaxHeartbeatAgeSec:     90,
		},
		Metrics: MetricsSection{
			MetricsDir:          "./data/metrics",
			HistoryLimit:        100,
			LatencySamplesLimit: 500,
		},
	}
}

// Load reads configPath (if it exists) over the defaults, then applies
// environment variable overrides.
func Load(configPath string) (*AppConfig, error) {
	cfg := DefaultAppConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file %s: %w", configPath, err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers process environment variables on top of the
// loaded/default config, following the teacher's PG_*-style override
// naming convention.
func applyEnvOverrides(cfg *AppConfig) {
	if dsn := os.Getenv("ICT_PG_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
		cfg.Postgres.Enabled = true
	}
	if v := os.Getenv("ICT_PG_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ICT_SIM_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SimMode = b
		}
	}
	if v := os.Getenv("ICT_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("ICT_GLOBAL_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.GlobalRate = n
		}
	}
}

// Save writes cfg as YAML to path.
func Save(cfg *AppConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate enforces the config's internal consistency invariants.
func (c *AppConfig) Validate() error {
	if c.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}
	if len(c.Pipeline.Symbols) == 0 {
		return fmt.Errorf("pipeline.symbols must contain at least one symbol")
	}
	if c.Pipeline.TickIntervalSec <= 0 {
		return fmt.Errorf("pipeline.tick_interval_sec must be positive")
	}
	if c.Pipeline.BufferSize <= 0 {
		return fmt.Errorf("pipeline.buffer_size must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.GlobalRate <= 0 {
		return fmt.Errorf("rate_limit.global_rate must be positive when rate limiting is enabled")
	}
	if c.Router.MaxRetries < 0 {
		return fmt.Errorf("router.max_retries cannot be negative")
	}
	if c.Router.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("router.circuit_breaker_threshold must be positive")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	if c.Metrics.HistoryLimit <= 0 {
		return fmt.Errorf("metrics.history_limit must be positive")
	}
	return nil
}
