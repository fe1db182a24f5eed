// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load(ctx) layers a YAML file and GRIDRANK_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Store drivers accepted by StoreDriver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CurrentSeason is used when a request omits the season number.
	CurrentSeason int `koanf:"current_season"`

	// WorkerCount sets the number of rating workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the run idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreDriver selects the persistence backend: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`

	// StoreDSN is the data source name for the sql drivers.
	StoreDSN string `koanf:"store_dsn"`

	// LeagueFile is a YAML league document loaded by the memory driver.
	LeagueFile string `koanf:"league_file"`

	// RedisURL enables the leaderboard cache when set.
	RedisURL string `koanf:"redis_url"`

	// CacheTTLSeconds is the leaderboard cache lifetime.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// MetricsSchedule is a cron expression for automatic metrics runs.
	MetricsSchedule string `koanf:"metrics_schedule"`

	// WPNMoVInfluence weights margin of victory in wPN; 0 disables it.
	WPNMoVInfluence float64 `koanf:"wpn_mov_influence"`

	// RegularSeasonWeeks is the last week counted in standings.
	RegularSeasonWeeks int `koanf:"regular_season_weeks"`

	// MaxLeaderboardLimit caps GET /metrics?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// CORSOrigins lists origins allowed to call the API; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// RequestTimeoutSeconds bounds each HTTP request, metrics runs included.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		CurrentSeason:         1,
		WorkerCount:           runtime.NumCPU(),
		QueueSize:             10_000,
		DedupeSize:            50_000,
		StoreDriver:           DriverMemory,
		CacheTTLSeconds:       300,
		WPNMoVInfluence:       0.25,
		RegularSeasonWeeks:    13,
		MaxLeaderboardLimit:   500,
		CORSOrigins:           []string{"*"},
		RequestTimeoutSeconds: 300,
	}
}

// RequestTimeout returns the per-request deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns the cache lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for driver %q", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if c.CacheTTLSeconds < 0 {
		return fmt.Errorf("%w: cache_ttl_seconds must not be negative", ErrInvalidConfig)
	}
	if c.CurrentSeason < 1 {
		return fmt.Errorf("%w: current_season must be at least 1", ErrInvalidConfig)
	}
	if c.RequestTimeoutSeconds < 1 {
		return fmt.Errorf("%w: request_timeout_seconds must be positive", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.WPNMoVInfluence < 0 {
		return fmt.Errorf("%w: wpn_mov_influence must not be negative", ErrInvalidConfig)
	}
	return nil
}
