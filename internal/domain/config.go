package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Models    ModelsConfig    `mapstructure:"models"`
	Trials    TrialsConfig    `mapstructure:"trials"`
	Cohort    CohortConfig    `mapstructure:"cohort"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// ModelsConfig points at the frozen preprocessing and network artifacts.
type ModelsConfig struct {
	Dir string `mapstructure:"dir"`
}

// TrialsConfig configures the clinical trial store.
type TrialsConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	CacheSize    int    `mapstructure:"cache_size"`
}

// CohortConfig bounds batch uploads at the request boundary.
type CohortConfig struct {
	MaxRows    int `mapstructure:"max_rows"`
	MinColumns int `mapstructure:"min_columns"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
