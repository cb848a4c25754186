// Package config provides centralized configuration for tickervault,
// layered as defaults, an optional config file, then environment
// variables (TICKERVAULT_* and a local .env for the API token).
package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	API     APIConfig     `mapstructure:"api"`
	Limiter LimiterConfig `mapstructure:"limiter"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig contains database configuration for libsql/Turso.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// APIConfig configures the EOD historical data endpoint.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LimiterConfig configures the rate limiter.
//
// Limits seeds the persisted state the first time the limiter runs; once
// the state file exists, its limits win and are edited via `limits set`.
type LimiterConfig struct {
	StatePath string         `mapstructure:"state_path"`
	Limits    map[string]int `mapstructure:"limits"`
}

// FetchConfig configures the fetch command.
type FetchConfig struct {
	TickersFile string        `mapstructure:"tickers_file"`
	Wait        bool          `mapstructure:"wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
}

// ServerConfig contains HTTP server configuration for `serve`.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls the minimum log level (trace|debug|info|warn|error).
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}
