package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Aggregation AggregationConfig `koanf:"aggregation"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// AggregationConfig holds settings for the incremental aggregation runs.
type AggregationConfig struct {
	Enabled       bool   `koanf:"enabled"`
	CronInterval  string `koanf:"cron_interval"`   // parsed as time.Duration on startup
	BatchSize     int    `koanf:"batch_size"`      // events per fetch/merge cycle
	StaleRunAfter string `koanf:"stale_run_after"` // heartbeat age before a run is abandoned
}

// CronIntervalDuration returns the parsed run interval. Call Validate first.
func (c AggregationConfig) CronIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.CronInterval)
	return d
}

// StaleRunAfterDuration returns the parsed heartbeat threshold. Call Validate first.
func (c AggregationConfig) StaleRunAfterDuration() time.Duration {
	d, _ := time.ParseDuration(c.StaleRunAfter)
	return d
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	interval, err := time.ParseDuration(c.Aggregation.CronInterval)
	if err != nil {
		return fmt.Errorf("invalid aggregation.cron_interval %q: %w", c.Aggregation.CronInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("aggregation.cron_interval must be > 0")
	}
	if c.Aggregation.BatchSize <= 0 {
		return fmt.Errorf("aggregation.batch_size must be > 0")
	}
	staleAfter, err := time.ParseDuration(c.Aggregation.StaleRunAfter)
	if err != nil {
		return fmt.Errorf("invalid aggregation.stale_run_after %q: %w", c.Aggregation.StaleRunAfter, err)
	}
	if staleAfter <= 0 {
		return fmt.Errorf("aggregation.stale_run_after must be > 0")
	}

	return nil
}

// Load parses configuration from defaults, then the optional YAML file, then
// BMLH_-prefixed environment variables (BMLH_SERVER__PORT=9090 overrides
// server.port), and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                 8080,
		"server.host":                 "0.0.0.0",
		"server.max_body_size_mb":     1,
		"server.mode":                 "release",
		"database.type":               "postgres",
		"database.dsn":                "postgres://localhost:5432/lastheard?sslmode=disable",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     25,
		"database.auto_migrate":       true,
		"aggregation.enabled":         true,
		"aggregation.cron_interval":   "2m",
		"aggregation.batch_size":      5000,
		"aggregation.stale_run_after": "10m",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("BMLH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "BMLH_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
