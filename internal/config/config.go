// Package config provides YAML-based configuration loading for agentops,
// with .env and AGENTOPS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. AGENTOPS_SERVER_PORT.
const EnvPrefix = "AGENTOPS"

// Run modes. Development mode exposes internal error messages in responses.
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// Config is the top-level agentops configuration, loaded from agentops.yaml.
type Config struct {
	Mode     string         `yaml:"mode" split_words:"true"`
	Server   ServerConfig   `yaml:"server" split_words:"true"`
	Database DatabaseConfig `yaml:"database" split_words:"true"`
	Log      LogConfig      `yaml:"log" split_words:"true"`
	Ingest   IngestConfig   `yaml:"ingest" split_words:"true"`
	Rollup   RollupConfig   `yaml:"rollup" split_words:"true"`
	Alerts   AlertsConfig   `yaml:"alerts" split_words:"true"`
	Tracing  TracingConfig  `yaml:"tracing" split_words:"true"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	BodyLimitBytes  int64         `yaml:"body_limit_bytes" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DatabaseConfig selects the store dialect and its connection settings.
// DSN, when set, wins over the individual fields.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" split_words:"true"`
	Path         string `yaml:"path" split_words:"true"`
	Host         string `yaml:"host" split_words:"true"`
	Port         int    `yaml:"port" split_words:"true"`
	Name         string `yaml:"name" split_words:"true"`
	User         string `yaml:"user" split_words:"true"`
	Password     string `yaml:"password" split_words:"true"`
	DSN          string `yaml:"dsn" split_words:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true"`
	LogQueries   bool   `yaml:"log_queries" split_words:"true"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"` // console or json
}

// IngestConfig bounds the write path.
type IngestConfig struct {
	MaxBatchEvents int `yaml:"max_batch_events" split_words:"true"`
}

// RollupConfig schedules the skill usage rollup. An empty schedule disables
// the in-process job; `agentops rollup` still works.
type RollupConfig struct {
	Schedule string `yaml:"schedule" split_words:"true"`
}

// AlertsConfig configures notifications for sessions that end badly.
type AlertsConfig struct {
	SlackWebhookURL   string        `yaml:"slack_webhook_url" split_words:"true"`
	DiscordWebhookURL string        `yaml:"discord_webhook_url" split_words:"true"`
	Timeout           time.Duration `yaml:"timeout" split_words:"true"`
	OnStatuses        []string      `yaml:"on_statuses" split_words:"true"`
}

// Enabled reports whether at least one alert destination is configured.
func (a AlertsConfig) Enabled() bool {
	return a.SlackWebhookURL != "" || a.DiscordWebhookURL != ""
}

// TracingConfig toggles OpenTelemetry HTTP tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" split_words:"true"`
	ServiceName string `yaml:"service_name" split_words:"true"`
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return c.Mode == ModeDevelopment
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads a .env file if present, then the YAML config at path, then
// applies environment overrides. A missing config file is not an error:
// defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes, applies environment overrides and defaults,
// and returns a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config built from defaults alone, ignoring the environment.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeProduction
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyLimitBytes == 0 {
		c.Server.BodyLimitBytes = 10 << 20
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" && c.Database.DSN == "" {
		c.Database.Path = "agentops.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		case "postgres":
			c.Database.Port = 5432
		}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 4
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
		if c.Mode == ModeDevelopment {
			c.Log.Level = "debug"
		}
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
		if c.Mode == ModeDevelopment {
			c.Log.Format = "console"
		}
	}
	if c.Ingest.MaxBatchEvents == 0 {
		c.Ingest.MaxBatchEvents = 1000
	}
	if c.Alerts.Timeout == 0 {
		c.Alerts.Timeout = 10 * time.Second
	}
	if len(c.Alerts.OnStatuses) == 0 {
		c.Alerts.OnStatuses = []string{"failed", "timeout"}
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "agentops"
	}
}

// cronParser matches the standard 5-field cron expressions used by the rollup job.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Mode != ModeProduction && c.Mode != ModeDevelopment {
		errs = append(errs, fmt.Sprintf("mode must be %q or %q", ModeProduction, ModeDevelopment))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.BodyLimitBytes < 0 {
		errs = append(errs, "server.body_limit_bytes must not be negative")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" && c.Database.DSN == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql", "postgres":
		if c.Database.DSN == "" && c.Database.Name == "" {
			errs = append(errs, fmt.Sprintf("database.name or database.dsn is required for %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql, postgres)", c.Database.Driver))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, "log.format must be console or json")
	}
	if c.Ingest.MaxBatchEvents < 0 {
		errs = append(errs, "ingest.max_batch_events must not be negative")
	}
	if c.Rollup.Schedule != "" {
		if _, err := cronParser.Parse(c.Rollup.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("rollup.schedule: %v", err))
		}
	}
	for i, s := range c.Alerts.OnStatuses {
		switch s {
		case "success", "failed", "cancelled", "timeout":
		default:
			errs = append(errs, fmt.Sprintf("alerts.on_statuses[%d] %q is not a terminal session status", i, s))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
