package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for ekaya-erd.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Cascade CascadeConfig `yaml:"cascade"`
	Retry   RetryConfig   `yaml:"retry"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_erd"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// StorageConfig selects where the schema model lives.
type StorageConfig struct {
	// Driver is "postgres" or "memory". The memory store is lost on restart.
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json or console
	// Development enables stack traces on warnings and caller annotations.
	Development bool `yaml:"development" env:"LOG_DEVELOPMENT" env-default:"false"`
}

// CascadeConfig tunes primary-key propagation.
type CascadeConfig struct {
	// LockTargetTable takes SELECT ... FOR UPDATE on the table whose key changed.
	LockTargetTable bool `yaml:"lock_target_table" env:"CASCADE_LOCK_TARGET_TABLE" env-default:"true"`
	// MaxDepth is how many identifying-relationship levels a key change travels.
	MaxDepth int `yaml:"max_depth" env:"CASCADE_MAX_DEPTH" env-default:"2"`
}

// RetryConfig controls transport-level retries of serialization failures and deadlocks.
type RetryConfig struct {
	MaxRetries     int `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	InitialDelayMs int `yaml:"initial_delay_ms" env:"RETRY_INITIAL_DELAY_MS" env-default:"50"`
}

// InitialDelay returns InitialDelayMs as a duration.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// Load reads configuration from config.yaml with environment variable overrides.
// An optional .env file in the working directory is loaded first; variables already
// set in the environment win over it.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit path. A missing file falls back to environment
// variables and defaults.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Cascade.MaxDepth < 1 {
		return fmt.Errorf("cascade.max_depth must be at least 1, got %d", c.Cascade.MaxDepth)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}

// ConnectionString returns a PostgreSQL connection URL. Inside a container, localhost
// is rewritten to the Docker host.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, ResolveHostForDocker(c.Host), c.Port, c.Database, c.SSLMode,
	)
}

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps localhost to host.docker.internal when running in Docker.
func ResolveHostForDocker(host string) string {
	if !IsRunningInDocker() {
		return host
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "host.docker.internal"
	}
	return host
}
