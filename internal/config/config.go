// Package config implements explicit-context-object configuration: a plain
// Go struct loaded from YAML, passed into constructors by the caller,
// never a package-level singleton.
package config

import (
	"os"

	"go.chromium.org/luci/common/errors"
	"gopkg.in/yaml.v2"

	"github.com/wil93/cms/internal/gradelog"
)

// Config is the full set of environment knobs the core depends on.
// Anything web-surface-specific (cookie secrets, auth) stays out of this
// struct entirely: the web surface is an external collaborator.
type Config struct {
	// Database holds the relational store's connection parameters.
	Database DatabaseConfig `yaml:"database"`

	// BlobStoreRoot is the filesystem root for a local File Cache backend.
	// Mutually exclusive with GCSBucket; exactly one should be set.
	BlobStoreRoot string `yaml:"blob_store_root,omitempty"`
	// GCSBucket selects the Google Cloud Storage File Cache backend instead.
	GCSBucket string `yaml:"gcs_bucket,omitempty"`

	// RedisAddr is the queue fabric's Redis endpoint ("host:port").
	RedisAddr string `yaml:"redis_addr"`

	// MaxRetries bounds how many times a Worker requeues a job that failed
	// with an infra-class error before escalating it.
	MaxRetries int `yaml:"max_retries"`

	// MaxQueueDepth bounds how deep a single (kind, priority) cell may grow
	// before user-test submissions are rejected.
	MaxQueueDepth int `yaml:"max_queue_depth"`

	// LogLevel is one of "debug", "info", "warning", "error"; an empty value defaults to "info".
	LogLevel string `yaml:"log_level,omitempty"`
}

// DatabaseConfig selects and configures one of the two supported SQL
// dialects.
type DatabaseConfig struct {
	// Driver is "sqlite" or "mysql".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific connection string: a filesystem path for
	// sqlite, or a go-sql-driver/mysql DSN ("user:pass@tcp(host:port)/db")
	// for mysql.
	DSN string `yaml:"dsn"`
}

// Logger builds the process-wide root Logger at the level this config
// names, for installing into the base context via gradelog.WithLogger.
func (c Config) Logger() gradelog.Logger {
	return gradelog.NewWithLevel(gradelog.ParseLevel(c.LogLevel))
}

// defaults mirror the values the core uses when a config file omits them.
func defaults() Config {
	return Config{
		MaxRetries:    3,
		MaxQueueDepth: 10000,
		LogLevel:      "info",
	}
}

// Load reads and parses a YAML config file at path, starting from defaults
// so a partial file only overrides what it mentions.
func Load(path string) (Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotate(err, "reading config file %q", path).Err()
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Annotate(err, "parsing config file %q", path).Err()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants Load can't express through zero values
// alone: exactly one blob store backend, a known database driver.
func (c Config) Validate() error {
	if c.BlobStoreRoot == "" && c.GCSBucket == "" {
		return errors.Reason("config: exactly one of blob_store_root or gcs_bucket must be set").Err()
	}
	if c.BlobStoreRoot != "" && c.GCSBucket != "" {
		return errors.Reason("config: blob_store_root and gcs_bucket are mutually exclusive").Err()
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return errors.Reason("config: unknown database driver %q", c.Database.Driver).Err()
	}
	if c.RedisAddr == "" {
		return errors.Reason("config: redis_addr is required").Err()
	}
	return nil
}
