// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkeyshare/internal/rest"
	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/files/minio"
	"github.com/jeremyhahn/go-passkeyshare/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
	"github.com/jeremyhahn/go-passkeyshare/pkg/webauthn"
)

// EnvPrefix prefixes every environment override, for example
// PASSKEYSHARE_SESSION_SECRET or PASSKEYSHARE_WEBAUTHN_RP_ID.
const EnvPrefix = "PASSKEYSHARE_"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// File providers. An empty provider disables shares.
const (
	FilesNone  = ""
	FilesLocal = "local"
	FilesMinIO = "minio"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Logging   LoggingConfig    `yaml:"logging" envPrefix:"LOG_"`
	WebAuthn  webauthn.Config  `yaml:"webauthn" envPrefix:"WEBAUTHN_"`
	Session   session.Config   `yaml:"session" envPrefix:"SESSION_"`
	Storage   StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Files     FilesConfig      `yaml:"files" envPrefix:"FILES_"`
	RateLimit ratelimit.Config `yaml:"ratelimit" envPrefix:"RATELIMIT_"`
	Metrics   MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
	Paths     rest.Paths       `yaml:"paths" envPrefix:"PATHS_"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	TLS             TLSConfig     `yaml:"tls" envPrefix:"TLS_"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// StorageConfig selects the record store backend. Path is a directory for
// the file backend and a database file for sqlite.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	Path    string `yaml:"path" env:"PATH"`
}

// FilesConfig selects where shared files are read from.
type FilesConfig struct {
	Provider string       `yaml:"provider" env:"PROVIDER"`
	Root     string       `yaml:"root" env:"ROOT"`
	MinIO    minio.Config `yaml:"minio" envPrefix:"MINIO_"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Path    string `yaml:"path" env:"PATH"`
}

// Load reads configuration from a YAML file, applies environment variable
// overrides, fills defaults and validates the result. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		// #nosec G304 - config file path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := ApplyEnv(&cfg, nil); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg from PASSKEYSHARE_* variables. Variables that are
// not set leave the field alone. environ replaces the process environment
// when non-nil.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	c.WebAuthn.SetDefaults()
	c.Session.SetDefaults()

	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageMemory
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	c.Paths.SetDefaults()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return errors.New("tls cert_file and key_file are required when tls is enabled")
		}
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if err := c.WebAuthn.Validate(); err != nil {
		return fmt.Errorf("webauthn: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	switch c.Files.Provider {
	case FilesNone:
	case FilesLocal:
		if c.Files.Root == "" {
			return errors.New("files root is required for the local provider")
		}
	case FilesMinIO:
		if err := c.Files.MinIO.Validate(); err != nil {
			return fmt.Errorf("files: %w", err)
		}
	default:
		return fmt.Errorf("unknown files provider: %s", c.Files.Provider)
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return errors.New("ratelimit values must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}
	for name, p := range map[string]string{"register": c.Paths.Register, "sign_in": c.Paths.SignIn} {
		if !session.IsLocalPath(p) {
			return fmt.Errorf("paths.%s must be a local path: %q", name, p)
		}
	}
	return nil
}

// LoggerConfig returns the slog adapter settings for the logging section.
func (c *Config) LoggerConfig() *logger.SlogConfig {
	level, _ := logger.ParseLevel(c.Logging.Level)
	return &logger.SlogConfig{Level: level, Format: c.Logging.Format}
}
