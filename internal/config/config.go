// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package config loads and validates the kiln gateway configuration from
// YAML with KILN_-prefixed environment overrides.
package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	kilnerrors "github.com/kiln-dev/kiln/pkg/errors"
)

// Config is the top-level kiln configuration.
type Config struct {
	Server       ServerConfig          `mapstructure:"server"`
	Orchestrator OrchestratorConfig    `mapstructure:"orchestrator"`
	Breaker      BreakerConfig         `mapstructure:"breaker"`
	Metrics      MetricsConfig         `mapstructure:"metrics"`
	Storage      StorageConfig         `mapstructure:"storage"`
	Catalog      CatalogConfig         `mapstructure:"catalog"`
	Tiers        map[string]TierConfig `mapstructure:"tiers"`
}

// ServerConfig controls the admin HTTP listener.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// OrchestratorConfig tunes request routing.
type OrchestratorConfig struct {
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// BreakerConfig tunes the per-provider circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	BackoffFactor    int           `mapstructure:"backoff_factor"`
	MaxCooldown      time.Duration `mapstructure:"max_cooldown"`
}

// MetricsConfig controls attempt-record retention and snapshotting.
type MetricsConfig struct {
	Retention int            `mapstructure:"retention"`
	Snapshot  SnapshotConfig `mapstructure:"snapshot"`
}

// SnapshotConfig controls periodic persistence of aggregated metrics.
type SnapshotConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// StorageConfig selects the snapshot storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// CatalogConfig locates the provider catalog file.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// TierConfig describes one subscription tier's expected monthly usage, used
// by cost estimation.
type TierConfig struct {
	ExpectedUsers       int64 `mapstructure:"expected_users"`
	TextUnitsPerUser    int64 `mapstructure:"text_units_per_user"`
	ImageUnitsPerUser   int64 `mapstructure:"image_units_per_user"`
	AllowanceTextUnits  int64 `mapstructure:"allowance_text_units"`
	AllowanceImageUnits int64 `mapstructure:"allowance_image_units"`
}

// Load reads configuration from the given path (or defaults when empty) with
// environment variable overrides (prefix KILN_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "127.0.0.1:8780")
	v.SetDefault("orchestrator.attempt_timeout", "30s")
	v.SetDefault("breaker.failure_threshold", 3)
	v.SetDefault("breaker.cooldown", "60s")
	v.SetDefault("breaker.backoff_factor", 2)
	v.SetDefault("breaker.max_cooldown", "10m")
	v.SetDefault("metrics.retention", 4096)
	v.SetDefault("metrics.snapshot.enabled", false)
	v.SetDefault("metrics.snapshot.interval", "5m")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "kiln.db")
	v.SetDefault("catalog.path", "providers.yaml")

	// Environment
	v.SetEnvPrefix("KILN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, kilnerrors.Errorf(kilnerrors.CodeConfigLoadReadFailure,
				"reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, kilnerrors.Errorf(kilnerrors.CodeConfigParseInvalidFormat,
			"unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"validating config: %w", errors.Join(errs...))
	}

	// Relative catalog and storage paths resolve against the config file's
	// directory, so a config under ~/.config/kiln finds its sibling
	// providers.yaml regardless of the working directory.
	if path != "" {
		dir := filepath.Dir(path)
		if !filepath.IsAbs(cfg.Catalog.Path) {
			cfg.Catalog.Path = filepath.Join(dir, cfg.Catalog.Path)
		}
		if !filepath.IsAbs(cfg.Storage.Path) {
			cfg.Storage.Path = filepath.Join(dir, cfg.Storage.Path)
		}
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns every
// validation error found, collecting all issues rather than stopping at the
// first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateOrchestrator()...)
	errs = append(errs, c.validateBreaker()...)
	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateTiers()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err))
		return errs
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateOrchestrator() []error {
	var errs []error

	if c.Orchestrator.AttemptTimeout <= 0 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: orchestrator.attempt_timeout must be positive, got %s",
			c.Orchestrator.AttemptTimeout))
	}

	return errs
}

func (c *Config) validateBreaker() []error {
	var errs []error

	if c.Breaker.FailureThreshold < 1 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: breaker.failure_threshold must be at least 1, got %d",
			c.Breaker.FailureThreshold))
	}
	if c.Breaker.Cooldown <= 0 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: breaker.cooldown must be positive, got %s", c.Breaker.Cooldown))
	}
	if c.Breaker.BackoffFactor < 1 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: breaker.backoff_factor must be at least 1, got %d",
			c.Breaker.BackoffFactor))
	}
	if c.Breaker.MaxCooldown < c.Breaker.Cooldown {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: breaker.max_cooldown must be at least breaker.cooldown, got %s < %s",
			c.Breaker.MaxCooldown, c.Breaker.Cooldown))
	}

	return errs
}

func (c *Config) validateMetrics() []error {
	var errs []error

	if c.Metrics.Retention < 1 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: metrics.retention must be at least 1, got %d", c.Metrics.Retention))
	}
	if c.Metrics.Snapshot.Enabled && c.Metrics.Snapshot.Interval <= 0 {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: metrics.snapshot.interval must be positive when snapshots are enabled, got %s",
			c.Metrics.Snapshot.Interval))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.Path == "" {
		errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
			"config: storage.path must not be empty"))
	}

	return errs
}

func (c *Config) validateTiers() []error {
	var errs []error

	for name, tier := range c.Tiers {
		if name == "" {
			errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
				"config: tier name must not be empty"))
		}
		if tier.ExpectedUsers < 0 || tier.TextUnitsPerUser < 0 || tier.ImageUnitsPerUser < 0 ||
			tier.AllowanceTextUnits < 0 || tier.AllowanceImageUnits < 0 {
			errs = append(errs, kilnerrors.Errorf(kilnerrors.CodeConfigValidateInvalidValue,
				"config: tier %q: usage counts must be non-negative", name))
		}
	}

	return errs
}
