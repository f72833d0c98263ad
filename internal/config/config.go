// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package config loads Lantern's configuration with Koanf v2.
//
// Configuration is layered, highest priority last:
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Catalog   CatalogConfig   `koanf:"catalog"`
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Messaging MessagingConfig `koanf:"messaging"`
	Sweep     SweepConfig     `koanf:"sweep"`
	NATS      NATSConfig      `koanf:"nats"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// CatalogConfig locates the chapter/step catalog file.
//
// The catalog is read once at startup, validated, and held immutable for
// the process lifetime. Validation failures are fatal: a catalog that
// violates the step uniqueness invariants makes "which step is current"
// non-deterministic at runtime.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// DatabaseConfig holds DuckDB settings for the progress store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads caps DuckDB worker threads. 0 = use runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// MessagingConfig holds outbound delivery and scheduling settings.
//
// MorningHour and Timezone define the "morning" used by delayed
// messaging steps: a delay of N mornings resolves to MorningHour o'clock
// local to Timezone, N day-boundaries from the time of scheduling.
type MessagingConfig struct {
	// MorningHour is the hour-of-day (0-23) a "morning" delivery fires at.
	MorningHour int `koanf:"morning_hour"`
	// Timezone is the IANA zone name the morning hour is evaluated in.
	Timezone string `koanf:"timezone"`

	SMS   SMSConfig   `koanf:"sms"`
	Email EmailConfig `koanf:"email"`
}

// SMSConfig holds the HTTP SMS provider settings.
type SMSConfig struct {
	ProviderURL string        `koanf:"provider_url"`
	APIKey      string        `koanf:"api_key"`
	From        string        `koanf:"from"`
	Timeout     time.Duration `koanf:"timeout"`
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	From     string `koanf:"from"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// SweepConfig controls the periodic due-message sweep worker.
//
// The sweep is also exposed at POST /api/v1/cron/sweep for external
// schedulers; both paths are idempotent and safe to overlap.
type SweepConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// NATSConfig holds optional JetStream event transport settings.
// When disabled, domain events run over an in-process Watermill pub/sub.
type NATSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`
}

// SecurityConfig holds the admin/cron shared secret and rate limiting.
type SecurityConfig struct {
	// SharedSecret authenticates admin and cron endpoints. Required unless
	// AuthDisabled is set.
	SharedSecret string `koanf:"shared_secret"`
	// AuthDisabled turns off the shared-secret check. Development only.
	AuthDisabled bool `koanf:"auth_disabled"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for fatal misconfiguration.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required (CATALOG_PATH)")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (DB_PATH)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Messaging.MorningHour < 0 || c.Messaging.MorningHour > 23 {
		return fmt.Errorf("messaging.morning_hour must be in 0-23, got %d", c.Messaging.MorningHour)
	}
	if _, err := time.LoadLocation(c.Messaging.Timezone); err != nil {
		return fmt.Errorf("messaging.timezone %q is not a valid IANA zone: %w", c.Messaging.Timezone, err)
	}
	if c.Sweep.Enabled && c.Sweep.Interval < time.Second {
		return fmt.Errorf("sweep.interval must be at least 1s, got %s", c.Sweep.Interval)
	}
	if !c.Security.AuthDisabled && c.Security.SharedSecret == "" {
		return fmt.Errorf("security.shared_secret is required (LANTERN_SHARED_SECRET); set security.auth_disabled for development only")
	}
	if !c.Security.AuthDisabled && len(c.Security.SharedSecret) < 16 {
		return fmt.Errorf("security.shared_secret must be at least 16 characters")
	}
	return nil
}

// Location returns the messaging timezone, already validated by Load.
func (m *MessagingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
