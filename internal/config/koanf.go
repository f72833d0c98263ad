// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lantern/config.yaml",
	"/etc/lantern/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path: "catalog.yaml",
		},
		Database: DatabaseConfig{
			Path:      "/data/lantern.duckdb",
			MaxMemory: "512MB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8475,
			Timeout: 30 * time.Second,
		},
		Messaging: MessagingConfig{
			MorningHour: 8,
			Timezone:    "UTC",
			SMS: SMSConfig{
				Timeout: 10 * time.Second,
			},
			Email: EmailConfig{
				Port: 587,
			},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		NATS: NATSConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			StoreDir: "/data/nats/jetstream",
		},
		Security: SecurityConfig{
			SharedSecret:      "",
			AuthDisabled:      false,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources,
// precedence ENV > file > defaults, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS origins arrive as a comma-separated string from the environment.
	if raw := k.String("security.cors_origins"); raw != "" && strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := k.Set("security.cors_origins", parts); err != nil {
			return nil, fmt.Errorf("failed to split cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf paths. Variables
// not listed here are ignored, so unrelated environment noise cannot
// leak into the configuration.
var envMappings = map[string]string{
	"catalog_path": "catalog.path",

	"db_path":       "database.path",
	"db_max_memory": "database.max_memory",
	"db_threads":    "database.threads",

	"server_host":    "server.host",
	"server_port":    "server.port",
	"server_timeout": "server.timeout",

	"morning_hour":       "messaging.morning_hour",
	"messaging_timezone": "messaging.timezone",
	"sms_provider_url":   "messaging.sms.provider_url",
	"sms_api_key":        "messaging.sms.api_key",
	"sms_from":           "messaging.sms.from",
	"sms_timeout":        "messaging.sms.timeout",
	"smtp_host":          "messaging.email.host",
	"smtp_port":          "messaging.email.port",
	"smtp_from":          "messaging.email.from",
	"smtp_username":      "messaging.email.username",
	"smtp_password":      "messaging.email.password",

	"sweep_enabled":  "sweep.enabled",
	"sweep_interval": "sweep.interval",

	"nats_enabled":   "nats.enabled",
	"nats_url":       "nats.url",
	"nats_embedded":  "nats.embedded",
	"nats_store_dir": "nats.store_dir",

	"lantern_shared_secret": "security.shared_secret",
	"auth_disabled":         "security.auth_disabled",
	"rate_limit_reqs":       "security.rate_limit_reqs",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"cors_origins":          "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransform maps an environment variable name to its koanf path.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}
