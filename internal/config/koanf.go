// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

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

	"github.com/tomtom215/fleetlink/internal/region"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetlink/config.yaml",
	"/etc/fleetlink/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			Region: string(region.Europe),
			Locale: region.DefaultLocale,
		},
		Auth: AuthConfig{
			TokenStore:     "badger",
			TokenStorePath: "/data/tokens",
			HTTPTimeout:    30 * time.Second,
		},
		Connection: ConnectionConfig{
			InitialBackoff:   15 * time.Second,
			MaxBackoff:       480 * time.Second,
			PingInterval:     30 * time.Second,
			ReadTimeout:      120 * time.Second,
			WriteTimeout:     10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Command: CommandConfig{
			Timeout:            30 * time.Second,
			RateLimit:          2,
			Burst:              5,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     2 * time.Minute,
			BreakerFailures:    5,
			CapabilityTTL:      time.Hour,
		},
		Fleet: FleetConfig{
			ExcludedVehicles: []string{},
			LoadTimeout:      30 * time.Second,
		},
		Capture: CaptureConfig{
			Enabled: false,
			Dir:     "/data/capture",
		},
		Events: EventsConfig{
			Enabled:     false,
			TopicPrefix: "fleet",
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, the config file and the environment.
// An explicit path takes precedence over CONFIG_PATH and DefaultConfigPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := path
	if configPath == "" {
		configPath = findConfigFile()
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
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

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"fleet.excluded_vehicles",
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Account
	"fleetlink_username": "account.username",
	"fleetlink_region":   "account.region",
	"fleetlink_locale":   "account.locale",
	"fleetlink_account":  "account.key",

	// Auth
	"token_store":          "auth.token_store",
	"token_store_path":     "auth.token_store_path",
	"token_encryption_key": "auth.encryption_key",
	"auth_http_timeout":    "auth.http_timeout",

	// Connection
	"ws_initial_backoff":   "connection.initial_backoff",
	"ws_max_backoff":       "connection.max_backoff",
	"ws_ping_interval":     "connection.ping_interval",
	"ws_read_timeout":      "connection.read_timeout",
	"ws_write_timeout":     "connection.write_timeout",
	"ws_handshake_timeout": "connection.handshake_timeout",
	"ws_url":               "connection.url",

	// Command
	"command_timeout":              "command.timeout",
	"command_rate_limit":           "command.rate_limit",
	"command_burst":                "command.burst",
	"command_breaker_max_requests": "command.breaker_max_requests",
	"command_breaker_interval":     "command.breaker_interval",
	"command_breaker_timeout":      "command.breaker_timeout",
	"command_breaker_failures":     "command.breaker_failures",
	"command_capability_ttl":       "command.capability_ttl",
	"rest_url":                     "command.rest_url",
	"login_url":                    "command.login_url",

	// Fleet
	"excluded_vehicles":  "fleet.excluded_vehicles",
	"fleet_load_timeout": "fleet.load_timeout",

	// Capture
	"capture_enabled": "capture.enabled",
	"capture_dir":     "capture.dir",

	// Events
	"events_enabled":      "events.enabled",
	"events_nats_url":     "events.nats_url",
	"events_topic_prefix": "events.topic_prefix",

	// Server
	"http_enabled":      "server.enabled",
	"http_host":         "server.host",
	"http_port":         "server.port",
	"http_timeout":      "server.timeout",
	"cors_origins":      "server.cors_origins",
	"rate_limit_reqs":   "server.rate_limit_reqs",
	"rate_limit_window": "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Variables without a mapping return "" and are skipped by the env provider.
//
// Examples:
//   - FLEETLINK_REGION -> account.region
//   - WS_MAX_BACKOFF -> connection.max_backoff
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller is responsible for reloading and for synchronizing access to the
// reloaded configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
