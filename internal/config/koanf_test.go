// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/region"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Account.Region != string(region.Europe) {
		t.Errorf("Account.Region = %q, want Europe", cfg.Account.Region)
	}
	if cfg.Connection.InitialBackoff != 15*time.Second {
		t.Errorf("Connection.InitialBackoff = %v, want 15s", cfg.Connection.InitialBackoff)
	}
	if cfg.Connection.MaxBackoff != 480*time.Second {
		t.Errorf("Connection.MaxBackoff = %v, want 480s", cfg.Connection.MaxBackoff)
	}
	if cfg.Auth.TokenStore != "badger" {
		t.Errorf("Auth.TokenStore = %q, want badger", cfg.Auth.TokenStore)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled should be false by default")
	}
	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"FLEETLINK_USERNAME", "account.username"},
		{"FLEETLINK_REGION", "account.region"},
		{"TOKEN_STORE_PATH", "auth.token_store_path"},
		{"TOKEN_ENCRYPTION_KEY", "auth.encryption_key"},
		{"WS_MAX_BACKOFF", "connection.max_backoff"},
		{"COMMAND_RATE_LIMIT", "command.rate_limit"},
		{"EXCLUDED_VEHICLES", "fleet.excluded_vehicles"},
		{"EVENTS_NATS_URL", "events.nats_url"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},

		// Unknown and sensitive variables are never mapped
		{"FLEETLINK_PASSWORD", ""},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestFindConfigFile verifies config file discovery through CONFIG_PATH
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "fleetlink.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	if got := findConfigFile(); got != configPath {
		t.Errorf("findConfigFile() = %q, want %q", got, configPath)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(tmpDir, "missing.yaml"))
	original := DefaultConfigPaths
	DefaultConfigPaths = []string{filepath.Join(tmpDir, "also-missing.yaml")}
	defer func() { DefaultConfigPaths = original }()

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

// TestLoadEnvVars verifies environment variables override defaults
func TestLoadEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("FLEETLINK_REGION", "na")
	t.Setenv("WS_MAX_BACKOFF", "10m")
	t.Setenv("EXCLUDED_VEHICLES", "WDD2130041A123456, WDD2130041A654321")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TOKEN_STORE", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Region() != region.NorthAmerica {
		t.Errorf("Region() = %q, want North America", cfg.Region())
	}
	if cfg.Connection.MaxBackoff != 10*time.Minute {
		t.Errorf("Connection.MaxBackoff = %v, want 10m", cfg.Connection.MaxBackoff)
	}
	if len(cfg.Fleet.ExcludedVehicles) != 2 || cfg.Fleet.ExcludedVehicles[1] != "WDD2130041A654321" {
		t.Errorf("Fleet.ExcludedVehicles = %v", cfg.Fleet.ExcludedVehicles)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.TokenStore != "memory" {
		t.Errorf("Auth.TokenStore = %q, want memory", cfg.Auth.TokenStore)
	}
}

// TestLoadConfigFile verifies YAML loading and env precedence over the file
func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
account:
  username: driver@example.com
  region: China
connection:
  initial_backoff: 5s
fleet:
  excluded_vehicles:
    - WDD2130041A123456
server:
  port: 7000
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("HTTP_PORT", "7100")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Account.Username != "driver@example.com" {
		t.Errorf("Account.Username = %q", cfg.Account.Username)
	}
	if cfg.Account.StoreKey() != "driver@example.com" {
		t.Errorf("StoreKey() = %q", cfg.Account.StoreKey())
	}
	if cfg.Region() != region.China {
		t.Errorf("Region() = %q, want China", cfg.Region())
	}
	if cfg.Connection.InitialBackoff != 5*time.Second {
		t.Errorf("Connection.InitialBackoff = %v, want 5s", cfg.Connection.InitialBackoff)
	}
	if cfg.Connection.MaxBackoff != 480*time.Second {
		t.Errorf("Connection.MaxBackoff = %v, want default 480s", cfg.Connection.MaxBackoff)
	}
	if len(cfg.Fleet.ExcludedVehicles) != 1 {
		t.Errorf("Fleet.ExcludedVehicles = %v", cfg.Fleet.ExcludedVehicles)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want env override 7100", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

// TestValidate verifies validation failures surface from Load
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown region", func(c *Config) { c.Account.Region = "atlantis" }},
		{"bad username", func(c *Config) { c.Account.Username = "not-an-email" }},
		{"unknown token store", func(c *Config) { c.Auth.TokenStore = "redis" }},
		{"badger without path", func(c *Config) { c.Auth.TokenStorePath = "" }},
		{"short encryption key", func(c *Config) { c.Auth.EncryptionKey = "short" }},
		{"max below initial backoff", func(c *Config) { c.Connection.MaxBackoff = time.Second }},
		{"read timeout below ping", func(c *Config) { c.Connection.ReadTimeout = time.Second }},
		{"zero rate limit", func(c *Config) { c.Command.RateLimit = 0 }},
		{"invalid excluded vin", func(c *Config) { c.Fleet.ExcludedVehicles = []string{"abc"} }},
		{"capture without dir", func(c *Config) { c.Capture.Enabled = true; c.Capture.Dir = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestWatchConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	changed := make(chan struct{}, 1)
	if err := WatchConfigFile(configPath, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("WatchConfigFile() error: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("expected change callback")
	}
}
