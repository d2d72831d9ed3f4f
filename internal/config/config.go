// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Account    AccountConfig    `koanf:"account"`
	Auth       AuthConfig       `koanf:"auth"`
	Connection ConnectionConfig `koanf:"connection"`
	Command    CommandConfig    `koanf:"command"`
	Fleet      FleetConfig      `koanf:"fleet"`
	Capture    CaptureConfig    `koanf:"capture"`
	Events     EventsConfig     `koanf:"events"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// AccountConfig identifies the account the session runs for.
type AccountConfig struct {
	// Username is the login e-mail address. Required for --login only.
	Username string `koanf:"username" validate:"omitempty,email"`
	// Region is the backend region (Europe, North America, Asia-Pacific, China or eu/na/ap/cn).
	Region string `koanf:"region" validate:"required"`
	// Locale is sent as X-Locale and Accept-Language.
	Locale string `koanf:"locale" validate:"required"`
	// Key names the persisted token; defaults to Username when empty.
	Key string `koanf:"key"`
}

// StoreKey returns the key under which the account's token is persisted.
func (a AccountConfig) StoreKey() string {
	if a.Key != "" {
		return a.Key
	}
	if a.Username != "" {
		return a.Username
	}
	return "default"
}

// AuthConfig controls token persistence and the login/refresh HTTP client.
type AuthConfig struct {
	// TokenStore selects the token store backend: badger or memory.
	TokenStore string `koanf:"token_store" validate:"oneof=badger memory"`
	// TokenStorePath is the badger directory.
	TokenStorePath string `koanf:"token_store_path"`
	// EncryptionKey enables AES-GCM encryption of stored tokens when set.
	EncryptionKey string `koanf:"encryption_key" validate:"omitempty,min=32"`
	// HTTPTimeout bounds each login and refresh request.
	HTTPTimeout time.Duration `koanf:"http_timeout" validate:"gt=0"`
}

// ConnectionConfig controls the persistent websocket connection.
type ConnectionConfig struct {
	InitialBackoff   time.Duration `koanf:"initial_backoff" validate:"gt=0"`
	MaxBackoff       time.Duration `koanf:"max_backoff" validate:"gtefield=InitialBackoff"`
	PingInterval     time.Duration `koanf:"ping_interval" validate:"gt=0"`
	ReadTimeout      time.Duration `koanf:"read_timeout" validate:"gtefield=PingInterval"`
	WriteTimeout     time.Duration `koanf:"write_timeout" validate:"gt=0"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	// URL overrides the region websocket endpoint.
	URL string `koanf:"url" validate:"omitempty,url"`
}

// CommandConfig controls the REST command client.
type CommandConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// RateLimit is the sustained request rate per second.
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`
	Burst     int     `koanf:"burst" validate:"min=1"`

	// Circuit breaker settings.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests" validate:"min=1"`
	BreakerInterval    time.Duration `koanf:"breaker_interval" validate:"gt=0"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
	BreakerFailures    uint32        `koanf:"breaker_failures" validate:"min=1"`

	// CapabilityTTL caches capability lookups per vehicle; zero disables the cache.
	CapabilityTTL time.Duration `koanf:"capability_ttl" validate:"min=0"`

	// RESTURL overrides the region REST endpoint.
	RESTURL string `koanf:"rest_url" validate:"omitempty,url"`
	// LoginURL overrides the region login endpoint.
	LoginURL string `koanf:"login_url" validate:"omitempty,url"`
}

// FleetConfig controls vehicle state aggregation.
type FleetConfig struct {
	// ExcludedVehicles are ignored by membership and attribute updates.
	ExcludedVehicles []string `koanf:"excluded_vehicles"`
	// LoadTimeout fires load-complete this long after the first attribute batch
	// even when some vehicles never delivered a full update.
	LoadTimeout time.Duration `koanf:"load_timeout" validate:"gt=0"`
}

// CaptureConfig controls raw message capture for diagnostics.
type CaptureConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir" validate:"required_if=Enabled true"`
}

// EventsConfig controls the outbound event export.
type EventsConfig struct {
	Enabled bool `koanf:"enabled"`
	// NATSURL selects NATS JetStream; empty uses an in-process channel.
	NATSURL string `koanf:"nats_url" validate:"omitempty,url"`
	// TopicPrefix is prepended to load_complete and vehicle_changed.
	TopicPrefix string `koanf:"topic_prefix" validate:"required"`
}

// ServerConfig controls the health and state HTTP surface.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
