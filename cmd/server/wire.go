// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/capture"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/eventbus"
	"github.com/tomtom215/fleetlink/internal/logging"
)

const passwordEnv = "FLEETLINK_PASSWORD"

// openTokenStore returns the configured store and a func that releases it.
func openTokenStore(cfg *config.AuthConfig) (auth.TokenStore, func(), error) {
	if cfg.TokenStore == "memory" {
		logging.Warn().Msg("Using in-memory token store, tokens are lost on exit")
		return auth.NewMemoryTokenStore(), func() {}, nil
	}

	// nil when no key is configured.
	encryptor, err := auth.NewTokenEncryptor(cfg.EncryptionKey, "")
	if err != nil {
		return nil, nil, fmt.Errorf("token encryption: %w", err)
	}

	store, err := auth.OpenBadgerTokenStore(cfg.TokenStorePath, encryptor)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing token store")
		}
	}
	return store, closeFn, nil
}

// openCapture returns nil when capture is disabled.
func openCapture(cfg *config.CaptureConfig) (*capture.Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	w, err := capture.New(cfg.Dir)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("dir", w.Dir()).Msg("Frame capture enabled")
	return w, nil
}

func openPublisher(cfg *config.EventsConfig) (*eventbus.Publisher, error) {
	pub, err := eventbus.NewPublisher(cfg)
	if err != nil {
		return nil, err
	}
	backend := "gochannel"
	if cfg.NATSURL != "" {
		backend = "nats"
	}
	logging.Info().Str("backend", backend).Str("prefix", cfg.TopicPrefix).Msg("Event export enabled")
	return pub, nil
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: cfg.Timeout,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       4 * cfg.Timeout,
	}
}

func readPassword() (string, error) {
	password := os.Getenv(passwordEnv)
	if password == "" {
		return "", fmt.Errorf("%s is not set", passwordEnv)
	}
	return password, nil
}

// watchLogLevel applies logging.level changes from the config file.
func watchLogLevel(path string) {
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load(path)
		if err != nil {
			logging.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		if cfg.Logging.Level != logging.GetLevel().String() {
			logging.SetLevelString(cfg.Logging.Level)
			logging.Info().Str("level", cfg.Logging.Level).Msg("Log level changed")
		}
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

// cancelOnReauth cancels once the connection reports that a new login is needed.
func cancelOnReauth(ctx context.Context, states <-chan connection.State, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-states:
			if st == connection.StateAuthRequired {
				cancel()
				return
			}
		}
	}
}
