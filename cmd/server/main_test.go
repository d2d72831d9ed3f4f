// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/connection"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{"defaults", nil, options{}, false},
		{"login", []string{"--login"}, options{login: true}, false},
		{"logout with config", []string{"--logout", "-c", "/etc/fleetlink.yaml"}, options{logout: true, configPath: "/etc/fleetlink.yaml"}, false},
		{"both actions", []string{"--login", "--logout"}, options{}, true},
		{"unknown flag", []string{"--bogus"}, options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOpenTokenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.AuthConfig
		wantErr bool
	}{
		{"memory", config.AuthConfig{TokenStore: "memory"}, false},
		{"badger", config.AuthConfig{TokenStore: "badger", TokenStorePath: t.TempDir()}, false},
		{"badger encrypted", config.AuthConfig{
			TokenStore:     "badger",
			TokenStorePath: t.TempDir(),
			EncryptionKey:  "0123456789abcdef0123456789abcdef",
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, closeFn, err := openTokenStore(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("openTokenStore() error = %v", err)
			}
			if err != nil {
				return
			}
			defer closeFn()

			ctx := context.Background()
			tok := &auth.Token{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).Unix()}
			if err := store.Save(ctx, "acct", tok); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := store.Load(ctx, "acct")
			if err != nil || got == nil || got.RefreshToken != "r" {
				t.Errorf("Load() = %+v, %v", got, err)
			}
		})
	}
}

func TestOpenCapture_Disabled(t *testing.T) {
	t.Parallel()

	w, err := openCapture(&config.CaptureConfig{})
	if err != nil || w != nil {
		t.Errorf("openCapture(disabled) = %v, %v", w, err)
	}
}

func TestReadPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")
	if _, err := readPassword(); err == nil {
		t.Error("expected error without password")
	}

	t.Setenv(passwordEnv, "hunter2")
	got, err := readPassword()
	if err != nil || got != "hunter2" {
		t.Errorf("readPassword() = %q, %v", got, err)
	}
}

func TestNewHTTPServer(t *testing.T) {
	t.Parallel()

	srv := newHTTPServer(&config.ServerConfig{Host: "127.0.0.1", Port: 8080, Timeout: 5 * time.Second}, http.NotFoundHandler())
	if srv.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", srv.Addr)
	}
	if srv.ReadHeaderTimeout != 5*time.Second {
		t.Errorf("ReadHeaderTimeout = %v", srv.ReadHeaderTimeout)
	}
}

func TestCancelOnReauth(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := make(chan connection.State, 3)
	states <- connection.StateConnecting
	states <- connection.StateConnected
	states <- connection.StateAuthRequired

	done := make(chan struct{})
	go func() {
		cancelOnReauth(ctx, states, cancel)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancelOnReauth did not return")
	}
	if ctx.Err() == nil {
		t.Error("context not canceled")
	}
}
