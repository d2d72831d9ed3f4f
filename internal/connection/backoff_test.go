// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package connection

import (
	"testing"
	"time"
)

func TestBackoff_Sequence(t *testing.T) {
	t.Parallel()

	b := NewBackoff(15*time.Second, 480*time.Second)
	want := []time.Duration{15, 30, 60, 120, 240, 480, 480, 480}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Fatalf("attempt %d: Next() = %v, want %v", i, got, w*time.Second)
		}
	}

	b.Reset()
	if got := b.Next(); got != 15*time.Second {
		t.Errorf("after Reset Next() = %v, want 15s", got)
	}
	if got := b.Next(); got != 30*time.Second {
		t.Errorf("second Next() after Reset = %v, want 30s", got)
	}
}

func TestBackoff_Throttle(t *testing.T) {
	t.Parallel()

	b := NewBackoff(15*time.Second, 480*time.Second)
	b.Next()
	b.Throttle()
	if got := b.Next(); got != 480*time.Second {
		t.Errorf("Next() after Throttle = %v, want 480s", got)
	}
	b.Reset()
	if got := b.Next(); got != 15*time.Second {
		t.Errorf("Next() after Reset = %v, want 15s", got)
	}
}

func TestNewBackoff_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		initial, max time.Duration
		wantFirst    time.Duration
		wantCap      time.Duration
	}{
		{"zero values", 0, 0, DefaultInitialBackoff, DefaultMaxBackoff},
		{"max below initial", 10 * time.Second, time.Second, 10 * time.Second, DefaultMaxBackoff},
		{"initial above default max", time.Hour, 0, time.Hour, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBackoff(tt.initial, tt.max)
			if got := b.Next(); got != tt.wantFirst {
				t.Errorf("first Next() = %v, want %v", got, tt.wantFirst)
			}
			b.Throttle()
			if got := b.Next(); got != tt.wantCap {
				t.Errorf("capped Next() = %v, want %v", got, tt.wantCap)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	if StateAuthInvalid.String() != "auth_invalid" || StateConnected.String() != "connected" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "unknown" {
		t.Error("out of range state should be unknown")
	}
}
