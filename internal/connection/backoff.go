// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package connection

import (
	"sync"
	"time"
)

// Default reconnect delays.
const (
	DefaultInitialBackoff = 15 * time.Second
	DefaultMaxBackoff     = 480 * time.Second
)

// Backoff yields doubling reconnect delays between an initial and a maximum value.
type Backoff struct {
	mu      sync.Mutex
	initial time.Duration
	max     time.Duration
	next    time.Duration
}

// NewBackoff returns a Backoff starting at initial. Zero values use the defaults.
func NewBackoff(initial, maxDelay time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	if maxDelay < initial {
		maxDelay = DefaultMaxBackoff
		if maxDelay < initial {
			maxDelay = initial
		}
	}
	return &Backoff{initial: initial, max: maxDelay, next: initial}
}

// Next returns the delay for the coming attempt and doubles the following one.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Throttle makes the next delay the maximum.
func (b *Backoff) Throttle() {
	b.mu.Lock()
	b.next = b.max
	b.mu.Unlock()
}

// Reset restarts the sequence after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.next = b.initial
	b.mu.Unlock()
}
