// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package connection

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrStopped is returned by Run after Stop.
	ErrStopped = errors.New("connection stopped")

	// ErrNotConnected is returned by Send while no socket is open.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError is a failed dial, read or write.
type ConnectionError struct {
	Op  string
	URL string
	// Status is the handshake HTTP status, 0 when there was no response.
	Status int
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("connection: %s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("connection: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Unauthorized reports a handshake rejected for the token.
func (e *ConnectionError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Throttled reports a handshake rejected for too many requests.
func (e *ConnectionError) Throttled() bool {
	return e.Status == http.StatusTooManyRequests
}
