// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package connection

// State is the connection lifecycle state.
type State int

const (
	StateInit State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateAuthRequired
	StateAuthInvalid
)

var stateNames = [...]string{
	StateInit:         "init",
	StateConnecting:   "connecting",
	StateConnected:    "connected",
	StateReconnecting: "reconnecting",
	StateDisconnected: "disconnected",
	StateAuthRequired: "auth_required",
	StateAuthInvalid:  "auth_invalid",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText renders the state name in JSON documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
