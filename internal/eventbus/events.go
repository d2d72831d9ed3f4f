// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package eventbus

import "time"

// Topic suffixes.
const (
	TopicLoadComplete   = "load_complete"
	TopicVehicleChanged = "vehicle_changed"
)

// LoadComplete is published once when the initial fleet load finishes.
type LoadComplete struct {
	Vehicles      int       `json:"vehicles"`
	SetupComplete int       `json:"setup_complete"`
	At            time.Time `json:"at"`
}

// VehicleChanged is published after a merge changed a vehicle.
type VehicleChanged struct {
	VehicleID string    `json:"vehicle_id"`
	At        time.Time `json:"at"`
}
