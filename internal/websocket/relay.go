// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/fleet"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/session"
)

// Feed is the notification side of a fleet session.
type Feed interface {
	Changes() <-chan session.Change
	States() <-chan connection.State
	LoadComplete() <-chan struct{}
	Snapshot() map[string]*fleet.Vehicle
}

// VehicleChanged is the payload of vehicle_changed messages.
type VehicleChanged struct {
	VehicleID string    `json:"vehicle_id"`
	At        time.Time `json:"at"`
}

// ConnectionState is the payload of connection_state messages.
type ConnectionState struct {
	State string `json:"state"`
}

// LoadComplete is the payload of load_complete messages.
type LoadComplete struct {
	Vehicles int `json:"vehicles"`
}

// Relay forwards session notifications to a hub.
type Relay struct {
	hub     *Hub
	feed    Feed
	changes <-chan session.Change
	states  <-chan connection.State
}

// NewRelay subscribes to feed immediately so no notification between
// construction and Serve is lost.
func NewRelay(hub *Hub, feed Feed) *Relay {
	return &Relay{
		hub:     hub,
		feed:    feed,
		changes: feed.Changes(),
		states:  feed.States(),
	}
}

// Serve forwards until ctx is canceled.
func (r *Relay) Serve(ctx context.Context) error {
	loaded := r.feed.LoadComplete()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-r.changes:
			r.hub.Broadcast(MessageTypeVehicleChanged, VehicleChanged{
				VehicleID: logging.MaskVIN(c.VehicleID),
				At:        c.At,
			})

		case st := <-r.states:
			r.hub.Broadcast(MessageTypeConnectionState, ConnectionState{State: st.String()})

		case <-loaded:
			loaded = nil
			r.hub.Broadcast(MessageTypeLoadComplete, LoadComplete{Vehicles: len(r.feed.Snapshot())})
		}
	}
}

// String names the service in supervisor events.
func (r *Relay) String() string {
	return "websocket-relay"
}
