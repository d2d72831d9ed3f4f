// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/fleet"
	"github.com/tomtom215/fleetlink/internal/session"
)

type fakeFeed struct {
	changes chan session.Change
	states  chan connection.State
	loaded  chan struct{}
}

func (f *fakeFeed) Changes() <-chan session.Change  { return f.changes }
func (f *fakeFeed) States() <-chan connection.State { return f.states }
func (f *fakeFeed) LoadComplete() <-chan struct{}   { return f.loaded }

func (f *fakeFeed) Snapshot() map[string]*fleet.Vehicle {
	return map[string]*fleet.Vehicle{"WDD2221231A000001": {}, "WDD2221231A000002": {}}
}

func TestRelay_ForwardsNotifications(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{
		changes: make(chan session.Change, 1),
		states:  make(chan connection.State, 1),
		loaded:  make(chan struct{}),
	}
	hub := NewHub()
	relay := NewRelay(hub, feed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Serve(ctx) }()

	at := time.Unix(1700000000, 0).UTC()
	feed.states <- connection.StateConnected
	wantMessage(t, hub, Message{Type: MessageTypeConnectionState, Data: ConnectionState{State: "connected"}})

	close(feed.loaded)
	wantMessage(t, hub, Message{Type: MessageTypeLoadComplete, Data: LoadComplete{Vehicles: 2}})

	feed.changes <- session.Change{VehicleID: "WDD2221231A000001", At: at}
	wantMessage(t, hub, Message{Type: MessageTypeVehicleChanged, Data: VehicleChanged{VehicleID: "WDD22XXXXXXXX0001", At: at}})
}

func wantMessage(t *testing.T, hub *Hub, want Message) {
	t.Helper()
	select {
	case got := <-hub.broadcast:
		if got != want {
			t.Errorf("broadcast = %+v, want %+v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no broadcast, want %+v", want)
	}
}
