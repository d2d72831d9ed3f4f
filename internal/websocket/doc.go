// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package websocket pushes live fleet notifications to dashboard clients.

A Hub fans messages out to every connected Client. A Relay subscribes to a
fleet session and turns its notifications into hub messages:

	session ──Changes/States/LoadComplete──▶ Relay ──▶ Hub ──▶ Client ...

Message types:

  - vehicle_changed: {"vehicle_id": masked VIN, "at": time}
  - connection_state: {"state": "connected"}
  - load_complete: {"vehicles": n}
  - ping / pong: client keepalive

Each Client runs a read pump (pong handling, client pings) and a write pump
(messages and periodic pings). A client whose send buffer is full is dropped
rather than slowing the hub down.

Handler upgrades HTTP requests; browsers must send an Origin header that is
in the allowed list.
*/
package websocket
