// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package connection maintains the persistent push websocket of a fleet session.

A Manager dials the region websocket with a fresh bearer token and the
identification headers, hands every binary frame to a Handler, and writes the
handler's response (an acknowledgement) on the same socket before the next read.

State machine:

	Init → Connecting → Connected → Disconnected → Reconnecting → Connecting …
	                ↘ AuthRequired   (no token without interactive login)
	                ↘ AuthInvalid    (handshake rejected with 401/403)

Reconnect delays start at 15s and double up to 480s; a successful connect
resets them. A 429 handshake response uses the maximum delay for the next
attempt. Ping frames are sent every 30s and the read deadline is refreshed by
every frame and pong, so a silent peer is detected within the read timeout.

Stop closes the socket, unblocks the receive loop and suppresses reconnects.
*/
package connection
