// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package protocol encodes and decodes the binary frames exchanged over the
vehicle push websocket.

Frames are protobuf messages. The server sends a PushMessage envelope whose
payload is one of several message kinds (attribute updates, command status,
fleet membership, account notifications). The client answers most of them
with a ClientMessage acknowledgement carrying the pushed sequence number.

The codec works directly on the wire format using protowire, so no generated
code is required:

	msg, err := protocol.DecodePush(frame)
	if err != nil {
	    // *ProtocolError: drop the frame, keep the connection
	}
	switch msg.Kind {
	case protocol.KindVEPUpdates:
	    ack, _ := protocol.EncodeClient(protocol.Ack(protocol.AckVEPUpdates, msg.VEPUpdates.SequenceNumber))
	    ...
	}

Unknown fields are skipped. An envelope that carries no recognized payload
decodes to KindUnknown.
*/
package protocol
