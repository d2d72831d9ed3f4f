// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package fleet keeps the in-memory state of every vehicle bound to the account
and merges pushed attribute updates into it.

The Aggregator is the single consumer of decoded push messages. Handle
dispatches each message by kind, mutates fleet state under one lock and
returns the acknowledgement to send back together with the vehicles whose
state changed:

	agg := fleet.NewAggregator(fleet.Config{LoadTimeout: 30 * time.Second})
	res := agg.Handle(msg)
	if res.Ack != nil {
	    // encode and send on the same socket
	}
	if res.LoadCompleted {
	    // every vehicle received its first full update
	}

Merge rules:

  - A full update rewrites every key of every group's static key set. Keys
    missing from the payload become NOT_RECEIVED without a timestamp.
  - A partial update only touches the keys it carries, and only for vehicles
    that already received a full update.
  - A value is replaced only when its timestamp is not older than the stored
    one.

Readers get deep copies through Snapshot and Vehicle and never observe a
half-applied merge.
*/
package fleet
