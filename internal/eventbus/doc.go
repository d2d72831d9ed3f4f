// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package eventbus exports fleet session events to a message broker for the
presentation layer.

Two topics are published, both prefixed with the configured topic prefix:

	<prefix>.load_complete    once per session, when the initial fleet load finishes
	<prefix>.vehicle_changed  after every merge that changed a vehicle once loaded

Payloads are JSON. With an empty NATS URL the in-process watermill gochannel is
used; otherwise messages go to NATS JetStream with the message uuid as the
deduplication id. Publishing runs behind a circuit breaker so a dead broker
never slows the receive loop.
*/
package eventbus
