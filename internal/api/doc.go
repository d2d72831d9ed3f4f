// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package api serves the read-only health and fleet state surface over HTTP.

Routes:

	GET /api/v1/health/live      process is up
	GET /api/v1/health/ready     200 once the initial load finished and the
	                             vehicle connection is connected, 503 otherwise
	GET /api/v1/vehicles         snapshot of every member vehicle
	GET /api/v1/vehicles/{id}    one vehicle by VIN or FIN
	GET /api/v1/stream           live notifications over websocket, when enabled
	GET /metrics                 Prometheus exposition

Vehicle identifiers in responses are masked with logging.MaskVIN. Every
response except /metrics uses the APIResponse envelope.
*/
package api
