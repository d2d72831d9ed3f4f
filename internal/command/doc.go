// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package command implements the REST command and query channel of a fleet session.

Every call obtains a bearer token from the auth session, adds the region
identification headers, passes a rate limiter and a circuit breaker, and
classifies the response: 2xx bodies are decoded, anything else becomes a
*RequestError. Calls configured to ignore errors return an empty result instead.

Command requests are validated before any network traffic:

	cmd := command.WindowsMove("1234", command.WindowPositions{FrontLeft: ptr(20)})
	ack, err := client.SendCommand(ctx, vin, cmd)
	if err != nil {
		var reqErr *command.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusConflict {
			// another command is still running
		}
	}

The returned process id correlates with the command status updates received
on the websocket.
*/
package command
