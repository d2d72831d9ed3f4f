// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package supervisor runs the long-lived Fleetlink services under a suture v4 tree.

The tree has two layers so that a failing HTTP listener never tears down the
vehicle connection and vice versa:

	RootSupervisor ("fleetlink")
	├── SessionSupervisor ("session-layer")
	│   └── SessionService
	└── APISupervisor ("api-layer"), when server.enabled
	    ├── WebSocketHubService
	    ├── websocket.Relay
	    └── HTTPServerService

Supervisor events (start, stop, backoff, panics) are logged through the
sutureslog adapter on top of the zerolog-backed slog handler from
internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddSessionService(services.NewSessionService(sess))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err = tree.Serve(ctx)

Services signal permanent conditions with suture.ErrDoNotRestart; see
services.SessionService for the re-authentication case.
*/
package supervisor
