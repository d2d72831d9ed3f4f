// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package services adapts Fleetlink components to suture.Service.

SessionService runs a fleet session's receive loop. A missing or rejected
refresh token cannot be fixed by restarting, so the service reports it through
ReauthRequired and returns suture.ErrDoNotRestart.

HTTPServerService turns http.Server's blocking ListenAndServe into a
context-aware Serve with a bounded graceful shutdown.
*/
package services
