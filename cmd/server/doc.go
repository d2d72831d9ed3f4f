// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Command server keeps a vehicle fleet session connected and serves its state.
//
// Usage:
//
//	server --login      interactive PKCE login; password from FLEETLINK_PASSWORD
//	server --logout     delete the stored token
//	server              run the session and HTTP surface under the supervisor tree
//
// Configuration is read from --config, CONFIG_PATH or the default paths, then
// overridden by environment variables (see internal/config). SIGINT and SIGTERM
// trigger a graceful shutdown. Changes to the config file adjust the log level
// without a restart.
//
// Exit codes: 0 on clean shutdown, 1 on startup failure, 2 when the stored
// credentials are no longer valid and --login is needed.
package main
