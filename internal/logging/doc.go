// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package logging provides centralized zerolog-based structured logging for Fleetlink.
//
// The package keeps one process-wide zerolog logger that every component writes
// through. It is the only global in the codebase; session state is always passed
// explicitly.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("vin", logging.MaskVIN(vin)).Msg("Full update merged")
//	logging.Error().Err(err).Msg("Token refresh failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Msg("Connecting")
//
// # Masking
//
// Vehicle identifiers, e-mail addresses and tokens must never reach the log in
// clear text. Use MaskVIN, SanitizeEmail and SanitizeToken for ad-hoc fields, or
// the SecurityLogger for authentication events which applies them automatically.
//
// # Suture Integration
//
// The supervisor tree logs through log/slog. NewSlogLogger returns an slog.Logger
// whose records are forwarded to the zerolog backend.
package logging
