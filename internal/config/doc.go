// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package config loads and validates Fleetlink's runtime configuration.
//
// Configuration is assembled by koanf in three layers, each overriding the previous:
//
//  1. Struct defaults (defaultConfig)
//  2. An optional YAML file: the --config flag, CONFIG_PATH, or the first of DefaultConfigPaths
//  3. Environment variables, mapped explicitly by envTransformFunc
//
// Unknown environment variables are ignored so the process environment can be
// passed through unfiltered.
//
// # Example config.yaml
//
//	account:
//	  username: driver@example.com
//	  region: Europe
//	auth:
//	  token_store: badger
//	  token_store_path: /data/tokens
//	fleet:
//	  excluded_vehicles: [WDD2130041A123456]
//	server:
//	  port: 8480
//
// The account password is never part of the configuration; the CLI reads it from
// FLEETLINK_PASSWORD for the one-time --login step.
package config
