// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package config

import (
	"fmt"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/region"
	"github.com/tomtom215/fleetlink/internal/validation"
)

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateAccount(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if err := c.validateFleet(); err != nil {
		return err
	}

	return c.validateLogging()
}

// Region returns the parsed account region. Validate guarantees it parses.
func (c *Config) Region() region.Region {
	r, err := region.Parse(c.Account.Region)
	if err != nil {
		return region.Europe
	}
	return r
}

func (c *Config) validateAccount() error {
	if _, err := region.Parse(c.Account.Region); err != nil {
		return fmt.Errorf("FLEETLINK_REGION is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.TokenStore == "badger" && c.Auth.TokenStorePath == "" {
		return fmt.Errorf("TOKEN_STORE_PATH is required when TOKEN_STORE=badger")
	}
	return nil
}

func (c *Config) validateFleet() error {
	for _, vin := range c.Fleet.ExcludedVehicles {
		if !validation.IsVIN(vin) {
			return fmt.Errorf("EXCLUDED_VEHICLES contains an invalid vehicle id %q", logging.MaskVIN(vin))
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled (got %q)", c.Logging.Level)
	}
	return nil
}
