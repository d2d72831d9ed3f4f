// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package cache provides a small in-memory TTL cache.

Entries expire lazily: Get treats an expired entry as missing and removes it,
and Set sweeps expired entries once the sweep interval has passed. There is no
background goroutine, so an unused cache costs nothing and needs no Close.

	c := cache.New[string, *Capabilities](time.Hour)
	if v, ok := c.Get(vin); ok {
	    return v, nil
	}
	c.Set(vin, caps)

Hit, miss and eviction counts are available through Stats.
*/
package cache
