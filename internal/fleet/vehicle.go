// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

import (
	"time"
)

// AttributeGroup maps attribute keys of one group to their values.
type AttributeGroup map[string]AttributeValue

// LastCommand is the most recent remote command status reported for a vehicle.
type LastCommand struct {
	Type         string `json:"type"`
	State        string `json:"state"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	// At is the command timestamp in epoch millis.
	At int64 `json:"at"`
}

// MessageCounters counts received attribute updates by mode.
type MessageCounters struct {
	Full    int `json:"full"`
	Partial int `json:"partial"`
}

// Vehicle is the merged state of one vehicle.
type Vehicle struct {
	ID                string                   `json:"id"`
	Groups            map[Group]AttributeGroup `json:"groups"`
	LastMessageAt     time.Time                `json:"last_message_at"`
	LastFullMessageAt time.Time                `json:"last_full_message_at"`
	LastCommand       *LastCommand             `json:"last_command,omitempty"`
	SetupComplete     bool                     `json:"setup_complete"`
	Messages          MessageCounters          `json:"messages"`
}

func newVehicle(id string) *Vehicle {
	v := &Vehicle{
		ID:     id,
		Groups: make(map[Group]AttributeGroup, len(groupOrder)),
	}
	for _, g := range groupOrder {
		v.Groups[g] = make(AttributeGroup)
	}
	return v
}

// Attribute returns the value of key in group g.
func (v *Vehicle) Attribute(g Group, key string) (AttributeValue, bool) {
	grp, ok := v.Groups[g]
	if !ok {
		return AttributeValue{}, false
	}
	val, ok := grp[key]
	return val, ok
}

// Clone returns a deep copy. AttributeValues are immutable and shared.
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	c.Groups = make(map[Group]AttributeGroup, len(v.Groups))
	for g, grp := range v.Groups {
		cg := make(AttributeGroup, len(grp))
		for k, val := range grp {
			cg[k] = val
		}
		c.Groups[g] = cg
	}
	if v.LastCommand != nil {
		lc := *v.LastCommand
		c.LastCommand = &lc
	}
	return &c
}
