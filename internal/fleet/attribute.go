// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

import (
	"github.com/tomtom215/fleetlink/internal/protocol"
)

// Status is the retrieval status of an attribute value.
type Status int

// Attribute statuses.
const (
	StatusValid Status = iota
	StatusNotReceived
	StatusError
	StatusUnknown
)

var statusNames = [...]string{"VALID", "NOT_RECEIVED", "ERROR", "UNKNOWN"}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

// MarshalText renders the status name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// statusFromWire maps the pushed retrieval status code.
func statusFromWire(code int32) Status {
	switch code {
	case protocol.StatusValid:
		return StatusValid
	case protocol.StatusNotReceived, protocol.StatusNotAvailable:
		return StatusNotReceived
	case protocol.StatusInvalid:
		return StatusError
	default:
		return StatusUnknown
	}
}

// AttributeValue is one attribute of a vehicle. Values are immutable and
// replaced wholesale on update.
type AttributeValue struct {
	Value        interface{} `json:"value"`
	Status       Status      `json:"status"`
	Timestamp    *int64      `json:"timestamp,omitempty"`
	DisplayValue string      `json:"display_value,omitempty"`
	Unit         string      `json:"unit,omitempty"`
}

// ts returns the timestamp in epoch millis, 0 when unset.
func (v AttributeValue) ts() int64 {
	if v.Timestamp == nil {
		return 0
	}
	return *v.Timestamp
}

// attributeFromWire builds a value from a pushed attribute. The value is the
// first present of string, int, double and bool; a missing value yields 0.
func attributeFromWire(a *protocol.AttributeStatus) AttributeValue {
	value, ok := a.Value()
	if !ok {
		value = int64(0)
	}
	out := AttributeValue{
		Value:        value,
		Status:       statusFromWire(a.Status),
		DisplayValue: a.DisplayValue,
		Unit:         a.Unit,
	}
	if a.TimestampMs != 0 {
		ts := a.TimestampMs
		out.Timestamp = &ts
	}
	return out
}

// notReceived is the value a full update assigns to a key it did not carry.
func notReceived() AttributeValue {
	return AttributeValue{Value: int64(0), Status: StatusNotReceived}
}

// derivePrecondStatus computes the precondition status from its source
// attributes. ok is false when none of them is present.
func derivePrecondStatus(attrs map[string]*protocol.AttributeStatus) (AttributeValue, bool) {
	now, hasNow := attrs["precondNow"]
	active, hasActive := attrs["precondActive"]
	mode, hasMode := attrs["precondOperatingMode"]
	if !hasNow && !hasActive && !hasMode {
		return AttributeValue{}, false
	}

	value := false
	var ts int64
	if hasNow {
		value = value || (now.BoolValue != nil && *now.BoolValue)
		ts = max(ts, now.TimestampMs)
	}
	if hasActive {
		value = value || (active.BoolValue != nil && *active.BoolValue)
		ts = max(ts, active.TimestampMs)
	}
	if hasMode {
		value = value || (mode.IntValue != nil && *mode.IntValue > 0)
		ts = max(ts, mode.TimestampMs)
	}

	out := AttributeValue{Value: value, Status: StatusValid}
	if value {
		out.DisplayValue = "true"
	} else {
		out.DisplayValue = "false"
	}
	if ts != 0 {
		out.Timestamp = &ts
	}
	return out, true
}
