// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package protocol

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

var errUnknownKind = errors.New("unknown message kind")

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendInt64(b, num, int64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

// appendMessage writes a length-delimited sub-message, even when empty.
func appendMessage(b []byte, num protowire.Number, payload []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

// EncodeClient encodes a client frame. Fields are written in field-number
// order, so an acknowledgement without tracking id and sequence number is
// just the tag and a zero length.
func EncodeClient(m *ClientMessage) ([]byte, error) {
	if m == nil {
		return nil, &ProtocolError{Op: "encode client", Err: errors.New("nil message")}
	}
	if _, ok := clientKindNames[m.Kind]; !ok {
		return nil, &ProtocolError{Op: "encode client", Message: m.Kind.String(), Err: errUnknownKind}
	}

	var payload []byte
	if m.Kind.sequenced() {
		payload = appendInt32(payload, sequenceNumberField, m.SequenceNumber)
	}

	b := appendString(nil, clientTrackingID, m.TrackingID)
	return appendMessage(b, protowire.Number(m.Kind), payload), nil
}

// EncodePush encodes a server frame. It is the inverse of DecodePush and is
// used to replay captured traffic and to drive test servers.
func EncodePush(m *PushMessage) ([]byte, error) {
	if m == nil {
		return nil, &ProtocolError{Op: "encode push", Err: errors.New("nil message")}
	}

	num, ok := pushFieldNumber(m.Kind)
	if !ok {
		return nil, &ProtocolError{Op: "encode push", Message: m.Kind.String(), Err: errUnknownKind}
	}

	var payload []byte
	switch m.Kind {
	case KindVEPUpdate:
		if m.VEPUpdate != nil {
			payload = m.VEPUpdate.encode(nil)
		}
	case KindVEPUpdates:
		if m.VEPUpdates != nil {
			payload = m.VEPUpdates.encode(nil)
		}
	case KindDebugMessage:
		if m.Debug != nil {
			payload = appendString(nil, 1, m.Debug.Message)
		}
	case KindCommandStatusUpdates:
		if m.CommandStatus != nil {
			payload = m.CommandStatus.encode(nil)
		}
	case KindAssignedVehicles:
		if m.AssignedVehicles != nil {
			for _, vin := range m.AssignedVehicles.VINs {
				payload = protowire.AppendTag(payload, 1, protowire.BytesType)
				payload = protowire.AppendString(payload, vin)
			}
		}
	case KindPendingCommandRequest, KindUserVehicleAuthChanged:
	default:
		if m.Sequenced != nil {
			payload = appendInt32(nil, sequenceNumberField, m.Sequenced.SequenceNumber)
		}
	}

	b := appendMessage(nil, num, payload)
	return appendString(b, pushTrackingID, m.TrackingID), nil
}

func pushFieldNumber(k Kind) (protowire.Number, bool) {
	for num, kind := range pushFieldKinds {
		if kind == k {
			return num, true
		}
	}
	return 0, false
}

func (u *VEPUpdatesByVIN) encode(b []byte) []byte {
	keys := make([]string, 0, len(u.Updates))
	for k := range u.Updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := appendString(nil, 1, k)
		entry = appendMessage(entry, 2, u.Updates[k].encode(nil))
		b = appendMessage(b, 1, entry)
	}
	return appendInt32(b, 2, u.SequenceNumber)
}

func (u *VEPUpdate) encode(b []byte) []byte {
	b = appendString(b, 1, u.VIN)
	b = appendInt32(b, 2, u.SequenceNumber)
	b = appendBool(b, 3, u.FullUpdate)
	b = appendInt64(b, 4, u.EmitTimestampMs)

	keys := make([]string, 0, len(u.Attributes))
	for k := range u.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := appendString(nil, 1, k)
		entry = appendMessage(entry, 2, u.Attributes[k].encode(nil))
		b = appendMessage(b, 5, entry)
	}
	return b
}

func (a *AttributeStatus) encode(b []byte) []byte {
	b = appendInt64(b, 1, a.TimestampMs)
	b = appendBool(b, 2, a.Changed)
	b = appendInt32(b, 3, a.Status)
	b = appendString(b, 4, a.DisplayValue)

	switch {
	case a.IntValue != nil:
		b = protowire.AppendTag(b, 10, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*a.IntValue))
	case a.BoolValue != nil:
		b = protowire.AppendTag(b, 11, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(*a.BoolValue))
	case a.StringValue != nil:
		b = protowire.AppendTag(b, 12, protowire.BytesType)
		b = protowire.AppendString(b, *a.StringValue)
	case a.DoubleValue != nil:
		b = protowire.AppendTag(b, 13, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*a.DoubleValue))
	case a.NilValue:
		b = appendBool(b, 14, true)
	}

	return appendString(b, 20, a.Unit)
}

func (u *CommandStatusUpdates) encode(b []byte) []byte {
	b = appendInt32(b, 1, u.SequenceNumber)

	keys := make([]string, 0, len(u.UpdatesByVIN))
	for k := range u.UpdatesByVIN {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := appendString(nil, 1, k)
		entry = appendMessage(entry, 2, u.UpdatesByVIN[k].encode(nil))
		b = appendMessage(b, 2, entry)
	}
	return b
}

func (p *CommandStatusByPID) encode(b []byte) []byte {
	b = appendString(b, 1, p.VIN)

	pids := make([]int64, 0, len(p.UpdatesByPID))
	for pid := range p.UpdatesByPID {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		entry := appendInt64(nil, 1, pid)
		entry = appendMessage(entry, 2, p.UpdatesByPID[pid].encode(nil))
		b = appendMessage(b, 2, entry)
	}
	return b
}

func (c *CommandStatus) encode(b []byte) []byte {
	b = appendInt64(b, 1, c.ProcessID)
	b = appendString(b, 2, c.RequestID)
	b = appendInt64(b, 3, c.TimestampMs)
	b = appendInt32(b, 4, int32(c.Type))
	b = appendInt32(b, 5, int32(c.State))
	for _, e := range c.Errors {
		msg := appendString(nil, 1, e.Code)
		msg = appendString(msg, 2, e.Message)
		b = appendMessage(b, 6, msg)
	}
	return b
}

// String renders a client message for logs.
func (m *ClientMessage) String() string {
	if m.Kind.sequenced() {
		return fmt.Sprintf("%s{sequence_number:%d}", m.Kind, m.SequenceNumber)
	}
	return m.Kind.String() + "{}"
}
