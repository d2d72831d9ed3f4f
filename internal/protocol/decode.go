// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package protocol

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldHandler consumes the value of one field from b and returns the number
// of bytes read. Returning 0 leaves the field to be skipped as unknown; a
// negative value is a protowire parse error.
type fieldHandler func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// walk iterates over the fields of one message.
func walk(b []byte, fn fieldHandler) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return wireError(m)
		}
		b = b[m:]
	}
	return nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = string(v)
	}
	return n
}

func consumeInt64(typ protowire.Type, b []byte, dst *int64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) int {
	var v int64
	n := consumeInt64(typ, b, &v)
	if n > 0 {
		*dst = int32(v)
	}
	return n
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = protowire.DecodeBool(v)
	}
	return n
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) int {
	if typ != protowire.Fixed64Type {
		return 0
	}
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = math.Float64frombits(v)
	}
	return n
}

// consumeMessage reads a length-delimited sub-message and decodes it with fn.
func consumeMessage(typ protowire.Type, b []byte, fn func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, nil
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n, nil
	}
	return n, fn(v)
}

// DecodePush decodes a server frame.
func DecodePush(b []byte) (*PushMessage, error) {
	m := &PushMessage{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == pushTrackingID {
			return consumeString(typ, b, &m.TrackingID), nil
		}
		kind, ok := pushFieldKinds[num]
		if !ok {
			m.UnknownFields = append(m.UnknownFields, num)
			return 0, nil
		}
		return consumeMessage(typ, b, func(payload []byte) error {
			m.Kind = kind
			m.Payload = payload
			return m.decodePayload(payload)
		})
	})
	if err != nil {
		return nil, &ProtocolError{Op: "decode push", Message: m.Kind.String(), Err: err}
	}
	return m, nil
}

func (m *PushMessage) decodePayload(b []byte) error {
	switch m.Kind {
	case KindVEPUpdate:
		m.VEPUpdate = &VEPUpdate{}
		return m.VEPUpdate.decode(b)
	case KindVEPUpdates:
		m.VEPUpdates = &VEPUpdatesByVIN{}
		return m.VEPUpdates.decode(b)
	case KindDebugMessage:
		m.Debug = &DebugMessage{}
		return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				return consumeString(typ, b, &m.Debug.Message), nil
			}
			return 0, nil
		})
	case KindCommandStatusUpdates:
		m.CommandStatus = &CommandStatusUpdates{}
		return m.CommandStatus.decode(b)
	case KindAssignedVehicles:
		m.AssignedVehicles = &AssignedVehicles{}
		return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == 1 {
				var vin string
				n := consumeString(typ, b, &vin)
				if n > 0 {
					m.AssignedVehicles.VINs = append(m.AssignedVehicles.VINs, vin)
				}
				return n, nil
			}
			return 0, nil
		})
	case KindPendingCommandRequest, KindUserVehicleAuthChanged:
		return walk(b, func(protowire.Number, protowire.Type, []byte) (int, error) { return 0, nil })
	default:
		m.Sequenced = &SequencedUpdate{}
		return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == sequenceNumberField {
				return consumeInt32(typ, b, &m.Sequenced.SequenceNumber), nil
			}
			return 0, nil
		})
	}
}

func (u *VEPUpdatesByVIN) decode(b []byte) error {
	u.Updates = make(map[string]*VEPUpdate)
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(typ, b, func(entry []byte) error {
				var key string
				value := &VEPUpdate{}
				err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &key), nil
					case 2:
						return consumeMessage(typ, b, value.decode)
					}
					return 0, nil
				})
				if err != nil {
					return err
				}
				if value.VIN == "" {
					value.VIN = key
				}
				u.Updates[key] = value
				return nil
			})
		case 2:
			return consumeInt32(typ, b, &u.SequenceNumber), nil
		}
		return 0, nil
	})
}

func (u *VEPUpdate) decode(b []byte) error {
	if u.Attributes == nil {
		u.Attributes = make(map[string]*AttributeStatus)
	}
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &u.VIN), nil
		case 2:
			return consumeInt32(typ, b, &u.SequenceNumber), nil
		case 3:
			return consumeBool(typ, b, &u.FullUpdate), nil
		case 4:
			return consumeInt64(typ, b, &u.EmitTimestampMs), nil
		case 5:
			return consumeMessage(typ, b, func(entry []byte) error {
				var key string
				value := &AttributeStatus{}
				err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &key), nil
					case 2:
						return consumeMessage(typ, b, value.decode)
					}
					return 0, nil
				})
				if err != nil {
					return err
				}
				u.Attributes[key] = value
				return nil
			})
		}
		return 0, nil
	})
}

func (a *AttributeStatus) decode(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt64(typ, b, &a.TimestampMs), nil
		case 2:
			return consumeBool(typ, b, &a.Changed), nil
		case 3:
			return consumeInt32(typ, b, &a.Status), nil
		case 4:
			return consumeString(typ, b, &a.DisplayValue), nil
		case 10:
			var v int64
			n := consumeInt64(typ, b, &v)
			if n > 0 {
				a.clearValue()
				a.IntValue = &v
			}
			return n, nil
		case 11:
			var v bool
			n := consumeBool(typ, b, &v)
			if n > 0 {
				a.clearValue()
				a.BoolValue = &v
			}
			return n, nil
		case 12:
			var v string
			n := consumeString(typ, b, &v)
			if n > 0 {
				a.clearValue()
				a.StringValue = &v
			}
			return n, nil
		case 13:
			var v float64
			n := consumeDouble(typ, b, &v)
			if n > 0 {
				a.clearValue()
				a.DoubleValue = &v
			}
			return n, nil
		case 14:
			var v bool
			n := consumeBool(typ, b, &v)
			if n > 0 {
				a.clearValue()
				a.NilValue = v
			}
			return n, nil
		case 20:
			return consumeString(typ, b, &a.Unit), nil
		}
		return 0, nil
	})
}

// clearValue resets the value oneof; the last value field on the wire wins.
func (a *AttributeStatus) clearValue() {
	a.StringValue = nil
	a.IntValue = nil
	a.DoubleValue = nil
	a.BoolValue = nil
	a.NilValue = false
}

func (u *CommandStatusUpdates) decode(b []byte) error {
	u.UpdatesByVIN = make(map[string]*CommandStatusByPID)
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &u.SequenceNumber), nil
		case 2:
			return consumeMessage(typ, b, func(entry []byte) error {
				var key string
				value := &CommandStatusByPID{UpdatesByPID: make(map[int64]*CommandStatus)}
				err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &key), nil
					case 2:
						return consumeMessage(typ, b, value.decode)
					}
					return 0, nil
				})
				if err != nil {
					return err
				}
				if value.VIN == "" {
					value.VIN = key
				}
				u.UpdatesByVIN[key] = value
				return nil
			})
		}
		return 0, nil
	})
}

func (p *CommandStatusByPID) decode(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &p.VIN), nil
		case 2:
			return consumeMessage(typ, b, func(entry []byte) error {
				var key int64
				value := &CommandStatus{}
				err := walk(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeInt64(typ, b, &key), nil
					case 2:
						return consumeMessage(typ, b, value.decode)
					}
					return 0, nil
				})
				if err != nil {
					return err
				}
				p.UpdatesByPID[key] = value
				return nil
			})
		}
		return 0, nil
	})
}

func (c *CommandStatus) decode(b []byte) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt64(typ, b, &c.ProcessID), nil
		case 2:
			return consumeString(typ, b, &c.RequestID), nil
		case 3:
			return consumeInt64(typ, b, &c.TimestampMs), nil
		case 4:
			var v int32
			n := consumeInt32(typ, b, &v)
			if n > 0 {
				c.Type = CommandType(v)
			}
			return n, nil
		case 5:
			var v int32
			n := consumeInt32(typ, b, &v)
			if n > 0 {
				c.State = CommandState(v)
			}
			return n, nil
		case 6:
			return consumeMessage(typ, b, func(msg []byte) error {
				var e CommandError
				err := walk(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeString(typ, b, &e.Code), nil
					case 2:
						return consumeString(typ, b, &e.Message), nil
					}
					return 0, nil
				})
				if err != nil {
					return err
				}
				c.Errors = append(c.Errors, e)
				return nil
			})
		}
		return 0, nil
	})
}

// DecodeClient decodes a client frame.
func DecodeClient(b []byte) (*ClientMessage, error) {
	m := &ClientMessage{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == clientTrackingID {
			return consumeString(typ, b, &m.TrackingID), nil
		}
		kind := ClientKind(num)
		if _, ok := clientKindNames[kind]; !ok {
			return 0, nil
		}
		return consumeMessage(typ, b, func(payload []byte) error {
			m.Kind = kind
			m.SequenceNumber = 0
			return walk(payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num == sequenceNumberField && kind.sequenced() {
					return consumeInt32(typ, b, &m.SequenceNumber), nil
				}
				return 0, nil
			})
		})
	})
	if err != nil {
		return nil, &ProtocolError{Op: "decode client", Message: m.Kind.String(), Err: err}
	}
	return m, nil
}
