// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ProtocolError reports a frame that could not be decoded or encoded.
// The frame should be dropped; the connection remains usable.
type ProtocolError struct {
	// Op is the operation that failed, e.g. "decode push".
	Op string
	// Message names the message type being processed.
	Message string
	// Err is the underlying wire error.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("protocol: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// wireError converts a negative protowire length into an error.
func wireError(n int) error {
	return protowire.ParseError(n)
}
