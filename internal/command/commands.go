// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package command

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/protocol"
	"github.com/tomtom215/fleetlink/internal/validation"
)

// Command is a remote vehicle command. Build it with the constructors below.
type Command struct {
	Type          protocol.CommandType `json:"-"`
	PIN           string               `json:"pin,omitempty" validate:"omitempty,pin"`
	Windows       *WindowPositions     `json:"windows,omitempty"`
	ChargeProgram *int                 `json:"chargeProgram,omitempty" validate:"omitempty,min=0,max=7"`
	MaxSoC        *int                 `json:"maxSoc,omitempty" validate:"omitempty,min=50,max=100"`
}

// WindowPositions are target opening percentages. Nil leaves a window unchanged.
type WindowPositions struct {
	FrontLeft  *int `json:"frontLeft,omitempty" validate:"omitempty,min=0,max=100"`
	FrontRight *int `json:"frontRight,omitempty" validate:"omitempty,min=0,max=100"`
	RearLeft   *int `json:"rearLeft,omitempty" validate:"omitempty,min=0,max=100"`
	RearRight  *int `json:"rearRight,omitempty" validate:"omitempty,min=0,max=100"`
}

func (w *WindowPositions) empty() bool {
	return w == nil || (w.FrontLeft == nil && w.FrontRight == nil && w.RearLeft == nil && w.RearRight == nil)
}

// pinRequired lists the command types the backend rejects without a PIN.
var pinRequired = map[protocol.CommandType]bool{
	protocol.CommandTypeDoorsUnlock: true,
	protocol.CommandTypeEngineStart: true,
	protocol.CommandTypeSunroofOpen: true,
	protocol.CommandTypeSunroofLift: true,
	protocol.CommandTypeWindowOpen:  true,
	protocol.CommandTypeWindowMove:  true,
}

// Validate checks field formats and the per-type required parameters.
func (c *Command) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if pinRequired[c.Type] && c.PIN == "" {
		return fmt.Errorf("%w: %s requires a PIN", ErrInvalidCommand, c.Type)
	}

	switch c.Type {
	case protocol.CommandTypeWindowMove:
		if c.Windows.empty() {
			return fmt.Errorf("%w: %s requires at least one window position", ErrInvalidCommand, c.Type)
		}
	case protocol.CommandTypeChargeProgram:
		if c.ChargeProgram == nil {
			return fmt.Errorf("%w: %s requires a charge program", ErrInvalidCommand, c.Type)
		}
	case protocol.CommandTypeBatteryMaxSoC:
		if c.MaxSoC == nil {
			return fmt.Errorf("%w: %s requires a maximum state of charge", ErrInvalidCommand, c.Type)
		}
		if *c.MaxSoC%10 != 0 {
			return fmt.Errorf("%w: maximum state of charge must be a multiple of 10", ErrInvalidCommand)
		}
	}
	return nil
}

// DoorsLock locks the vehicle.
func DoorsLock() Command { return Command{Type: protocol.CommandTypeDoorsLock} }

// DoorsUnlock unlocks the vehicle.
func DoorsUnlock(pin string) Command { return Command{Type: protocol.CommandTypeDoorsUnlock, PIN: pin} }

// AuxHeatStart starts the auxiliary heating.
func AuxHeatStart() Command { return Command{Type: protocol.CommandTypeAuxHeatStart} }

// AuxHeatStop stops the auxiliary heating.
func AuxHeatStop() Command { return Command{Type: protocol.CommandTypeAuxHeatStop} }

// EngineStart starts the engine remotely.
func EngineStart(pin string) Command { return Command{Type: protocol.CommandTypeEngineStart, PIN: pin} }

// EngineStop stops a remotely started engine.
func EngineStop() Command { return Command{Type: protocol.CommandTypeEngineStop} }

// SunroofOpen opens the sunroof.
func SunroofOpen(pin string) Command { return Command{Type: protocol.CommandTypeSunroofOpen, PIN: pin} }

// SunroofTilt lifts the rear edge of the sunroof.
func SunroofTilt(pin string) Command { return Command{Type: protocol.CommandTypeSunroofLift, PIN: pin} }

// SunroofClose closes the sunroof.
func SunroofClose() Command { return Command{Type: protocol.CommandTypeSunroofClose} }

// WindowsOpen opens all windows.
func WindowsOpen(pin string) Command { return Command{Type: protocol.CommandTypeWindowOpen, PIN: pin} }

// WindowsClose closes all windows.
func WindowsClose() Command { return Command{Type: protocol.CommandTypeWindowClose} }

// WindowsMove moves each window with a position to that opening percentage.
func WindowsMove(pin string, pos WindowPositions) Command {
	return Command{Type: protocol.CommandTypeWindowMove, PIN: pin, Windows: &pos}
}

// PreconditionStart starts cabin preconditioning now.
func PreconditionStart() Command { return Command{Type: protocol.CommandTypePrecondStart} }

// PreconditionStop stops cabin preconditioning.
func PreconditionStop() Command { return Command{Type: protocol.CommandTypePrecondStop} }

// SignalPosition flashes the lights.
func SignalPosition() Command { return Command{Type: protocol.CommandTypeSigPosStart} }

// SelectChargeProgram selects the active charge program.
func SelectChargeProgram(program int) Command {
	return Command{Type: protocol.CommandTypeChargeProgram, ChargeProgram: &program}
}

// ConfigureMaxSoC sets the maximum state of charge of a charge program.
func ConfigureMaxSoC(maxSoC, program int) Command {
	return Command{Type: protocol.CommandTypeBatteryMaxSoC, MaxSoC: &maxSoC, ChargeProgram: &program}
}

// commandBody is the wire form of a command request.
type commandBody struct {
	RequestID string `json:"requestId"`
	Type      string `json:"type"`
	Command
}

// Accepted identifies a queued command. ProcessID correlates with the
// command status updates pushed over the websocket.
type Accepted struct {
	ProcessID int64  `json:"process_id"`
	RequestID string `json:"request_id"`
}

// SendCommand validates cmd and submits it for the vehicle.
func (c *Client) SendCommand(ctx context.Context, vin string, cmd Command) (*Accepted, error) {
	if err := checkVIN(vin); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	body := commandBody{RequestID: uuid.NewString(), Type: cmd.Type.String(), Command: cmd}
	log := logging.Ctx(ctx).With().Str("vin", logging.MaskVIN(vin)).Str("command", body.Type).Str("request_id", body.RequestID).Logger()
	log.Info().Msg("Sending command")

	accepted, err := request[Accepted](ctx, c, requestConfig{
		method:   http.MethodPost,
		path:     "/v1/vehicle/" + url.PathEscape(vin) + "/commands",
		body:     body,
		endpoint: "/v1/vehicle/{vin}/commands",
	})
	if err != nil {
		log.Warn().Err(err).Msg("Command failed")
		return nil, err
	}
	if accepted.RequestID == "" {
		accepted.RequestID = body.RequestID
	}
	log.Info().Int64("process_id", accepted.ProcessID).Msg("Command accepted")
	return accepted, nil
}
