// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package protocol

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies the payload carried by a PushMessage.
type Kind int

// Push message kinds.
const (
	KindUnknown Kind = iota
	KindVEPUpdate
	KindVEPUpdates
	KindDebugMessage
	KindServiceStatusUpdates
	KindUserDataUpdate
	KindUserVehicleAuthChanged
	KindUserPictureUpdate
	KindUserPINUpdate
	KindVehicleUpdated
	KindPreferredDealerChange
	KindCommandStatusUpdates
	KindPendingCommandRequest
	KindAssignedVehicles
	KindDataChangeEvent
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindVEPUpdate:              "vep_update",
	KindVEPUpdates:             "vep_updates",
	KindDebugMessage:           "debug_message",
	KindServiceStatusUpdates:   "service_status_updates",
	KindUserDataUpdate:         "user_data_update",
	KindUserVehicleAuthChanged: "user_vehicle_auth_changed_update",
	KindUserPictureUpdate:      "user_picture_update",
	KindUserPINUpdate:          "user_pin_update",
	KindVehicleUpdated:         "vehicle_updated",
	KindPreferredDealerChange:  "preferred_dealer_change",
	KindCommandStatusUpdates:   "apptwin_command_status_updates_by_vin",
	KindPendingCommandRequest:  "apptwin_pending_command_request",
	KindAssignedVehicles:       "assigned_vehicles",
	KindDataChangeEvent:        "data_change_event",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// PushMessage field numbers. The payload fields form a oneof.
const (
	pushVEPUpdate              protowire.Number = 1
	pushVEPUpdates             protowire.Number = 2
	pushDebugMessage           protowire.Number = 3
	pushTrackingID             protowire.Number = 5
	pushServiceStatusUpdates   protowire.Number = 10
	pushUserDataUpdate         protowire.Number = 11
	pushCommandStatusUpdates   protowire.Number = 12
	pushPendingCommandRequest  protowire.Number = 13
	pushUserVehicleAuthChanged protowire.Number = 14
	pushUserPictureUpdate      protowire.Number = 15
	pushUserPINUpdate          protowire.Number = 16
	pushVehicleUpdated         protowire.Number = 17
	pushPreferredDealerChange  protowire.Number = 18
	pushAssignedVehicles       protowire.Number = 19
	pushDataChangeEvent        protowire.Number = 20
)

var pushFieldKinds = map[protowire.Number]Kind{
	pushVEPUpdate:              KindVEPUpdate,
	pushVEPUpdates:             KindVEPUpdates,
	pushDebugMessage:           KindDebugMessage,
	pushServiceStatusUpdates:   KindServiceStatusUpdates,
	pushUserDataUpdate:         KindUserDataUpdate,
	pushCommandStatusUpdates:   KindCommandStatusUpdates,
	pushPendingCommandRequest:  KindPendingCommandRequest,
	pushUserVehicleAuthChanged: KindUserVehicleAuthChanged,
	pushUserPictureUpdate:      KindUserPictureUpdate,
	pushUserPINUpdate:          KindUserPINUpdate,
	pushVehicleUpdated:         KindVehicleUpdated,
	pushPreferredDealerChange:  KindPreferredDealerChange,
	pushAssignedVehicles:       KindAssignedVehicles,
	pushDataChangeEvent:        KindDataChangeEvent,
}

// PushMessage is a decoded server frame. Exactly one payload field matching
// Kind is set; notification kinds that only carry a sequence number use
// Sequenced.
type PushMessage struct {
	Kind       Kind
	TrackingID string

	VEPUpdate        *VEPUpdate
	VEPUpdates       *VEPUpdatesByVIN
	Debug            *DebugMessage
	Sequenced        *SequencedUpdate
	CommandStatus    *CommandStatusUpdates
	AssignedVehicles *AssignedVehicles

	// Payload is the raw encoding of the oneof field, kept for diagnostics.
	Payload []byte
	// UnknownFields lists field numbers that were skipped.
	UnknownFields []protowire.Number
}

// SequenceNumber returns the sequence number of the payload, or 0 when the
// kind carries none.
func (m *PushMessage) SequenceNumber() int32 {
	switch {
	case m.VEPUpdates != nil && m.Kind == KindVEPUpdates:
		return m.VEPUpdates.SequenceNumber
	case m.VEPUpdate != nil && m.Kind == KindVEPUpdate:
		return m.VEPUpdate.SequenceNumber
	case m.CommandStatus != nil && m.Kind == KindCommandStatusUpdates:
		return m.CommandStatus.SequenceNumber
	case m.Sequenced != nil:
		return m.Sequenced.SequenceNumber
	}
	return 0
}

// VEPUpdatesByVIN is a batch of attribute updates keyed by vehicle id.
type VEPUpdatesByVIN struct {
	Updates        map[string]*VEPUpdate
	SequenceNumber int32
}

// VEPUpdate carries one vehicle's attribute changes.
type VEPUpdate struct {
	VIN             string
	SequenceNumber  int32
	FullUpdate      bool
	EmitTimestampMs int64
	Attributes      map[string]*AttributeStatus
}

// Wire retrieval status codes of an AttributeStatus.
const (
	StatusValid        int32 = 0
	StatusNotReceived  int32 = 1
	StatusInvalid      int32 = 3
	StatusNotAvailable int32 = 4
)

// AttributeStatus is one attribute as sent by the server. At most one of the
// value fields is set.
type AttributeStatus struct {
	TimestampMs  int64
	Changed      bool
	Status       int32
	DisplayValue string
	StringValue  *string
	IntValue     *int64
	DoubleValue  *float64
	BoolValue    *bool
	NilValue     bool
	Unit         string
}

// Value returns the first present value in the order string, int, double,
// bool. ok is false when none is set.
func (a *AttributeStatus) Value() (v interface{}, ok bool) {
	switch {
	case a.StringValue != nil:
		return *a.StringValue, true
	case a.IntValue != nil:
		return *a.IntValue, true
	case a.DoubleValue != nil:
		return *a.DoubleValue, true
	case a.BoolValue != nil:
		return *a.BoolValue, true
	}
	return nil, false
}

// DebugMessage is a free-form server diagnostic.
type DebugMessage struct {
	Message string
}

// SequencedUpdate is the common shape of account notifications that are
// only logged and acknowledged.
type SequencedUpdate struct {
	SequenceNumber int32
}

// CommandStatusUpdates reports progress of remote commands per vehicle.
type CommandStatusUpdates struct {
	SequenceNumber int32
	UpdatesByVIN   map[string]*CommandStatusByPID
}

// CommandStatusByPID holds a vehicle's command statuses keyed by process id.
type CommandStatusByPID struct {
	VIN          string
	UpdatesByPID map[int64]*CommandStatus
}

// CommandState is the lifecycle state of a remote command.
type CommandState int32

// Command states.
const (
	CommandStateUnknown CommandState = iota
	CommandStateInitiation
	CommandStateEnqueued
	CommandStateProcessing
	CommandStateWaiting
	CommandStateFinished
	CommandStateFailed
)

var commandStateNames = [...]string{
	"UNKNOWN_COMMAND_STATE",
	"INITIATION",
	"ENQUEUED",
	"PROCESSING",
	"WAITING",
	"FINISHED",
	"FAILED",
}

func (s CommandState) String() string {
	if s >= 0 && int(s) < len(commandStateNames) {
		return commandStateNames[s]
	}
	return "COMMAND_STATE_" + strconv.Itoa(int(s))
}

// CommandType is the remote command a status refers to.
type CommandType int32

// Command types for the remote commands this module issues.
const (
	CommandTypeUnknown        CommandType = 0
	CommandTypeDoorsLock      CommandType = 100
	CommandTypeDoorsUnlock    CommandType = 110
	CommandTypeAuxHeatStart   CommandType = 300
	CommandTypeAuxHeatStop    CommandType = 310
	CommandTypePrecondStart   CommandType = 400
	CommandTypePrecondStop    CommandType = 410
	CommandTypeChargeOptStart CommandType = 440
	CommandTypeFeedPOI        CommandType = 500
	CommandTypeEngineStart    CommandType = 550
	CommandTypeEngineStop     CommandType = 560
	CommandTypeSunroofOpen    CommandType = 800
	CommandTypeSunroofLift    CommandType = 810
	CommandTypeSunroofClose   CommandType = 820
	CommandTypeWindowOpen     CommandType = 840
	CommandTypeWindowClose    CommandType = 850
	CommandTypeWindowMove     CommandType = 870
	CommandTypeSigPosStart    CommandType = 1000
	CommandTypeChargeProgram  CommandType = 3300
	CommandTypeBatteryMaxSoC  CommandType = 3310
)

var commandTypeNames = map[CommandType]string{
	CommandTypeUnknown:        "UNKNOWNCOMMANDTYPE",
	CommandTypeDoorsLock:      "DOORSLOCK",
	CommandTypeDoorsUnlock:    "DOORSUNLOCK",
	CommandTypeAuxHeatStart:   "AUXHEATSTART",
	CommandTypeAuxHeatStop:    "AUXHEATSTOP",
	CommandTypePrecondStart:   "PRECONDSTART",
	CommandTypePrecondStop:    "PRECONDSTOP",
	CommandTypeChargeOptStart: "CHARGEOPTSTART",
	CommandTypeFeedPOI:        "FEED_POI",
	CommandTypeEngineStart:    "ENGINESTART",
	CommandTypeEngineStop:     "ENGINESTOP",
	CommandTypeSunroofOpen:    "SUNROOFOPEN",
	CommandTypeSunroofLift:    "SUNROOFLIFT",
	CommandTypeSunroofClose:   "SUNROOFCLOSE",
	CommandTypeWindowOpen:     "WINDOWOPEN",
	CommandTypeWindowClose:    "WINDOWCLOSE",
	CommandTypeWindowMove:     "WINDOWMOVE",
	CommandTypeSigPosStart:    "SIGPOSSTART",
	CommandTypeChargeProgram:  "CHARGEPROGRAMCONFIGURE",
	CommandTypeBatteryMaxSoC:  "BATTERYMAXSOC_CONFIGURE",
}

func (t CommandType) String() string {
	if name, ok := commandTypeNames[t]; ok {
		return name
	}
	return "COMMAND_TYPE_" + strconv.Itoa(int(t))
}

// CommandStatus is the state of one remote command.
type CommandStatus struct {
	ProcessID   int64
	RequestID   string
	TimestampMs int64
	Type        CommandType
	State       CommandState
	Errors      []CommandError
}

// CommandError is an error reported for a remote command.
type CommandError struct {
	Code    string
	Message string
}

// AssignedVehicles lists the vehicle ids bound to the account.
type AssignedVehicles struct {
	VINs []string
}

// ClientKind identifies the payload of a ClientMessage.
type ClientKind protowire.Number

// ClientMessage payloads, numbered by their wire field.
const (
	AckVEPUpdates            ClientKind = 4
	AckServiceStatusUpdate   ClientKind = 8
	AckUserDataUpdate        ClientKind = 9
	AckUserPictureUpdate     ClientKind = 10
	AckUserPINUpdate         ClientKind = 11
	AckVehicleUpdated        ClientKind = 13
	AckPreferredDealerChange ClientKind = 14
	AckCommandStatusUpdates  ClientKind = 16
	PendingCommandsResponse  ClientKind = 21
	AckDataChangeEvent       ClientKind = 22
	AckAssignedVehicles      ClientKind = 23
)

const (
	clientTrackingID    protowire.Number = 1
	sequenceNumberField protowire.Number = 1
)

var clientKindNames = map[ClientKind]string{
	AckVEPUpdates:            "acknowledge_vep_updates_by_vin",
	AckServiceStatusUpdate:   "acknowledge_service_status_update",
	AckUserDataUpdate:        "acknowledge_user_data_update",
	AckUserPictureUpdate:     "acknowledge_user_picture_update",
	AckUserPINUpdate:         "acknowledge_user_pin_update",
	AckVehicleUpdated:        "acknowledge_vehicle_updated",
	AckPreferredDealerChange: "acknowledge_preferred_dealer_change",
	AckCommandStatusUpdates:  "acknowledge_apptwin_command_status_update_by_vin",
	PendingCommandsResponse:  "apptwin_pending_commands_response",
	AckDataChangeEvent:       "acknowledge_data_change_event",
	AckAssignedVehicles:      "acknowledge_assigned_vehicles",
}

func (k ClientKind) String() string {
	if name, ok := clientKindNames[k]; ok {
		return name
	}
	return "client_kind(" + strconv.Itoa(int(k)) + ")"
}

// sequenced reports whether the payload message carries a sequence number.
func (k ClientKind) sequenced() bool {
	return k != PendingCommandsResponse && k != AckAssignedVehicles
}

// ClientMessage is a frame sent by the client.
type ClientMessage struct {
	TrackingID     string
	Kind           ClientKind
	SequenceNumber int32
}

// Ack builds an acknowledgement of the given kind.
func Ack(kind ClientKind, sequenceNumber int32) *ClientMessage {
	return &ClientMessage{Kind: kind, SequenceNumber: sequenceNumber}
}
