// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/protocol"
)

// DefaultLoadTimeout is how long after the first attribute batch the load is
// declared complete even if some vehicles never sent a full update.
const DefaultLoadTimeout = 30 * time.Second

// Config configures an Aggregator.
type Config struct {
	// ExcludedVehicles are ignored by membership and attribute updates.
	ExcludedVehicles []string
	// LoadTimeout defaults to DefaultLoadTimeout.
	LoadTimeout time.Duration
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of handling one push message.
type Result struct {
	// Ack is the acknowledgement to send, nil when the kind needs none.
	Ack *protocol.ClientMessage
	// Changed lists vehicles whose state changed, reported only once the
	// initial load is complete.
	Changed []string
	// LoadCompleted is true for exactly one message: the one that completed
	// the initial load.
	LoadCompleted bool
}

type handlerFunc func(a *Aggregator, msg *protocol.PushMessage) Result

// Aggregator owns the fleet state. Handle must be called from a single
// goroutine; readers may call the accessors concurrently.
type Aggregator struct {
	handlers    map[protocol.Kind]handlerFunc
	excluded    map[string]struct{}
	loadTimeout time.Duration
	now         func() time.Time

	mu             sync.RWMutex
	vehicles       map[string]*Vehicle
	membershipSeen bool
	firstBatchAt   time.Time
	loadComplete   bool
	loadedAt       time.Time
}

// NewAggregator creates an empty fleet.
func NewAggregator(cfg Config) *Aggregator {
	a := &Aggregator{
		excluded:    make(map[string]struct{}, len(cfg.ExcludedVehicles)),
		loadTimeout: cfg.LoadTimeout,
		now:         cfg.Now,
		vehicles:    make(map[string]*Vehicle),
	}
	if a.loadTimeout <= 0 {
		a.loadTimeout = DefaultLoadTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	for _, id := range cfg.ExcludedVehicles {
		a.excluded[id] = struct{}{}
	}

	a.handlers = map[protocol.Kind]handlerFunc{
		protocol.KindVEPUpdate:              handleIgnored,
		protocol.KindVEPUpdates:             handleVEPUpdates,
		protocol.KindDebugMessage:           handleDebug,
		protocol.KindServiceStatusUpdates:   ackAndLog(protocol.AckServiceStatusUpdate),
		protocol.KindUserDataUpdate:         ackAndLog(protocol.AckUserDataUpdate),
		protocol.KindUserPictureUpdate:      ackAndLog(protocol.AckUserPictureUpdate),
		protocol.KindUserPINUpdate:          ackAndLog(protocol.AckUserPINUpdate),
		protocol.KindVehicleUpdated:         ackAndLog(protocol.AckVehicleUpdated),
		protocol.KindPreferredDealerChange:  ackAndLog(protocol.AckPreferredDealerChange),
		protocol.KindDataChangeEvent:        ackAndLog(protocol.AckDataChangeEvent),
		protocol.KindUserVehicleAuthChanged: handleLogOnly,
		protocol.KindCommandStatusUpdates:   handleCommandStatus,
		protocol.KindPendingCommandRequest:  handlePendingCommands,
		protocol.KindAssignedVehicles:       handleAssignedVehicles,
	}
	return a
}

// Handle applies one push message to the fleet.
func (a *Aggregator) Handle(msg *protocol.PushMessage) Result {
	if msg == nil {
		return Result{}
	}
	h, ok := a.handlers[msg.Kind]
	if !ok {
		logging.Debug().
			Str("kind", msg.Kind.String()).
			Interface("unknown_fields", msg.UnknownFields).
			Msg("Message type not implemented")
		return Result{}
	}
	return h(a, msg)
}

func handleIgnored(_ *Aggregator, msg *protocol.PushMessage) Result {
	logging.Debug().Str("kind", msg.Kind.String()).Msg("Ignoring message")
	return Result{}
}

func handleLogOnly(_ *Aggregator, msg *protocol.PushMessage) Result {
	logging.Debug().Str("kind", msg.Kind.String()).Int("payload_bytes", len(msg.Payload)).Msg("Notification received")
	return Result{}
}

func handleDebug(_ *Aggregator, msg *protocol.PushMessage) Result {
	if msg.Debug != nil {
		logging.Debug().Str("message", msg.Debug.Message).Msg("Debug message received")
	}
	return Result{}
}

func ackAndLog(kind protocol.ClientKind) handlerFunc {
	return func(_ *Aggregator, msg *protocol.PushMessage) Result {
		seq := msg.SequenceNumber()
		logging.Debug().Str("kind", msg.Kind.String()).Int32("sequence", seq).Msg("Notification received")
		return Result{Ack: protocol.Ack(kind, seq)}
	}
}

func handlePendingCommands(_ *Aggregator, _ *protocol.PushMessage) Result {
	return Result{Ack: protocol.Ack(protocol.PendingCommandsResponse, 0)}
}

// handleAssignedVehicles registers the account's vehicles. Membership is only
// taken from messages received before the initial load completed. A fleet with
// no eligible vehicles completes the load right away.
func handleAssignedVehicles(a *Aggregator, msg *protocol.PushMessage) Result {
	res := Result{Ack: protocol.Ack(protocol.AckAssignedVehicles, 0)}
	var vins []string
	if msg.AssignedVehicles != nil {
		vins = msg.AssignedVehicles.VINs
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadComplete {
		logging.Debug().Int("vehicles", len(vins)).Msg("Assigned vehicles after load complete, ignoring")
		return res
	}

	a.membershipSeen = true
	for _, id := range vins {
		if a.isExcluded(id) {
			continue
		}
		if _, ok := a.vehicles[id]; ok {
			continue
		}
		a.vehicles[id] = newVehicle(id)
		logging.Info().Str("vin", logging.MaskVIN(id)).Msg("Vehicle assigned")
	}

	if a.allSetupLocked() {
		res.LoadCompleted = a.completeLoadLocked(a.now())
	}
	a.updateGaugesLocked()
	return res
}

func handleVEPUpdates(a *Aggregator, msg *protocol.PushMessage) Result {
	if msg.VEPUpdates == nil {
		return Result{}
	}
	res := Result{Ack: protocol.Ack(protocol.AckVEPUpdates, msg.VEPUpdates.SequenceNumber)}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if a.firstBatchAt.IsZero() {
		a.firstBatchAt = now
	}
	wasComplete := a.loadComplete

	ids := make([]string, 0, len(msg.VEPUpdates.Updates))
	for id := range msg.VEPUpdates.Updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if a.isExcluded(id) {
			continue
		}
		if a.mergeLocked(id, msg.VEPUpdates.Updates[id], now) && wasComplete {
			res.Changed = append(res.Changed, id)
		}
	}

	if !a.loadComplete && (a.allSetupLocked() || now.Sub(a.firstBatchAt) > a.loadTimeout) {
		res.LoadCompleted = a.completeLoadLocked(now)
	}
	a.updateGaugesLocked()
	return res
}

// mergeLocked applies one vehicle's update and reports whether it was applied.
func (a *Aggregator) mergeLocked(id string, u *protocol.VEPUpdate, now time.Time) bool {
	v, ok := a.vehicles[id]
	if !ok {
		logging.Info().Str("vin", logging.MaskVIN(id)).Msg("Attribute update for unknown vehicle, skipping")
		return false
	}

	full := u.FullUpdate
	if !full && !v.SetupComplete {
		logging.Debug().Str("vin", logging.MaskVIN(id)).Msg("Partial update before first full update, dropping")
		return false
	}

	v.LastMessageAt = now
	if full {
		v.Messages.Full++
		v.LastFullMessageAt = now
		metrics.RecordAttributeUpdate("full")
	} else {
		v.Messages.Partial++
		metrics.RecordAttributeUpdate("partial")
	}

	precond, hasPrecond := derivePrecondStatus(u.Attributes)

	for _, g := range groupOrder {
		grp := v.Groups[g]
		for _, key := range groupKeys[g] {
			var next AttributeValue
			var present bool
			if key == KeyPrecondStatus {
				next, present = precond, hasPrecond
			} else if raw, ok := u.Attributes[key]; ok && raw != nil {
				next, present = attributeFromWire(raw), true
			}

			if !present {
				if full {
					grp[key] = notReceived()
				}
				continue
			}

			if cur, ok := grp[key]; ok && next.ts() < cur.ts() {
				logging.Warn().
					Str("vin", logging.MaskVIN(id)).
					Str("key", key).
					Msg("Received older attribute data, ignoring value")
				continue
			}
			grp[key] = next
		}
	}

	if full && !v.SetupComplete {
		v.SetupComplete = true
		logging.Debug().Str("vin", logging.MaskVIN(id)).Msg("Vehicle setup complete")
	}
	return true
}

func handleCommandStatus(a *Aggregator, msg *protocol.PushMessage) Result {
	if msg.CommandStatus == nil {
		return Result{}
	}
	res := Result{Ack: protocol.Ack(protocol.AckCommandStatusUpdates, msg.CommandStatus.SequenceNumber)}

	a.mu.Lock()
	defer a.mu.Unlock()

	for key, byPID := range msg.CommandStatus.UpdatesByVIN {
		id := byPID.VIN
		if id == "" {
			id = key
		}
		v, ok := a.vehicles[id]
		if !ok || a.isExcluded(id) {
			continue
		}

		st := latestCommand(byPID.UpdatesByPID)
		if st == nil {
			continue
		}

		lc := &LastCommand{
			Type:  st.Type.String(),
			State: st.State.String(),
			At:    st.TimestampMs,
		}
		for _, e := range st.Errors {
			lc.ErrorCode = e.Code
			lc.ErrorMessage = e.Message
			logging.Warn().
				Str("vin", logging.MaskVIN(id)).
				Str("command", lc.Type).
				Str("error_code", e.Code).
				Str("error_message", e.Message).
				Msg("Vehicle command failed")
		}
		v.LastCommand = lc

		if a.loadComplete {
			res.Changed = append(res.Changed, id)
		}
	}
	sort.Strings(res.Changed)
	return res
}

// latestCommand picks the status with the newest timestamp.
func latestCommand(byPID map[int64]*protocol.CommandStatus) *protocol.CommandStatus {
	var latest *protocol.CommandStatus
	for _, st := range byPID {
		if st == nil {
			continue
		}
		if latest == nil || st.TimestampMs > latest.TimestampMs ||
			(st.TimestampMs == latest.TimestampMs && st.ProcessID > latest.ProcessID) {
			latest = st
		}
	}
	return latest
}

// CheckLoadTimeout completes the initial load when the load timeout elapsed
// since the first attribute batch. It returns true when this call completed it.
func (a *Aggregator) CheckLoadTimeout() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loadComplete || a.firstBatchAt.IsZero() {
		return false
	}
	now := a.now()
	if now.Sub(a.firstBatchAt) <= a.loadTimeout {
		return false
	}
	logging.Info().Msg("Not all vehicle data received, load timeout reached")
	return a.completeLoadLocked(now)
}

func (a *Aggregator) completeLoadLocked(now time.Time) bool {
	if a.loadComplete {
		return false
	}
	a.loadComplete = true
	a.loadedAt = now
	metrics.RecordLoadComplete(now)
	logging.Info().Int("vehicles", len(a.vehicles)).Msg("Initial vehicle data load complete")
	return true
}

// allSetupLocked reports whether every member vehicle received a full update.
// An empty fleet is complete once a membership message was received.
func (a *Aggregator) allSetupLocked() bool {
	if len(a.vehicles) == 0 {
		return a.membershipSeen
	}
	for _, v := range a.vehicles {
		if !v.SetupComplete {
			return false
		}
	}
	return true
}

func (a *Aggregator) updateGaugesLocked() {
	setup := 0
	for _, v := range a.vehicles {
		if v.SetupComplete {
			setup++
		}
	}
	metrics.UpdateFleetGauges(len(a.vehicles), setup)
}

func (a *Aggregator) isExcluded(id string) bool {
	_, ok := a.excluded[id]
	return ok
}

// LoadComplete reports whether the initial load completed.
func (a *Aggregator) LoadComplete() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadComplete
}

// LoadedAt returns when the initial load completed, zero before.
func (a *Aggregator) LoadedAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadedAt
}

// Snapshot returns deep copies of all vehicles keyed by id.
func (a *Aggregator) Snapshot() map[string]*Vehicle {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]*Vehicle, len(a.vehicles))
	for id, v := range a.vehicles {
		out[id] = v.Clone()
	}
	return out
}

// Vehicle returns a deep copy of one vehicle.
func (a *Aggregator) Vehicle(id string) (*Vehicle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.vehicles[id]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

// VehicleIDs returns the member vehicle ids in sorted order.
func (a *Aggregator) VehicleIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.vehicles))
	for id := range a.vehicles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
