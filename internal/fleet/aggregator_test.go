// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fleetlink/internal/protocol"
)

const (
	vin1 = "WDD2221231A000001"
	vin2 = "WDD2221231A000002"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func intAttr(ts, v int64) *protocol.AttributeStatus {
	return &protocol.AttributeStatus{TimestampMs: ts, IntValue: &v}
}

func boolAttr(ts int64, v bool) *protocol.AttributeStatus {
	return &protocol.AttributeStatus{TimestampMs: ts, BoolValue: &v}
}

func assigned(vins ...string) *protocol.PushMessage {
	return &protocol.PushMessage{
		Kind:             protocol.KindAssignedVehicles,
		AssignedVehicles: &protocol.AssignedVehicles{VINs: vins},
	}
}

func vep(seq int32, vin string, full bool, attrs map[string]*protocol.AttributeStatus) *protocol.PushMessage {
	return &protocol.PushMessage{
		Kind: protocol.KindVEPUpdates,
		VEPUpdates: &protocol.VEPUpdatesByVIN{
			SequenceNumber: seq,
			Updates: map[string]*protocol.VEPUpdate{
				vin: {VIN: vin, FullUpdate: full, Attributes: attrs},
			},
		},
	}
}

func newTestAggregator(t *testing.T, clock *fakeClock, excluded ...string) *Aggregator {
	t.Helper()
	return NewAggregator(Config{ExcludedVehicles: excluded, LoadTimeout: 30 * time.Second, Now: clock.Now})
}

func TestAggregator_TwoVehicleLoad(t *testing.T) {
	clock := newFakeClock()
	a := newTestAggregator(t, clock)

	res := a.Handle(assigned(vin1, vin2))
	if res.Ack == nil || res.Ack.Kind != protocol.AckAssignedVehicles {
		t.Fatalf("assigned vehicles ack = %v", res.Ack)
	}

	res = a.Handle(vep(1, vin1, true, map[string]*protocol.AttributeStatus{"odo": intAttr(100, 1000)}))
	if res.LoadCompleted {
		t.Fatal("load completed with vin2 still pending")
	}
	if res.Ack == nil || res.Ack.Kind != protocol.AckVEPUpdates || res.Ack.SequenceNumber != 1 {
		t.Errorf("vep ack = %v", res.Ack)
	}

	// Partial update before vin2's first full update is dropped.
	a.Handle(vep(2, vin2, false, map[string]*protocol.AttributeStatus{"odo": intAttr(100, 5)}))
	v2, _ := a.Vehicle(vin2)
	if _, ok := v2.Attribute(GroupOdometer, "odo"); ok {
		t.Error("partial update before full update was applied")
	}
	if v2.Messages.Partial != 0 {
		t.Errorf("partial counter = %d, want 0", v2.Messages.Partial)
	}

	res = a.Handle(vep(3, vin2, true, map[string]*protocol.AttributeStatus{"odo": intAttr(100, 2000)}))
	if !res.LoadCompleted {
		t.Fatal("load not completed after both vehicles sent full updates")
	}
	if len(res.Changed) != 0 {
		t.Errorf("Changed on completing batch = %v, want none", res.Changed)
	}
	if !a.LoadComplete() {
		t.Error("LoadComplete() = false")
	}

	res = a.Handle(vep(4, vin1, false, map[string]*protocol.AttributeStatus{"odo": intAttr(200, 1001)}))
	if res.LoadCompleted {
		t.Error("load completed a second time")
	}
	if !reflect.DeepEqual(res.Changed, []string{vin1}) {
		t.Errorf("Changed = %v, want [%s]", res.Changed, vin1)
	}

	v1, _ := a.Vehicle(vin1)
	if got, _ := v1.Attribute(GroupOdometer, "odo"); got.Value != int64(1001) {
		t.Errorf("odo = %v, want 1001", got.Value)
	}
	if v1.Messages.Full != 1 || v1.Messages.Partial != 1 {
		t.Errorf("counters = %+v", v1.Messages)
	}
	if !v1.LastMessageAt.Equal(clock.Now()) {
		t.Errorf("LastMessageAt = %v", v1.LastMessageAt)
	}
}

func TestAggregator_FullUpdateResetsEveryKey(t *testing.T) {
	clock := newFakeClock()
	a := newTestAggregator(t, clock)
	a.Handle(assigned(vin1))

	// Seed every key with a value, then send a full update carrying only one key.
	seed := make(map[string]*protocol.AttributeStatus)
	for _, g := range Groups() {
		for _, k := range Keys(g) {
			seed[k] = intAttr(10, 1)
		}
	}
	a.Handle(vep(1, vin1, true, seed))
	a.Handle(vep(2, vin1, true, map[string]*protocol.AttributeStatus{"soc": intAttr(20, 80)}))

	v, _ := a.Vehicle(vin1)
	for _, g := range Groups() {
		for _, k := range Keys(g) {
			got, ok := v.Attribute(g, k)
			if !ok {
				t.Errorf("%s.%s missing after full update", g, k)
				continue
			}
			if k == "soc" {
				if got.Status != StatusValid || got.Value != int64(80) {
					t.Errorf("soc = %+v", got)
				}
				continue
			}
			if got.Status != StatusNotReceived || got.Timestamp != nil {
				t.Errorf("%s.%s = %+v, want NOT_RECEIVED without timestamp", g, k, got)
			}
		}
	}
	if !v.SetupComplete {
		t.Error("SetupComplete = false after full update")
	}
}

func TestAggregator_PartialOmissionIdempotent(t *testing.T) {
	clock := newFakeClock()
	a := newTestAggregator(t, clock)
	a.Handle(assigned(vin1))
	a.Handle(vep(1, vin1, true, map[string]*protocol.AttributeStatus{
		"odo":                   intAttr(10, 500),
		"positionLat":           {TimestampMs: 10, DoubleValue: func() *float64 { f := 48.1; return &f }()},
		"doorlockstatusvehicle": intAttr(10, 2),
	}))
	before, _ := a.Vehicle(vin1)

	partial := vep(2, vin1, false, map[string]*protocol.AttributeStatus{"odo": intAttr(20, 510)})
	a.Handle(partial)
	once, _ := a.Vehicle(vin1)
	a.Handle(partial)
	twice, _ := a.Vehicle(vin1)

	for _, g := range Groups() {
		for _, k := range Keys(g) {
			if k == "odo" {
				continue
			}
			b, _ := before.Attribute(g, k)
			o, _ := once.Attribute(g, k)
			if !reflect.DeepEqual(b, o) {
				t.Errorf("%s.%s changed by a partial update that omitted it", g, k)
			}
		}
	}
	if !reflect.DeepEqual(once.Groups, twice.Groups) {
		t.Error("applying the same partial update twice changed state")
	}
	if got, _ := once.Attribute(GroupOdometer, "odo"); got.Value != int64(510) {
		t.Errorf("odo = %v, want 510", got.Value)
	}
}

func TestAggregator_TimestampOrdering(t *testing.T) {
	tests := []struct {
		name string
		full bool
		ts   int64
		want int64
	}{
		{"newer replaces", false, 200, 2},
		{"equal replaces", false, 100, 2},
		{"older ignored", false, 50, 1},
		{"newer full update replaces", true, 200, 2},
		{"older full update keeps newer value", true, 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(t, newFakeClock())
			a.Handle(assigned(vin1))
			a.Handle(vep(1, vin1, true, map[string]*protocol.AttributeStatus{"odo": intAttr(100, 1)}))
			a.Handle(vep(2, vin1, tt.full, map[string]*protocol.AttributeStatus{"odo": intAttr(tt.ts, 2)}))

			v, _ := a.Vehicle(vin1)
			got, _ := v.Attribute(GroupOdometer, "odo")
			if got.Value != tt.want {
				t.Errorf("odo = %v, want %d", got.Value, tt.want)
			}
			if got.Status != StatusValid {
				t.Errorf("odo status = %v, want valid", got.Status)
			}
		})
	}
}

func TestAggregator_ExcludedAndUnknownVehicles(t *testing.T) {
	a := newTestAggregator(t, newFakeClock(), vin2)
	a.Handle(assigned(vin1, vin2))

	if ids := a.VehicleIDs(); !reflect.DeepEqual(ids, []string{vin1}) {
		t.Fatalf("VehicleIDs() = %v, want only %s", ids, vin1)
	}

	res := a.Handle(vep(1, vin2, true, map[string]*protocol.AttributeStatus{"odo": intAttr(1, 1)}))
	if res.LoadCompleted {
		t.Error("excluded vehicle completed the load")
	}
	if res.Ack == nil {
		t.Error("excluded vehicle batch must still be acknowledged")
	}

	a.Handle(vep(2, "WDD0000000UNKNOWN", true, nil))
	if _, ok := a.Vehicle("WDD0000000UNKNOWN"); ok {
		t.Error("unknown vehicle was created from an attribute update")
	}
}

func TestAggregator_EmptyFleetCompletesOnMembership(t *testing.T) {
	tests := []struct {
		name     string
		excluded []string
		vins     []string
	}{
		{"no vehicles assigned", nil, nil},
		{"every vehicle excluded", []string{vin1, vin2}, []string{vin1, vin2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(t, newFakeClock(), tt.excluded...)

			res := a.Handle(assigned(tt.vins...))
			if !res.LoadCompleted {
				t.Fatal("membership message did not complete the load of an empty fleet")
			}
			if !a.LoadComplete() {
				t.Error("LoadComplete() = false")
			}
			if res.Ack == nil || res.Ack.Kind != protocol.AckAssignedVehicles {
				t.Errorf("ack = %v", res.Ack)
			}

			res = a.Handle(vep(1, vin1, true, map[string]*protocol.AttributeStatus{"odo": intAttr(1, 1)}))
			if res.LoadCompleted {
				t.Error("load completed a second time")
			}
		})
	}
}

func TestAggregator_BatchBeforeMembershipKeepsLoadOpen(t *testing.T) {
	a := newTestAggregator(t, newFakeClock())

	res := a.Handle(vep(1, vin1, true, nil))
	if res.LoadCompleted || a.LoadComplete() {
		t.Fatal("load completed before any membership message")
	}

	a.Handle(assigned(vin1))
	res = a.Handle(vep(2, vin1, true, nil))
	if !res.LoadCompleted {
		t.Error("full update for the only vehicle did not complete the load")
	}
}

func TestAggregator_LoadTimeout(t *testing.T) {
	clock := newFakeClock()
	a := newTestAggregator(t, clock)
	a.Handle(assigned(vin1, vin2))

	if a.CheckLoadTimeout() {
		t.Fatal("timeout fired before the first attribute batch")
	}

	a.Handle(vep(1, vin1, true, nil))
	clock.Advance(29 * time.Second)
	if a.CheckLoadTimeout() {
		t.Fatal("timeout fired early")
	}

	clock.Advance(2 * time.Second)
	if !a.CheckLoadTimeout() {
		t.Fatal("timeout did not fire")
	}
	if a.CheckLoadTimeout() {
		t.Error("timeout fired twice")
	}

	res := a.Handle(vep(2, vin2, true, nil))
	if res.LoadCompleted {
		t.Error("load completed again after timeout")
	}
}

func TestAggregator_LoadTimeoutOnBatch(t *testing.T) {
	clock := newFakeClock()
	a := newTestAggregator(t, clock)
	a.Handle(assigned(vin1, vin2))

	a.Handle(vep(1, vin1, true, nil))
	clock.Advance(31 * time.Second)
	res := a.Handle(vep(2, vin1, false, nil))
	if !res.LoadCompleted {
		t.Error("batch after the load timeout should complete the load")
	}
}

func TestAggregator_AssignedAfterLoadIgnored(t *testing.T) {
	a := newTestAggregator(t, newFakeClock())
	a.Handle(assigned(vin1))
	a.Handle(vep(1, vin1, true, nil))

	res := a.Handle(assigned(vin1, vin2))
	if res.Ack == nil {
		t.Error("assigned vehicles must be acknowledged")
	}
	if _, ok := a.Vehicle(vin2); ok {
		t.Error("vehicle added after load complete")
	}
}

func TestAggregator_Acks(t *testing.T) {
	tests := []struct {
		name    string
		msg     *protocol.PushMessage
		want    protocol.ClientKind
		wantSeq int32
		noAck   bool
	}{
		{name: "single vep update", msg: &protocol.PushMessage{Kind: protocol.KindVEPUpdate, VEPUpdate: &protocol.VEPUpdate{}}, noAck: true},
		{name: "debug", msg: &protocol.PushMessage{Kind: protocol.KindDebugMessage, Debug: &protocol.DebugMessage{Message: "x"}}, noAck: true},
		{name: "auth changed", msg: &protocol.PushMessage{Kind: protocol.KindUserVehicleAuthChanged}, noAck: true},
		{name: "unknown", msg: &protocol.PushMessage{Kind: protocol.KindUnknown}, noAck: true},
		{name: "service status", msg: seqMsg(protocol.KindServiceStatusUpdates, 3), want: protocol.AckServiceStatusUpdate, wantSeq: 3},
		{name: "user data", msg: seqMsg(protocol.KindUserDataUpdate, 4), want: protocol.AckUserDataUpdate, wantSeq: 4},
		{name: "user picture", msg: seqMsg(protocol.KindUserPictureUpdate, 5), want: protocol.AckUserPictureUpdate, wantSeq: 5},
		{name: "user pin", msg: seqMsg(protocol.KindUserPINUpdate, 6), want: protocol.AckUserPINUpdate, wantSeq: 6},
		{name: "vehicle updated", msg: seqMsg(protocol.KindVehicleUpdated, 7), want: protocol.AckVehicleUpdated, wantSeq: 7},
		{name: "dealer change", msg: seqMsg(protocol.KindPreferredDealerChange, 8), want: protocol.AckPreferredDealerChange, wantSeq: 8},
		{name: "data change", msg: seqMsg(protocol.KindDataChangeEvent, 9), want: protocol.AckDataChangeEvent, wantSeq: 9},
		{name: "pending commands", msg: &protocol.PushMessage{Kind: protocol.KindPendingCommandRequest}, want: protocol.PendingCommandsResponse},
		{
			name: "command status",
			msg: &protocol.PushMessage{Kind: protocol.KindCommandStatusUpdates, CommandStatus: &protocol.CommandStatusUpdates{
				SequenceNumber: 10,
			}},
			want:    protocol.AckCommandStatusUpdates,
			wantSeq: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(t, newFakeClock())
			res := a.Handle(tt.msg)
			if tt.noAck {
				if res.Ack != nil {
					t.Errorf("Ack = %v, want none", res.Ack)
				}
				return
			}
			if res.Ack == nil || res.Ack.Kind != tt.want || res.Ack.SequenceNumber != tt.wantSeq {
				t.Errorf("Ack = %v, want %v seq %d", res.Ack, tt.want, tt.wantSeq)
			}
		})
	}
}

func seqMsg(kind protocol.Kind, seq int32) *protocol.PushMessage {
	return &protocol.PushMessage{Kind: kind, Sequenced: &protocol.SequencedUpdate{SequenceNumber: seq}}
}

func TestAggregator_PrecondStatus(t *testing.T) {
	mode := int64(2)

	tests := []struct {
		name       string
		attrs      map[string]*protocol.AttributeStatus
		wantValue  interface{}
		wantStatus Status
		wantTS     int64
	}{
		{
			name:       "no source attributes",
			attrs:      map[string]*protocol.AttributeStatus{},
			wantValue:  int64(0),
			wantStatus: StatusNotReceived,
		},
		{
			name:       "all false",
			attrs:      map[string]*protocol.AttributeStatus{"precondNow": boolAttr(5, false), "precondActive": boolAttr(7, false)},
			wantValue:  false,
			wantStatus: StatusValid,
			wantTS:     7,
		},
		{
			name:       "active",
			attrs:      map[string]*protocol.AttributeStatus{"precondActive": boolAttr(3, true)},
			wantValue:  true,
			wantStatus: StatusValid,
			wantTS:     3,
		},
		{
			name:       "operating mode",
			attrs:      map[string]*protocol.AttributeStatus{"precondOperatingMode": {TimestampMs: 9, IntValue: &mode}},
			wantValue:  true,
			wantStatus: StatusValid,
			wantTS:     9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(t, newFakeClock())
			a.Handle(assigned(vin1))
			a.Handle(vep(1, vin1, true, tt.attrs))

			v, _ := a.Vehicle(vin1)
			got, ok := v.Attribute(GroupElectric, KeyPrecondStatus)
			if !ok {
				t.Fatal("precondStatus missing")
			}
			if got.Value != tt.wantValue || got.Status != tt.wantStatus || got.ts() != tt.wantTS {
				t.Errorf("precondStatus = %+v (ts %d), want value=%v status=%v ts=%d", got, got.ts(), tt.wantValue, tt.wantStatus, tt.wantTS)
			}
		})
	}
}

func TestAggregator_CommandStatus(t *testing.T) {
	a := newTestAggregator(t, newFakeClock())
	a.Handle(assigned(vin1))
	a.Handle(vep(1, vin1, true, nil))

	res := a.Handle(&protocol.PushMessage{
		Kind: protocol.KindCommandStatusUpdates,
		CommandStatus: &protocol.CommandStatusUpdates{
			SequenceNumber: 2,
			UpdatesByVIN: map[string]*protocol.CommandStatusByPID{
				vin1: {VIN: vin1, UpdatesByPID: map[int64]*protocol.CommandStatus{
					1: {ProcessID: 1, TimestampMs: 100, Type: protocol.CommandTypeDoorsLock, State: protocol.CommandStateEnqueued},
					2: {
						ProcessID:   2,
						TimestampMs: 200,
						Type:        protocol.CommandTypeDoorsUnlock,
						State:       protocol.CommandStateFailed,
						Errors:      []protocol.CommandError{{Code: "4061", Message: "PIN invalid"}},
					},
				}},
			},
		},
	})

	if !reflect.DeepEqual(res.Changed, []string{vin1}) {
		t.Errorf("Changed = %v", res.Changed)
	}

	v, _ := a.Vehicle(vin1)
	want := &LastCommand{Type: "DOORSUNLOCK", State: "FAILED", ErrorCode: "4061", ErrorMessage: "PIN invalid", At: 200}
	if !reflect.DeepEqual(v.LastCommand, want) {
		t.Errorf("LastCommand = %+v, want %+v", v.LastCommand, want)
	}
}

func TestAggregator_SnapshotIsDeepCopy(t *testing.T) {
	a := newTestAggregator(t, newFakeClock())
	a.Handle(assigned(vin1))
	a.Handle(vep(1, vin1, true, map[string]*protocol.AttributeStatus{"odo": intAttr(1, 1)}))

	snap := a.Snapshot()
	snap[vin1].Groups[GroupOdometer]["odo"] = AttributeValue{Value: int64(999)}
	snap[vin1].SetupComplete = false

	v, _ := a.Vehicle(vin1)
	if got, _ := v.Attribute(GroupOdometer, "odo"); got.Value != int64(1) {
		t.Errorf("snapshot mutation leaked into state: odo = %v", got.Value)
	}
	if !v.SetupComplete {
		t.Error("snapshot mutation leaked SetupComplete")
	}
}

func TestAggregator_ConcurrentReaders(t *testing.T) {
	a := newTestAggregator(t, newFakeClock())
	a.Handle(assigned(vin1))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					for _, v := range a.Snapshot() {
						// A reader sees either no merge or a whole one.
						odo, _ := v.Attribute(GroupOdometer, "odo")
						soc, _ := v.Attribute(GroupElectric, "soc")
						if odo.ts() != soc.ts() {
							t.Errorf("partial merge observed: odo ts %d soc ts %d", odo.ts(), soc.ts())
						}
					}
				}
			}
		}()
	}

	for i := int64(1); i <= 200; i++ {
		a.Handle(vep(int32(i), vin1, true, map[string]*protocol.AttributeStatus{
			"odo": intAttr(i, i),
			"soc": intAttr(i, i),
		}))
	}
	close(stop)
	wg.Wait()
}
