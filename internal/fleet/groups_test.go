// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

import "testing"

func TestGroupKeySets(t *testing.T) {
	seen := make(map[string]Group)
	for _, g := range Groups() {
		keys := Keys(g)
		if len(keys) == 0 {
			t.Errorf("group %s has no keys", g)
		}
		for _, k := range keys {
			if prev, dup := seen[k]; dup {
				t.Errorf("key %q in both %s and %s", k, prev, g)
			}
			seen[k] = g
		}
	}

	if _, ok := seen["gasTankLevelPercent"]; !ok {
		t.Error("gasTankLevelPercent missing")
	}
	if _, ok := seen["liquidconsumptionstart"]; !ok {
		t.Error("liquidconsumptionstart missing")
	}
	if seen[KeyPrecondStatus] != GroupElectric {
		t.Errorf("precondStatus group = %s, want electric", seen[KeyPrecondStatus])
	}
}

func TestParseGroup(t *testing.T) {
	if g, ok := ParseGroup("doors"); !ok || g != GroupDoors {
		t.Errorf("ParseGroup(doors) = %v, %v", g, ok)
	}
	if _, ok := ParseGroup("wipers"); ok {
		t.Error("ParseGroup(wipers) should fail")
	}
	if Keys("wipers") != nil {
		t.Error("Keys of unknown group should be nil")
	}
}

func TestStatusFromWire(t *testing.T) {
	tests := []struct {
		code int32
		want Status
	}{
		{0, StatusValid},
		{1, StatusNotReceived},
		{3, StatusError},
		{4, StatusNotReceived},
		{2, StatusUnknown},
	}
	for _, tt := range tests {
		if got := statusFromWire(tt.code); got != tt.want {
			t.Errorf("statusFromWire(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}

	b, _ := StatusNotReceived.MarshalText()
	if string(b) != "NOT_RECEIVED" {
		t.Errorf("MarshalText() = %s", b)
	}
}
