// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package fleet

// Group names an attribute group of a vehicle.
type Group string

// Attribute groups.
const (
	GroupOdometer      Group = "odometer"
	GroupLocation      Group = "location"
	GroupTires         Group = "tires"
	GroupWindows       Group = "windows"
	GroupDoors         Group = "doors"
	GroupElectric      Group = "electric"
	GroupBinarySensors Group = "binarysensors"
	GroupAuxHeat       Group = "auxheat"
	GroupPrecond       Group = "precond"
	GroupRemoteStart   Group = "remotestart"
	GroupCarAlarm      Group = "caralarm"
)

// KeyPrecondStatus is derived from precondNow, precondActive and
// precondOperatingMode rather than read from the payload.
const KeyPrecondStatus = "precondStatus"

// groupOrder fixes the iteration order of groups.
var groupOrder = []Group{
	GroupOdometer,
	GroupLocation,
	GroupTires,
	GroupWindows,
	GroupDoors,
	GroupElectric,
	GroupBinarySensors,
	GroupAuxHeat,
	GroupPrecond,
	GroupRemoteStart,
	GroupCarAlarm,
}

// groupKeys is the static key set of each group.
var groupKeys = map[Group][]string{
	GroupOdometer: {
		"odo",
		"distanceReset",
		"distanceStart",
		"averageSpeedReset",
		"averageSpeedStart",
		"distanceZEReset",
		"drivenTimeZEReset",
		"drivenTimeReset",
		"drivenTimeStart",
		"ecoscoretotal",
		"ecoscorefreewhl",
		"ecoscorebonusrange",
		"ecoscoreconst",
		"ecoscoreaccel",
		"gasconsumptionstart",
		"gasconsumptionreset",
		"gasTankRange",
		"gasTankLevel",
		"gasTankLevelPercent",
		"liquidconsumptionstart",
		"liquidconsumptionreset",
		"liquidRangeSkipIndication",
		"outsideTemperature",
		"rangeliquid",
		"serviceintervaldays",
		"tanklevelpercent",
		"tankReserveLamp",
		"batteryState",
		"tankLevelAdBlue",
		"vehicleDataConnectionState",
	},
	GroupLocation: {
		"positionLat",
		"positionLong",
		"positionHeading",
	},
	GroupTires: {
		"tirepressureRearLeft",
		"tirepressureRearRight",
		"tirepressureFrontRight",
		"tirepressureFrontLeft",
		"tirewarninglamp",
		"tirewarningsrdk",
		"tirewarningsprw",
		"tireMarkerFrontRight",
		"tireMarkerFrontLeft",
		"tireMarkerRearLeft",
		"tireMarkerRearRight",
		"tireWarningRollup",
		"lastTirepressureTimestamp",
	},
	GroupWindows: {
		"windowstatusrearleft",
		"windowstatusrearright",
		"windowstatusfrontright",
		"windowstatusfrontleft",
		"windowStatusOverall",
		"flipWindowStatus",
	},
	GroupDoors: {
		"decklidstatus",
		"doorStatusOverall",
		"doorLockStatusOverall",
		"doorlockstatusgas",
		"doorlockstatusvehicle",
		"doorlockstatusfrontleft",
		"doorlockstatusfrontright",
		"doorlockstatusrearright",
		"doorlockstatusrearleft",
		"doorlockstatusdecklid",
		"doorstatusrearleft",
		"doorstatusfrontright",
		"doorstatusrearright",
		"doorstatusfrontleft",
		"rooftopstatus",
		"sunroofstatus",
	},
	GroupElectric: {
		"rangeelectric",
		"chargingactive",
		"chargingstatus",
		"distanceElectricalReset",
		"distanceElectricalStart",
		"ecoElectricBatteryTemperature",
		"electricconsumptionstart",
		"electricconsumptionreset",
		"endofchargetime",
		"precondActive",
		"maxrange",
		"selectedChargeProgram",
		"soc",
		KeyPrecondStatus,
	},
	GroupBinarySensors: {
		"warningwashwater",
		"warningenginelight",
		"warningbrakefluid",
		"warningcoolantlevellow",
		"parkbrakestatus",
		"warningBrakeLiningWear",
		"warninglowbattery",
		"liquidRangeCritical",
		"tankCapOpenLamp",
	},
	GroupAuxHeat: {
		"auxheatActive",
		"auxheatwarnings",
		"auxheatruntime",
		"auxheatstatus",
		"auxheatwarningsPush",
		"auxheattimeselection",
		"auxheattime1",
		"auxheattime2",
		"auxheattime3",
	},
	GroupPrecond: {
		"preconditionState",
		"precondimmediate",
	},
	GroupRemoteStart: {
		"remoteEngine",
		"remoteStartEndtime",
		"remoteStartTemperature",
	},
	GroupCarAlarm: {
		"lastTheftWarning",
		"towSensor",
		"theftSystemArmed",
		"carAlarm",
		"parkEventType",
		"parkEventLevel",
		"carAlarmLastTime",
		"towProtectionSensorStatus",
		"theftAlarmActive",
		"lastTheftWarningReason",
		"lastParkEvent",
		"collisionAlarmTimestamp",
		"interiorSensor",
		"carAlarmReason",
	},
}

// Groups returns every attribute group in a stable order.
func Groups() []Group {
	out := make([]Group, len(groupOrder))
	copy(out, groupOrder)
	return out
}

// Keys returns the static key set of g, or nil for an unknown group.
func Keys(g Group) []string {
	keys, ok := groupKeys[g]
	if !ok {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ParseGroup returns the group named s.
func ParseGroup(s string) (Group, bool) {
	g := Group(s)
	_, ok := groupKeys[g]
	return g, ok
}
