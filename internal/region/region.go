// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package region holds the per-region backend endpoints and the client
// identification headers every REST, login and websocket request carries.
package region

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Region identifies one of the backend deployments an account belongs to.
type Region string

const (
	Europe       Region = "Europe"
	NorthAmerica Region = "North America"
	AsiaPacific  Region = "Asia-Pacific"
	China        Region = "China"
)

// Client identification constants sent with every request.
const (
	OSName        = "ios"
	OSVersion     = "17.4.1"
	SDKVersion    = "2.132.2"
	DefaultLocale = "en-GB"

	defaultUserAgent = "MyCar/2168 CFNetwork/1494.0.7 Darwin/23.4.0"
	chinaUserAgent   = "MyStarCN/1.47.0 (com.daimler.ris.mercedesme.cn.ios; build:1758; iOS 16.3.1) Alamofire/5.4.0"
)

// Endpoints describes one region's base URLs and application identity.
type Endpoints struct {
	REST               string
	WebSocket          string
	Login              string
	LoginClientID      string
	ApplicationName    string
	ApplicationVersion string
	UserAgent          string
}

var endpoints = map[Region]Endpoints{
	Europe: {
		REST:               "https://bff.emea-prod.mobilesdk.mercedes-benz.com",
		WebSocket:          "wss://websocket.emea-prod.mobilesdk.mercedes-benz.com/v2/ws",
		Login:              "https://id.mercedes-benz.com",
		LoginClientID:      "01398c1c-dc45-4b42-882b-9f5ba9f175f1",
		ApplicationName:    "mycar-store-ece",
		ApplicationVersion: "1.51.0",
		UserAgent:          defaultUserAgent,
	},
	NorthAmerica: {
		REST:               "https://bff.amap-prod.mobilesdk.mercedes-benz.com",
		WebSocket:          "wss://websocket.amap-prod.mobilesdk.mercedes-benz.com/v2/ws",
		Login:              "https://id.mercedes-benz.com",
		LoginClientID:      "01398c1c-dc45-4b42-882b-9f5ba9f175f1",
		ApplicationName:    "mycar-store-us",
		ApplicationVersion: "3.51.0",
		UserAgent:          defaultUserAgent,
	},
	AsiaPacific: {
		REST:               "https://bff.amap-prod.mobilesdk.mercedes-benz.com",
		WebSocket:          "wss://websocket.amap-prod.mobilesdk.mercedes-benz.com/v2/ws",
		Login:              "https://id.mercedes-benz.com",
		LoginClientID:      "01398c1c-dc45-4b42-882b-9f5ba9f175f1",
		ApplicationName:    "mycar-store-ap",
		ApplicationVersion: "1.51.0",
		UserAgent:          "mycar-store-ap v1.51.0, " + OSName + " " + OSVersion + ", SDK " + SDKVersion,
	},
	China: {
		REST:               "https://bff.cn-prod.mobilesdk.mercedes-benz.com",
		WebSocket:          "wss://websocket.cn-prod.mobilesdk.mercedes-benz.com/v2/ws",
		Login:              "https://ciam-1.mercedes-benz.com.cn",
		LoginClientID:      "3f36efb1-f84b-4402-b5a2-68a118fec33e",
		ApplicationName:    "mycar-store-cn",
		ApplicationVersion: "1.51.0",
		UserAgent:          chinaUserAgent,
	},
}

// All returns every supported region.
func All() []Region {
	return []Region{Europe, NorthAmerica, AsiaPacific, China}
}

// Parse resolves a region from its display name or short code (eu, na, ap, cn).
func Parse(s string) (Region, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "europe", "eu", "emea":
		return Europe, nil
	case "north america", "na", "noram", "us":
		return NorthAmerica, nil
	case "asia-pacific", "ap", "apac", "pa":
		return AsiaPacific, nil
	case "china", "cn":
		return China, nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

// Endpoints returns the region's endpoint set. Unknown regions fall back to Europe.
func (r Region) Endpoints() Endpoints {
	if e, ok := endpoints[r]; ok {
		return e
	}
	return endpoints[Europe]
}

// Code returns the short code used in metric labels and log fields.
func (r Region) Code() string {
	switch r {
	case NorthAmerica:
		return "na"
	case AsiaPacific:
		return "ap"
	case China:
		return "cn"
	default:
		return "eu"
	}
}

// Headers builds the identification header set for one request. Each call
// carries a new tracking id; the session id stays stable for the process.
func (r Region) Headers(sessionID, locale string) http.Header {
	if locale == "" {
		locale = DefaultLocale
	}
	e := r.Endpoints()

	h := http.Header{}
	h.Set("Ris-Os-Name", OSName)
	h.Set("Ris-Os-Version", OSVersion)
	h.Set("Ris-Sdk-Version", SDKVersion)
	h.Set("X-Locale", locale)
	h.Set("X-Trackingid", uuid.NewString())
	h.Set("X-Sessionid", sessionID)
	h.Set("User-Agent", e.UserAgent)
	h.Set("Accept-Language", locale)
	h.Set("X-Applicationname", e.ApplicationName)
	h.Set("Ris-Application-Version", e.ApplicationVersion)
	return h
}
