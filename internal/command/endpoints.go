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

	"github.com/tomtom215/fleetlink/internal/cache"
	"github.com/tomtom215/fleetlink/internal/validation"
)

// UserInfo is the account master data returned by /v1/user.
type UserInfo struct {
	AssignedVehicles []AssignedVehicle `json:"assignedVehicles"`
}

// AssignedVehicle is one vehicle of the account master data.
type AssignedVehicle struct {
	VIN          string `json:"vin"`
	FIN          string `json:"fin"`
	LicensePlate string `json:"licensePlate,omitempty"`
}

// ID returns the VIN, falling back to the FIN for vehicles that report none.
func (v AssignedVehicle) ID() string {
	if v.VIN != "" {
		return v.VIN
	}
	return v.FIN
}

// Capabilities is the vehicle feature table from /v1/vehicle/{vin}/capabilities.
type Capabilities struct {
	Features map[string]bool        `json:"features"`
	Vehicle  map[string]interface{} `json:"vehicle"`
}

// CommandCapabilities lists the commands a vehicle accepts.
type CommandCapabilities struct {
	Commands []CommandCapability `json:"commands"`
}

// CommandCapability is one entry of CommandCapabilities.
type CommandCapability struct {
	CommandName           string   `json:"commandName"`
	IsAvailable           bool     `json:"isAvailable"`
	CapabilityInformation []string `json:"capabilityInformation,omitempty"`
}

// seatConfigureCommand carries its seat capability as the first capability information entry.
const seatConfigureCommand = "ZEV_PRECONDITION_CONFIGURE_SEATS"

// Features flattens the command list into name → available.
func (cc *CommandCapabilities) Features() map[string]bool {
	out := make(map[string]bool, len(cc.Commands))
	for _, c := range cc.Commands {
		out[c.CommandName] = c.IsAvailable
		if c.CommandName == seatConfigureCommand && len(c.CapabilityInformation) > 0 {
			out[c.CapabilityInformation[0]] = c.IsAvailable
		}
	}
	return out
}

// Route is a navigation route pushed to the vehicle.
type Route struct {
	Title     string     `json:"routeTitle" validate:"required,max=100"`
	Type      string     `json:"routeType" validate:"required,oneof=singlePOI"`
	Waypoints []Waypoint `json:"waypoints" validate:"len=1,dive"`
}

// Waypoint is a point of interest.
type Waypoint struct {
	City       string  `json:"city"`
	Latitude   float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64 `json:"longitude" validate:"gte=-180,lte=180"`
	PostalCode string  `json:"postalCode"`
	Street     string  `json:"street"`
	Title      string  `json:"title" validate:"required,max=100"`
}

// SinglePOI builds a one-waypoint route titled after the point of interest.
func SinglePOI(title string, wp Waypoint) Route {
	if wp.Title == "" {
		wp.Title = title
	}
	return Route{Title: title, Type: "singlePOI", Waypoints: []Waypoint{wp}}
}

// GetConfig fetches the backend configuration document.
func (c *Client) GetConfig(ctx context.Context) (map[string]interface{}, error) {
	out, err := request[map[string]interface{}](ctx, c, requestConfig{
		method:   http.MethodGet,
		path:     "/v1/config",
		endpoint: "/v1/config",
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetUser fetches the account master data including the assigned vehicles.
func (c *Client) GetUser(ctx context.Context) (*UserInfo, error) {
	return request[UserInfo](ctx, c, requestConfig{
		method:   http.MethodGet,
		path:     "/v1/user",
		endpoint: "/v1/user",
	})
}

// GetVehicles fetches the vehicle list document.
func (c *Client) GetVehicles(ctx context.Context) (map[string]interface{}, error) {
	out, err := request[map[string]interface{}](ctx, c, requestConfig{
		method:   http.MethodGet,
		path:     "/v2/vehicles",
		endpoint: "/v2/vehicles",
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetCapabilities fetches the vehicle feature table. Results are cached per
// vehicle when the client has a capability TTL.
func (c *Client) GetCapabilities(ctx context.Context, vin string) (*Capabilities, error) {
	if err := checkVIN(vin); err != nil {
		return nil, err
	}
	return cached(c.caps, vin, func() (*Capabilities, error) {
		return request[Capabilities](ctx, c, requestConfig{
			method:   http.MethodGet,
			path:     "/v1/vehicle/" + url.PathEscape(vin) + "/capabilities",
			endpoint: "/v1/vehicle/{vin}/capabilities",
		})
	})
}

// GetCommandCapabilities fetches the commands the vehicle accepts.
func (c *Client) GetCommandCapabilities(ctx context.Context, vin string) (*CommandCapabilities, error) {
	if err := checkVIN(vin); err != nil {
		return nil, err
	}
	return cached(c.cmdCaps, vin, func() (*CommandCapabilities, error) {
		return request[CommandCapabilities](ctx, c, requestConfig{
			method:   http.MethodGet,
			path:     "/v1/vehicle/" + url.PathEscape(vin) + "/capabilities/commands",
			endpoint: "/v1/vehicle/{vin}/capabilities/commands",
		})
	})
}

// cached serves vin from store, filling it from fetch on a miss. Errors are
// not cached. A nil store always fetches.
func cached[T any](store *cache.Cache[string, *T], vin string, fetch func() (*T, error)) (*T, error) {
	if store == nil {
		return fetch()
	}
	if v, ok := store.Get(vin); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	store.Set(vin, v)
	return v, nil
}

// Features merges both capability tables. Either table may be unavailable for
// some vehicles; a failure of one is logged and the other is still used.
func (c *Client) Features(ctx context.Context, vin string) (map[string]bool, error) {
	features := map[string]bool{}

	caps, capsErr := c.GetCapabilities(ctx, vin)
	if capsErr == nil {
		for k, v := range caps.Features {
			features[k] = v
		}
	}
	cmds, cmdsErr := c.GetCommandCapabilities(ctx, vin)
	if cmdsErr == nil {
		for k, v := range cmds.Features() {
			features[k] = v
		}
	}

	if capsErr != nil && cmdsErr != nil {
		return nil, cmdsErr
	}
	return features, nil
}

// SendRoute pushes a route to the vehicle's navigation system.
func (c *Client) SendRoute(ctx context.Context, vin string, route Route) error {
	if err := checkVIN(vin); err != nil {
		return err
	}
	if err := validation.Validate(&route); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	_, err := c.do(ctx, requestConfig{
		method:   http.MethodPost,
		path:     "/v1/vehicle/" + url.PathEscape(vin) + "/route",
		body:     route,
		endpoint: "/v1/vehicle/{vin}/route",
	}, nil)
	return err
}

// GeofenceViolation is one geofence violation record.
type GeofenceViolation map[string]interface{}

// GetGeofencingViolations fetches the vehicle's geofence violations.
// Failures yield an empty list.
func (c *Client) GetGeofencingViolations(ctx context.Context, vin string) ([]GeofenceViolation, error) {
	if err := checkVIN(vin); err != nil {
		return nil, err
	}
	out, err := request[[]GeofenceViolation](ctx, c, requestConfig{
		method:       http.MethodGet,
		path:         "/v1/geofencing/vehicles/" + url.PathEscape(vin) + "/fences/violations",
		endpoint:     "/v1/geofencing/vehicles/{vin}/fences/violations",
		ignoreErrors: true,
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// GetFleet fetches the first page of a company fleet. Failures yield an empty document.
func (c *Client) GetFleet(ctx context.Context, companyID, fleetID string) (map[string]interface{}, error) {
	out, err := request[map[string]interface{}](ctx, c, requestConfig{
		method:       http.MethodGet,
		path:         "/v1/company/" + url.PathEscape(companyID) + "/fleet/" + url.PathEscape(fleetID),
		query:        url.Values{"size": {"100"}, "filter": {""}},
		endpoint:     "/v1/company/{company}/fleet/{fleet}",
		ignoreErrors: true,
	})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func checkVIN(vin string) error {
	if !validation.IsVIN(vin) {
		return fmt.Errorf("%w: malformed vehicle id", ErrInvalidCommand)
	}
	return nil
}
