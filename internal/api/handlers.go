// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/fleet"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// FleetSource is the read side of a fleet session.
type FleetSource interface {
	IsLoaded() bool
	State() connection.State
	Snapshot() map[string]*fleet.Vehicle
	Vehicle(id string) (*fleet.Vehicle, bool)
}

// Handler serves the fleet endpoints.
type Handler struct {
	src     FleetSource
	started time.Time
}

// NewHandler creates a Handler reading from src.
func NewHandler(src FleetSource) *Handler {
	return &Handler{src: src, started: time.Now()}
}

// HealthStatus is the body of the readiness probe.
type HealthStatus struct {
	Ready      bool   `json:"ready"`
	Loaded     bool   `json:"loaded"`
	Connection string `json:"connection"`
	Uptime     string `json:"uptime"`
}

// VehicleView is a vehicle with its identifier masked.
type VehicleView struct {
	ID                string                               `json:"id"`
	SetupComplete     bool                                 `json:"setup_complete"`
	LastMessageAt     time.Time                            `json:"last_message_at"`
	LastFullMessageAt time.Time                            `json:"last_full_message_at"`
	LastCommand       *fleet.LastCommand                   `json:"last_command,omitempty"`
	Messages          fleet.MessageCounters                `json:"messages"`
	Groups            map[fleet.Group]fleet.AttributeGroup `json:"groups"`
}

func newVehicleView(v *fleet.Vehicle) VehicleView {
	return VehicleView{
		ID:                logging.MaskVIN(v.ID),
		SetupComplete:     v.SetupComplete,
		LastMessageAt:     v.LastMessageAt,
		LastFullMessageAt: v.LastFullMessageAt,
		LastCommand:       v.LastCommand,
		Messages:          v.Messages,
		Groups:            v.Groups,
	}
}

// HealthLive always answers 200 while the process serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady answers 200 once the fleet is loaded and connected, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	state := h.src.State()
	status := HealthStatus{
		Loaded:     h.src.IsLoaded(),
		Connection: state.String(),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
	}
	status.Ready = status.Loaded && state == connection.StateConnected

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	respondData(w, r, code, status)
}

// Vehicles returns every member vehicle ordered by identifier.
func (h *Handler) Vehicles(w http.ResponseWriter, r *http.Request) {
	snapshot := h.src.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	views := make([]VehicleView, 0, len(ids))
	for _, id := range ids {
		views = append(views, newVehicleView(snapshot[id]))
	}
	respondData(w, r, http.StatusOK, views)
}

// Vehicle returns one vehicle or 404.
func (h *Handler) Vehicle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, ok := h.src.Vehicle(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "vehicle not found")
		return
	}
	respondData(w, r, http.StatusOK, newVehicleView(v))
}
