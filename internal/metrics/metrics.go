// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package metrics defines Fleetlink's Prometheus metrics and the helpers that
// record them. Metrics are registered on the default registry via promauto and
// served by the HTTP surface at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// connectionStates lists every connection state label so that exactly one is set to 1.
var connectionStates = []string{
	"init", "connecting", "connected", "reconnecting", "disconnected", "auth_required", "auth_invalid",
}

var (
	// Authentication Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_token_refreshes_total",
			Help: "Total number of token refresh attempts",
		},
		[]string{"result"}, // success, failure
	)

	TokenRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetlink_token_refresh_duration_seconds",
			Help:    "Duration of token refreshes including the preflight request",
			Buckets: prometheus.DefBuckets,
		},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_logins_total",
			Help: "Total number of interactive login attempts",
		},
		[]string{"result"},
	)

	// Connection Metrics
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetlink_connection_state",
			Help: "Current websocket connection state (1 for the active state)",
		},
		[]string{"state"},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetlink_reconnects_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	ReconnectBackoff = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_reconnect_backoff_seconds",
			Help: "Delay before the next reconnect attempt",
		},
	)

	HandshakeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_handshake_failures_total",
			Help: "Total number of failed websocket handshakes",
		},
		[]string{"status"}, // HTTP status or "network"
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_frames_received_total",
			Help: "Total number of push messages received by kind",
		},
		[]string{"kind"},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_frames_sent_total",
			Help: "Total number of client messages sent by kind",
		},
		[]string{"kind"},
	)

	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetlink_decode_errors_total",
			Help: "Total number of undecodable frames dropped",
		},
	)

	// Fleet Metrics
	FleetVehicles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_fleet_vehicles",
			Help: "Number of vehicles assigned to the account",
		},
	)

	FleetSetupComplete = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_fleet_vehicles_setup_complete",
			Help: "Number of vehicles that received a full attribute update",
		},
	)

	FleetLoadCompleted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetlink_fleet_load_completed_timestamp_seconds",
			Help: "Unix time the initial fleet load completed, 0 until then",
		},
	)

	AttributeUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_attribute_updates_total",
			Help: "Total number of vehicle attribute updates merged",
		},
		[]string{"type"}, // full, partial, dropped, stale
	)

	// Command Client Metrics
	CommandRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_command_requests_total",
			Help: "Total number of REST command and query requests",
		},
		[]string{"endpoint", "status"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetlink_command_request_duration_seconds",
			Help:    "Duration of REST command and query requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Export Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetlink_events_published_total",
			Help: "Total number of events published to the export sink",
		},
		[]string{"topic", "result"},
	)

	// HTTP Surface Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordTokenRefresh records a token refresh attempt.
func RecordTokenRefresh(result string, duration time.Duration) {
	TokenRefreshes.WithLabelValues(result).Inc()
	TokenRefreshDuration.Observe(duration.Seconds())
}

// RecordLogin records an interactive login attempt.
func RecordLogin(result string) {
	Logins.WithLabelValues(result).Inc()
}

// SetConnectionState marks state as the active connection state.
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		if s == state {
			ConnectionState.WithLabelValues(s).Set(1)
		} else {
			ConnectionState.WithLabelValues(s).Set(0)
		}
	}
}

// RecordReconnect records a scheduled reconnect and its delay.
func RecordReconnect(delay time.Duration) {
	Reconnects.Inc()
	ReconnectBackoff.Set(delay.Seconds())
}

// RecordHandshakeFailure records a failed handshake; status 0 means no HTTP response.
func RecordHandshakeFailure(status int) {
	label := "network"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	HandshakeFailures.WithLabelValues(label).Inc()
}

// RecordFrameReceived records a decoded push message.
func RecordFrameReceived(kind string) {
	FramesReceived.WithLabelValues(kind).Inc()
}

// RecordFrameSent records an outbound client message.
func RecordFrameSent(kind string) {
	FramesSent.WithLabelValues(kind).Inc()
}

// RecordDecodeError records a dropped frame.
func RecordDecodeError() {
	DecodeErrors.Inc()
}

// UpdateFleetGauges sets the vehicle and setup-complete counts.
func UpdateFleetGauges(vehicles, setupComplete int) {
	FleetVehicles.Set(float64(vehicles))
	FleetSetupComplete.Set(float64(setupComplete))
}

// RecordLoadComplete records the time the initial fleet load completed.
func RecordLoadComplete(at time.Time) {
	FleetLoadCompleted.Set(float64(at.Unix()))
}

// RecordAttributeUpdate records a merged, dropped or stale attribute update.
func RecordAttributeUpdate(kind string) {
	AttributeUpdates.WithLabelValues(kind).Inc()
}

// RecordCommandRequest records a REST request outcome. status is the HTTP
// status code, or "error" when no response was received.
func RecordCommandRequest(endpoint, status string, duration time.Duration) {
	CommandRequests.WithLabelValues(endpoint, status).Inc()
	CommandDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordEventPublished records an export sink publish.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}

// RecordAPIRequest records an HTTP surface request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
