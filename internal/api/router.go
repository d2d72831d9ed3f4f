// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fleetlink/internal/config"
)

// NewRouter wires the handlers for src behind the shared middleware stack.
// A non-nil stream handler is served at /api/v1/stream.
func NewRouter(src FleetSource, cfg MiddlewareConfig, stream http.Handler) http.Handler {
	h := NewHandler(src)
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg))
		r.Use(PrometheusMetrics)

		r.Get("/health/live", h.HealthLive)
		r.Get("/health/ready", h.HealthReady)
		r.Get("/vehicles", h.Vehicles)
		r.Get("/vehicles/{id}", h.Vehicle)
		if stream != nil {
			r.Get("/stream", stream.ServeHTTP)
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// MiddlewareConfigFrom maps the server section of the config file.
func MiddlewareConfigFrom(cfg *config.ServerConfig) MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: cfg.CORSOrigins,
		RateLimitRequests:  cfg.RateLimitReqs,
		RateLimitWindow:    cfg.RateLimitWindow,
	}
}
