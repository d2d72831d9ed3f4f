// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/logging"
)

// SessionRunner is satisfied by *session.Session.
type SessionRunner interface {
	Run(ctx context.Context) error
}

// SessionService runs the fleet session receive loop.
type SessionService struct {
	session        SessionRunner
	reauthRequired atomic.Bool
}

// NewSessionService wraps sess.
func NewSessionService(sess SessionRunner) *SessionService {
	return &SessionService{session: sess}
}

// Serve runs the session until ctx is canceled or the session stops for good.
func (s *SessionService) Serve(ctx context.Context) error {
	err := s.session.Run(ctx)
	switch {
	case errors.Is(err, auth.ErrReauthRequired):
		s.reauthRequired.Store(true)
		logging.Error().Msg("Stored credentials are no longer valid, run with --login")
		return suture.ErrDoNotRestart
	case ctx.Err() != nil:
		return ctx.Err()
	case err == nil, errors.Is(err, connection.ErrStopped):
		return suture.ErrDoNotRestart
	default:
		return fmt.Errorf("fleet session: %w", err)
	}
}

// ReauthRequired reports whether the session ended because a new login is needed.
func (s *SessionService) ReauthRequired() bool {
	return s.reauthRequired.Load()
}

// String names the service in supervisor events.
func (s *SessionService) String() string {
	return "fleet-session"
}
