// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

// Package session composes the connection, codec, aggregator and command
// client into one fleet session for one account.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/fleetlink/internal/capture"
	"github.com/tomtom215/fleetlink/internal/command"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/connection"
	"github.com/tomtom215/fleetlink/internal/eventbus"
	"github.com/tomtom215/fleetlink/internal/fleet"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/protocol"
	"github.com/tomtom215/fleetlink/internal/region"
)

const (
	changeBuffer = 64
	eventBuffer  = 256
)

// Publisher exports session events. *eventbus.Publisher satisfies it.
type Publisher interface {
	PublishLoadComplete(ctx context.Context, ev eventbus.LoadComplete) error
	PublishVehicleChanged(ctx context.Context, ev eventbus.VehicleChanged) error
}

// Deps are the collaborators of a Session. Tokens and Config are required.
type Deps struct {
	// Tokens supplies bearer tokens; *auth.Session satisfies it.
	Tokens connection.TokenSource
	Region region.Region
	Config *config.Config
	// Capture receives raw frames when non-nil.
	Capture *capture.Writer
	// Events receives exported events when non-nil.
	Events Publisher
	// Now is the aggregator clock; defaults to time.Now.
	Now func() time.Time
}

// Change reports that a vehicle's state changed after the initial load.
type Change struct {
	VehicleID string
	At        time.Time
}

// Session is a live fleet mirror for one account.
type Session struct {
	manager  *connection.Manager
	agg      *fleet.Aggregator
	commands *command.Client
	capture  *capture.Writer
	events   Publisher
	now      func() time.Time

	loadCh   chan struct{}
	loadOnce sync.Once

	subsMu sync.RWMutex
	subs   []chan Change

	// outbound events are published off the receive goroutine.
	outbound chan func(context.Context)
}

// New builds a session. It does not connect; call Run.
func New(deps Deps) (*Session, error) {
	if deps.Tokens == nil {
		return nil, errors.New("session: token source is required")
	}
	if deps.Config == nil {
		return nil, errors.New("session: config is required")
	}
	cfg := deps.Config

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Session{
		capture:  deps.Capture,
		events:   deps.Events,
		now:      now,
		loadCh:   make(chan struct{}),
		outbound: make(chan func(context.Context), eventBuffer),
	}
	s.agg = fleet.NewAggregator(fleet.Config{
		ExcludedVehicles: cfg.Fleet.ExcludedVehicles,
		LoadTimeout:      cfg.Fleet.LoadTimeout,
		Now:              now,
	})
	s.commands = command.NewClient(&cfg.Command, deps.Region, deps.Tokens)
	s.manager = connection.NewManager(&cfg.Connection, deps.Region, deps.Tokens, s.handleFrame)
	return s, nil
}

// Run connects and processes push messages until ctx is cancelled, Stop is
// called, or an interactive login is required.
func (s *Session) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.watchLoadTimeout(runCtx)
	}()
	go func() {
		defer wg.Done()
		s.drainEvents(runCtx)
	}()

	err := s.manager.Run(runCtx)
	cancel()
	wg.Wait()
	return err
}

// Stop closes the connection and ends Run.
func (s *Session) Stop() {
	s.manager.Stop()
}

// handleFrame decodes one frame, applies it and returns the encoded ack.
func (s *Session) handleFrame(ctx context.Context, frame []byte) []byte {
	msg, err := protocol.DecodePush(frame)
	if err != nil {
		metrics.RecordDecodeError()
		logging.Warn().Err(err).Int("bytes", len(frame)).Msg("Dropping undecodable frame")
		return nil
	}
	metrics.RecordFrameReceived(msg.Kind.String())
	s.capture.WriteFrame(msg.Kind, frame)

	res := s.agg.Handle(msg)
	if res.LoadCompleted {
		s.completeLoad()
	}
	for _, id := range res.Changed {
		s.notifyChange(Change{VehicleID: id, At: s.now()})
	}

	if res.Ack == nil {
		return nil
	}
	out, err := protocol.EncodeClient(res.Ack)
	if err != nil {
		logging.Error().Err(err).Str("ack", res.Ack.Kind.String()).Msg("Failed to encode acknowledgement")
		return nil
	}
	metrics.RecordFrameSent(res.Ack.Kind.String())
	return out
}

// watchLoadTimeout completes the load when vehicles never deliver a full update.
func (s *Session) watchLoadTimeout(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.loadCh:
			return
		case <-ticker.C:
			if s.agg.CheckLoadTimeout() {
				s.completeLoad()
				return
			}
		}
	}
}

func (s *Session) completeLoad() {
	s.loadOnce.Do(func() {
		close(s.loadCh)
		if s.events == nil {
			return
		}
		snap := s.agg.Snapshot()
		ev := eventbus.LoadComplete{Vehicles: len(snap), At: s.agg.LoadedAt()}
		for _, v := range snap {
			if v.SetupComplete {
				ev.SetupComplete++
			}
		}
		s.enqueue(func(ctx context.Context) {
			if err := s.events.PublishLoadComplete(ctx, ev); err != nil {
				logging.Warn().Err(err).Msg("Failed to publish load complete event")
			}
		})
	})
}

func (s *Session) notifyChange(c Change) {
	s.subsMu.RLock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			logging.Debug().Str("vin", logging.MaskVIN(c.VehicleID)).Msg("Change subscriber full, dropping notification")
		}
	}
	s.subsMu.RUnlock()

	if s.events == nil {
		return
	}
	s.enqueue(func(ctx context.Context) {
		if err := s.events.PublishVehicleChanged(ctx, eventbus.VehicleChanged{VehicleID: c.VehicleID, At: c.At}); err != nil {
			logging.Debug().Err(err).Msg("Failed to publish vehicle changed event")
		}
	})
}

func (s *Session) enqueue(fn func(context.Context)) {
	select {
	case s.outbound <- fn:
	default:
		logging.Warn().Msg("Event queue full, dropping event")
	}
}

func (s *Session) drainEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.outbound:
			fn(ctx)
		}
	}
}

// LoadComplete is closed once the initial fleet load finished.
func (s *Session) LoadComplete() <-chan struct{} {
	return s.loadCh
}

// IsLoaded reports whether the initial fleet load finished.
func (s *Session) IsLoaded() bool {
	select {
	case <-s.loadCh:
		return true
	default:
		return false
	}
}

// Changes returns a channel of change notifications. Notifications are
// dropped for a subscriber whose buffer is full.
func (s *Session) Changes() <-chan Change {
	ch := make(chan Change, changeBuffer)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()
	return ch
}

// States returns a channel of connection state changes, latest value wins.
func (s *Session) States() <-chan connection.State {
	return s.manager.Subscribe()
}

// State returns the current connection state.
func (s *Session) State() connection.State {
	return s.manager.State()
}

// Snapshot returns deep copies of all vehicles.
func (s *Session) Snapshot() map[string]*fleet.Vehicle {
	return s.agg.Snapshot()
}

// Vehicle returns a deep copy of one vehicle.
func (s *Session) Vehicle(id string) (*fleet.Vehicle, bool) {
	return s.agg.Vehicle(id)
}

// Commands returns the REST command client.
func (s *Session) Commands() *command.Client {
	return s.commands
}

// Send writes an outbound client message on the open socket.
func (s *Session) Send(ctx context.Context, msg *protocol.ClientMessage) error {
	out, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	if err := s.manager.Send(ctx, out); err != nil {
		return err
	}
	metrics.RecordFrameSent(msg.Kind.String())
	return nil
}
