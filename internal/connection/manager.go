// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package connection

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/region"
)

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 16 << 20

// TokenSource supplies handshake tokens and identification headers.
// *auth.Session satisfies it.
type TokenSource interface {
	GetCachedToken(ctx context.Context) (*auth.Token, error)
	ForceRefresh(ctx context.Context) (*auth.Token, error)
	Headers() http.Header
}

// Handler processes one binary frame and returns the bytes to send back, or nil.
// It runs on the receive goroutine; the next frame is read after it returns.
type Handler func(ctx context.Context, frame []byte) []byte

// Manager owns the websocket. Run it on exactly one goroutine.
type Manager struct {
	url     string
	cfg     config.ConnectionConfig
	tokens  TokenSource
	handler Handler
	dialer  *websocket.Dialer
	backoff *Backoff

	stateMu sync.RWMutex
	state   State
	subs    []chan State

	connMu sync.Mutex
	conn   *websocket.Conn
	// writeMu serializes data frames; control frames are safe concurrently.
	writeMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	running  atomic.Bool
}

// NewManager creates a Manager for the region websocket, or cfg.URL when set.
func NewManager(cfg *config.ConnectionConfig, rg region.Region, tokens TokenSource, handler Handler) *Manager {
	c := *cfg
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 120 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}

	url := rg.Endpoints().WebSocket
	if c.URL != "" {
		url = c.URL
	}

	m := &Manager{
		url:     url,
		cfg:     c,
		tokens:  tokens,
		handler: handler,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: c.HandshakeTimeout,
		},
		backoff: NewBackoff(c.InitialBackoff, c.MaxBackoff),
		state:   StateInit,
		stopCh:  make(chan struct{}),
	}
	metrics.SetConnectionState(StateInit.String())
	return m
}

// State returns the current state.
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

// IsConnected reports whether a socket is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Subscribe returns a channel receiving state changes. Slow readers only
// see the latest state; the channel is never closed.
func (m *Manager) Subscribe() <-chan State {
	ch := make(chan State, 1)
	m.stateMu.Lock()
	ch <- m.state
	m.subs = append(m.subs, ch)
	m.stateMu.Unlock()
	return ch
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.state == s {
		return
	}
	logging.Debug().Str("from", m.state.String()).Str("to", s.String()).Msg("Connection state changed")
	m.state = s
	metrics.SetConnectionState(s.String())

	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

// Run connects and serves the socket until ctx is cancelled, Stop is called,
// or only an interactive login can restore access. Failed or dropped
// connections are retried with backoff.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("connection manager already running")
	}
	defer m.running.Store(false)

	for {
		if m.stopped() {
			m.setState(StateDisconnected)
			return ErrStopped
		}

		err := m.connectAndServe(ctx)

		switch {
		case ctx.Err() != nil:
			m.setState(StateDisconnected)
			return ctx.Err()
		case m.stopped():
			m.setState(StateDisconnected)
			return ErrStopped
		case errors.Is(err, auth.ErrReauthRequired):
			m.setState(StateAuthRequired)
			logging.Error().Err(err).Msg("Websocket needs an interactive login")
			return err
		}

		var connErr *ConnectionError
		if errors.As(err, &connErr) && connErr.Unauthorized() {
			m.setState(StateAuthInvalid)
			logging.Warn().Int("status", connErr.Status).Msg("Websocket handshake rejected, refreshing token")
			if _, rerr := m.tokens.ForceRefresh(ctx); errors.Is(rerr, auth.ErrReauthRequired) {
				m.setState(StateAuthRequired)
				return rerr
			}
		}

		delay := m.delayFor(err)
		m.setState(StateReconnecting)
		metrics.RecordReconnect(delay)
		logging.Info().Err(err).Dur("retry_in", delay).Msg("Websocket disconnected, reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			m.setState(StateDisconnected)
			return ctx.Err()
		case <-m.stopCh:
			timer.Stop()
			m.setState(StateDisconnected)
			return ErrStopped
		}
	}
}

// delayFor returns the wait before the next attempt after err.
func (m *Manager) delayFor(err error) time.Duration {
	var connErr *ConnectionError
	if errors.As(err, &connErr) && connErr.Throttled() {
		logging.Warn().Msg("Websocket access throttled for this account")
		m.backoff.Throttle()
	}
	return m.backoff.Next()
}

func (m *Manager) connectAndServe(ctx context.Context) error {
	m.setState(StateConnecting)

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}

	m.connMu.Lock()
	m.conn = conn
	m.connMu.Unlock()

	m.backoff.Reset()
	m.setState(StateConnected)
	logging.Info().Str("url", m.url).Msg("Websocket connected")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.pingLoop(conn, done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-m.stopCh:
		case <-done:
			return
		}
		closeConn(conn)
	}()

	err = m.readLoop(ctx, conn)

	close(done)
	m.connMu.Lock()
	m.conn = nil
	m.connMu.Unlock()
	_ = conn.Close()
	wg.Wait()

	m.setState(StateDisconnected)
	return err
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	tok, err := m.tokens.GetCachedToken(ctx)
	if err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := m.dialer.DialContext(dctx, m.url, m.handshakeHeaders(tok))
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		metrics.RecordHandshakeFailure(status)
		return nil, &ConnectionError{Op: "dial", URL: m.url, Status: status, Err: err}
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// handshakeHeaders builds the upgrade request headers. The token is sent
// without a scheme prefix.
func (m *Manager) handshakeHeaders(tok *auth.Token) http.Header {
	h := m.tokens.Headers()
	sessionID := h.Get("X-Sessionid")
	h.Set("Authorization", tok.AccessToken)
	h.Set("App-Session-Id", sessionID)
	h.Set("Output-Format", "PROTO")
	h.Set("X-Trackingid", strings.ToUpper(uuid.NewString()))
	h.Set("Ris-Websocket-Type", "ios-native")
	return h
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		mt, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info().Msg("Websocket closed by peer")
			}
			return &ConnectionError{Op: "read", URL: m.url, Err: err}
		}
		extend()

		if mt != websocket.BinaryMessage {
			logging.Debug().Int("type", mt).Msg("Ignoring non-binary websocket frame")
			continue
		}

		resp := m.handler(ctx, frame)
		if len(resp) == 0 {
			continue
		}
		if err := m.write(conn, resp); err != nil {
			return err
		}
	}
}

func (m *Manager) write(conn *websocket.Conn, payload []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return &ConnectionError{Op: "write", URL: m.url, Err: err}
	}
	return nil
}

// Send writes an outbound client message on the open socket.
func (m *Manager) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.connMu.Lock()
	conn := m.conn
	m.connMu.Unlock()

	if conn == nil {
		return &ConnectionError{Op: "send", URL: m.url, Err: ErrNotConnected}
	}
	return m.write(conn, payload)
}

// pingLoop sends keepalive pings until done is closed. A failed ping closes
// the socket, which ends the read loop.
func (m *Manager) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				logging.Warn().Err(err).Msg("Websocket ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// Stop closes the socket and ends Run. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.connMu.Lock()
		conn := m.conn
		m.connMu.Unlock()
		if conn != nil {
			closeConn(conn)
		}
	})
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// closeConn sends a close frame and closes the socket.
func closeConn(conn *websocket.Conn) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = conn.Close()
}
