// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/region"
)

// Config configures a Session.
type Config struct {
	// Region selects the backend endpoints and identification headers.
	Region region.Region
	// Locale is sent as X-Locale; defaults to region.DefaultLocale.
	Locale string
	// StoreKey names the persisted token.
	StoreKey string
	// SessionID is sent as X-Sessionid; generated when empty.
	SessionID string
	// RESTURL and LoginURL override the region endpoints.
	RESTURL  string
	LoginURL string
	// ClientID overrides the region login client id.
	ClientID string
	// HTTPTimeout bounds every login and refresh request. Default 30s.
	HTTPTimeout time.Duration
}

// Session owns the account's OAuth2 token: interactive login, persistence,
// cached retrieval and refresh. It is safe for concurrent use.
type Session struct {
	region    region.Region
	locale    string
	key       string
	sessionID string
	restURL   string
	loginURL  string
	clientID  string

	client *http.Client
	store  TokenStore
	audit  *logging.SecurityLogger
	now    func() time.Time

	// refreshMu serializes token acquisition so concurrent callers share one refresh.
	refreshMu sync.Mutex

	tokenMu sync.RWMutex
	token   *Token
}

// NewSession creates a Session backed by store.
func NewSession(cfg Config, store TokenStore) *Session {
	e := cfg.Region.Endpoints()

	s := &Session{
		region:    cfg.Region,
		locale:    cfg.Locale,
		key:       cfg.StoreKey,
		sessionID: cfg.SessionID,
		restURL:   strings.TrimRight(e.REST, "/"),
		loginURL:  strings.TrimRight(e.Login, "/"),
		clientID:  e.LoginClientID,
		store:     store,
		audit:     logging.NewSecurityLogger(),
		now:       time.Now,
	}
	if s.locale == "" {
		s.locale = region.DefaultLocale
	}
	if s.key == "" {
		s.key = "default"
	}
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	if cfg.RESTURL != "" {
		s.restURL = strings.TrimRight(cfg.RESTURL, "/")
	}
	if cfg.LoginURL != "" {
		s.loginURL = strings.TrimRight(cfg.LoginURL, "/")
	}
	if cfg.ClientID != "" {
		s.clientID = cfg.ClientID
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.client = &http.Client{
		Timeout:       timeout,
		CheckRedirect: noCustomSchemeRedirect,
	}

	return s
}

// noCustomSchemeRedirect follows http(s) redirects and hands any other scheme
// (the app callback) back to the caller as the response.
func noCustomSchemeRedirect(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return http.ErrUseLastResponse
	}
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	return nil
}

// SessionID returns the X-Sessionid value shared by all requests of this process.
func (s *Session) SessionID() string {
	return s.sessionID
}

// Region returns the account region.
func (s *Session) Region() region.Region {
	return s.region
}

// Headers returns a fresh identification header set for one request.
func (s *Session) Headers() http.Header {
	return s.region.Headers(s.sessionID, s.locale)
}

// current returns a copy of the in-memory token, or nil.
func (s *Session) current() *Token {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token.Clone()
}

func (s *Session) setCurrent(t *Token) {
	s.tokenMu.Lock()
	s.token = t.Clone()
	s.tokenMu.Unlock()
}

// GetCachedToken returns a valid token from memory or the store, refreshing it
// when it is about to expire. Concurrent callers wait for a single refresh.
// Returns an error matching ErrReauthRequired when only interactive login can help.
func (s *Session) GetCachedToken(ctx context.Context) (*Token, error) {
	if t := s.current(); t != nil && !t.Expired(s.now()) {
		return t, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	t := s.current()
	if t == nil {
		stored, err := s.store.Load(ctx, s.key)
		switch {
		case errors.Is(err, ErrTokenNotFound):
			logging.Warn().Msg("No token information - reauth required")
			return nil, ErrReauthRequired
		case err != nil:
			return nil, fmt.Errorf("load token: %w", err)
		}
		t = stored
		s.setCurrent(t)
	}

	if !t.Expired(s.now()) {
		return t, nil
	}

	if t.RefreshToken == "" {
		logging.Warn().Msg("Refresh token is missing - reauth required")
		return nil, ErrReauthRequired
	}

	logging.Debug().Msg("Token expired, refreshing")
	return s.refreshLocked(ctx, t.RefreshToken, false)
}

// Refresh exchanges refreshToken for a new token. On a rejected refresh with
// isRetry set, the stored token is purged so the next access requires login.
func (s *Session) Refresh(ctx context.Context, refreshToken string, isRetry bool) (*Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx, refreshToken, isRetry)
}

// ForceRefresh refreshes the current token regardless of its expiry, as a
// retry after the server rejected it.
func (s *Session) ForceRefresh(ctx context.Context) (*Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	t := s.current()
	if t == nil {
		stored, err := s.store.Load(ctx, s.key)
		if err != nil {
			return nil, ErrReauthRequired
		}
		t = stored
	}
	if t.RefreshToken == "" {
		return nil, ErrReauthRequired
	}
	return s.refreshLocked(ctx, t.RefreshToken, true)
}

// refreshLocked must be called with refreshMu held.
func (s *Session) refreshLocked(ctx context.Context, refreshToken string, isRetry bool) (*Token, error) {
	start := time.Now()

	// Preflight warms up the server-side session.
	if _, err := s.do(ctx, http.MethodGet, s.restURL+"/v1/config", s.Headers(), nil); err != nil {
		logging.Warn().Err(err).Msg("Token refresh preflight failed")
	}

	form := url.Values{}
	form.Set("grant_type", string(oidc.GrantTypeRefreshToken))
	form.Set("refresh_token", refreshToken)

	t, err := s.postToken(ctx, form)
	metrics.RecordTokenRefresh(resultLabel(err), time.Since(start))
	if err != nil {
		s.audit.LogTokenRefresh(s.subject(), isRetry, false, err.Error())

		var authErr *AuthError
		if !errors.As(err, &authErr) || !authErr.Rejected() {
			return nil, err
		}
		if isRetry {
			s.purge(ctx, "refresh rejected on retry")
		}
		return nil, fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}

	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	if err := s.persist(ctx, t); err != nil {
		return nil, err
	}

	s.audit.LogTokenRefresh(t.Subject, isRetry, true, "")
	return t.Clone(), nil
}

// Login runs the interactive PKCE flow for username and password and
// persists the resulting token.
func (s *Session) Login(ctx context.Context, username, password string) (*Token, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	t, err := newLoginFlow(s).run(ctx, username, password)
	metrics.RecordLogin(resultLabel(err))
	if err != nil {
		s.audit.LogLogin(username, string(s.region), false, err.Error())
		return nil, err
	}

	if err := s.persist(ctx, t); err != nil {
		return nil, err
	}

	s.audit.LogLogin(username, string(s.region), true, "")
	return t.Clone(), nil
}

// Logout forgets the token in memory and in the store.
func (s *Session) Logout(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.setCurrent(nil)
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	s.audit.LogLogout(s.key)
	return nil
}

func (s *Session) persist(ctx context.Context, t *Token) error {
	if err := s.store.Save(ctx, s.key, t); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	s.setCurrent(t)
	return nil
}

func (s *Session) purge(ctx context.Context, reason string) {
	subject := s.subject()
	s.setCurrent(nil)
	if err := s.store.Delete(ctx, s.key); err != nil {
		logging.Error().Err(err).Msg("Failed to purge stored token")
		return
	}
	s.audit.LogTokenPurged(subject, reason)
}

func (s *Session) subject() string {
	if t := s.current(); t != nil {
		return t.Subject
	}
	return ""
}

// postToken posts a form to the token endpoint and decodes the token response.
func (s *Session) postToken(ctx context.Context, form url.Values) (*Token, error) {
	headers := s.Headers()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("X-Device-Id", uuid.NewString())
	headers.Set("X-Request-Id", uuid.NewString())

	tokenURL := s.loginURL + "/as/token.oauth2"
	resp, err := s.do(ctx, http.MethodPost, tokenURL, headers, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var t Token
	if err := json.Unmarshal(resp.body, &t); err != nil {
		return nil, &AuthError{URL: tokenURL, Status: resp.status, Code: "0", Detail: "invalid token response", Err: err}
	}
	if t.AccessToken == "" {
		return nil, &AuthError{URL: tokenURL, Status: resp.status, Code: "0", Detail: "token response without access_token"}
	}

	t.stamp(s.now())
	return &t, nil
}

type response struct {
	status int
	header http.Header
	body   []byte
	url    *url.URL
}

// do performs one request. Any status outside 2xx becomes *AuthError.
func (s *Session) do(ctx context.Context, method, rawURL string, headers http.Header, body io.Reader) (*response, error) {
	return s.send(ctx, method, rawURL, headers, body, false)
}

// doRedirect is do for the one step that answers with an unfollowed redirect.
// 3xx responses are returned to the caller.
func (s *Session) doRedirect(ctx context.Context, method, rawURL string, headers http.Header, body io.Reader) (*response, error) {
	return s.send(ctx, method, rawURL, headers, body, true)
}

func (s *Session) send(ctx context.Context, method, rawURL string, headers http.Header, body io.Reader, allowRedirect bool) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, newTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(rawURL, err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if allowRedirect && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		ok = true
	}
	if !ok {
		authErr := newStatusError(rawURL, resp.StatusCode, data)
		logging.Error().Str("url", rawURL).Int("status", resp.StatusCode).Str("code", authErr.Code).Msg("Auth request failed")
		return nil, authErr
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: data, url: resp.Request.URL}, nil
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
