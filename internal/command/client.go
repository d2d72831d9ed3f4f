// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/cache"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
	"github.com/tomtom215/fleetlink/internal/region"
)

// maxBodySize bounds response bodies read into memory.
const maxBodySize = 4 << 20

// TokenSource supplies bearer tokens and identification headers.
// *auth.Session satisfies it.
type TokenSource interface {
	GetCachedToken(ctx context.Context) (*auth.Token, error)
	Headers() http.Header
}

// Client is the REST command and query client. It is safe for concurrent use.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[interface{}]

	// nil when capability caching is disabled.
	caps    *cache.Cache[string, *Capabilities]
	cmdCaps *cache.Cache[string, *CommandCapabilities]
}

// NewClient creates a client for the region's REST endpoint, or cfg.RESTURL when set.
func NewClient(cfg *config.CommandConfig, rg region.Region, tokens TokenSource) *Client {
	base := rg.Endpoints().REST
	if cfg.RESTURL != "" {
		base = cfg.RESTURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(base, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		cb:      newBreaker(cfg),
	}
	if cfg.CapabilityTTL > 0 {
		c.caps = cache.New[string, *Capabilities](cfg.CapabilityTTL)
		c.cmdCaps = cache.New[string, *CommandCapabilities](cfg.CapabilityTTL)
	}
	return c
}

// requestConfig describes one REST call.
type requestConfig struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	// endpoint is the metric label; path templates, never raw VINs.
	endpoint string
	// ignoreErrors turns any failure into an empty result.
	ignoreErrors bool
}

// request executes rc and decodes a 2xx body into a new T.
func request[T any](ctx context.Context, c *Client, rc requestConfig) (*T, error) {
	result, err := castResult[T](c.do(ctx, rc, new(T)))
	if err != nil {
		if rc.ignoreErrors {
			logging.Debug().Err(err).Str("endpoint", rc.endpoint).Msg("Ignoring failed request")
			return new(T), nil
		}
		return nil, err
	}
	return result, nil
}

// do waits for the limiter, obtains a token and runs the call under the breaker.
// result must be a pointer; it is returned unchanged on success.
func (c *Client) do(ctx context.Context, rc requestConfig, result interface{}) (interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	tok, err := c.tokens.GetCachedToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtain token: %w", err)
	}

	return c.execute(func() (interface{}, error) {
		if err := c.send(ctx, rc, tok.AccessToken, result); err != nil {
			return nil, err
		}
		return result, nil
	})
}

func (c *Client) send(ctx context.Context, rc requestConfig, accessToken string, result interface{}) error {
	reqURL := c.baseURL + rc.path
	if len(rc.query) > 0 {
		reqURL += "?" + rc.query.Encode()
	}

	var body io.Reader = http.NoBody
	if rc.body != nil {
		payload, err := json.Marshal(rc.body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, rc.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = c.tokens.Headers()
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if rc.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordCommandRequest(rc.endpoint, "error", time.Since(start))
		return newTransportError(rc.method, reqURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.RecordCommandRequest(rc.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return newTransportError(rc.method, reqURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := newStatusError(rc.method, reqURL, resp.StatusCode, data)
		logging.Ctx(ctx).Warn().Int("status", resp.StatusCode).Str("endpoint", rc.endpoint).Str("code", reqErr.Code).Msg("REST request failed")
		return reqErr
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decode response from %s: %w", rc.endpoint, err)
		}
	}
	return nil
}
