// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package command

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetlink/internal/auth"
	"github.com/tomtom215/fleetlink/internal/config"
	"github.com/tomtom215/fleetlink/internal/region"
)

const testVIN = "WDD2221231A000001"

type staticTokens struct {
	token *auth.Token
	err   error
	calls atomic.Int32
}

func (s *staticTokens) GetCachedToken(context.Context) (*auth.Token, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.token.Clone(), nil
}

func (s *staticTokens) Headers() http.Header {
	return region.Europe.Headers("session-1", "")
}

func testCommandConfig(url string) *config.CommandConfig {
	return &config.CommandConfig{
		Timeout:            5 * time.Second,
		RateLimit:          1000,
		Burst:              100,
		BreakerMaxRequests: 1,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     time.Minute,
		BreakerFailures:    3,
		RESTURL:            url,
	}
}

// newTestClient starts a server running handler and returns a client pointed at it
// plus the number of requests the server has seen.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	tokens := &staticTokens{token: &auth.Token{AccessToken: "access-1", RefreshToken: "refresh-1"}}
	return NewClient(testCommandConfig(srv.URL), region.Europe, tokens), &hits
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_GetUserSendsHeaders(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/user" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Sessionid"); got != "session-1" {
			t.Errorf("X-Sessionid = %q", got)
		}
		if r.Header.Get("X-Trackingid") == "" || r.Header.Get("Ris-Os-Name") == "" {
			t.Errorf("identification headers missing: %v", r.Header)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"assignedVehicles": []map[string]string{
				{"vin": testVIN, "fin": "F1"},
				{"fin": "WDD2221231A000002"},
			},
		})
	})

	user, err := c.GetUser(context.Background())
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if len(user.AssignedVehicles) != 2 {
		t.Fatalf("AssignedVehicles = %d, want 2", len(user.AssignedVehicles))
	}
	if got := user.AssignedVehicles[0].ID(); got != testVIN {
		t.Errorf("ID() = %q, want VIN", got)
	}
	if got := user.AssignedVehicles[1].ID(); got != "WDD2221231A000002" {
		t.Errorf("ID() = %q, want FIN fallback", got)
	}
}

func TestClient_RequestError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantBody string
	}{
		{"backend error body", http.StatusConflict, `{"code":"CMD_IN_PROGRESS","errors":["busy"]}`, "CMD_IN_PROGRESS", `["busy"]`},
		{"plain body", http.StatusBadGateway, "upstream down", "0", "upstream down"},
		{"empty body", http.StatusServiceUnavailable, "", "0", "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.GetUser(context.Background())
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %v, want *RequestError", err)
			}
			if reqErr.Status != tt.status || reqErr.Code != tt.wantCode || reqErr.Body != tt.wantBody {
				t.Errorf("RequestError = %+v", reqErr)
			}
			want := "Error requesting: " + c.baseURL + "/v1/user - "
			if !strings.HasPrefix(reqErr.Error(), want) {
				t.Errorf("Error() = %q, want prefix %q", reqErr.Error(), want)
			}
		})
	}
}

func TestClient_IgnoreErrors(t *testing.T) {
	t.Parallel()

	var fleetQuery atomic.Value
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/company/") {
			fleetQuery.Store(r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	violations, err := c.GetGeofencingViolations(context.Background(), testVIN)
	if err != nil || len(violations) != 0 {
		t.Errorf("GetGeofencingViolations() = %v, %v; want empty, nil", violations, err)
	}

	doc, err := c.GetFleet(context.Background(), "acme", "north")
	if err != nil || len(doc) != 0 {
		t.Errorf("GetFleet() = %v, %v; want empty, nil", doc, err)
	}
	if got, _ := fleetQuery.Load().(string); got != "filter=&size=100" {
		t.Errorf("fleet query = %q", got)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 3; i++ {
		if _, err := c.GetUser(context.Background()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := c.BreakerState(); got != "open" {
		t.Fatalf("BreakerState() = %q, want open", got)
	}

	_, err := c.GetUser(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 5; i++ {
		if _, err := c.GetCapabilities(context.Background(), testVIN); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if got := c.BreakerState(); got != "closed" {
		t.Errorf("BreakerState() = %q, want closed", got)
	}
	if got := hits.Load(); got != 5 {
		t.Errorf("server hits = %d, want 5", got)
	}
}

func TestClient_TokenFailure(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := NewClient(testCommandConfig(srv.URL), region.Europe, &staticTokens{err: auth.ErrReauthRequired})

	_, err := c.GetUser(context.Background())
	if !errors.Is(err, auth.ErrReauthRequired) {
		t.Errorf("error = %v, want ErrReauthRequired", err)
	}
	if hits.Load() != 0 {
		t.Error("request sent without a token")
	}
}

func TestClient_RateLimit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	defer srv.Close()

	cfg := testCommandConfig(srv.URL)
	cfg.RateLimit = 0.01
	cfg.Burst = 1
	c := NewClient(cfg, region.Europe, &staticTokens{token: &auth.Token{AccessToken: "a"}})

	if _, err := c.GetConfig(context.Background()); err != nil {
		t.Fatalf("first GetConfig() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.GetConfig(ctx); err == nil {
		t.Error("second GetConfig() should be throttled")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestClient_Features(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/capabilities"):
			w.WriteHeader(http.StatusUnauthorized)
		case strings.HasSuffix(r.URL.Path, "/capabilities/commands"):
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"commands": []map[string]interface{}{
					{"commandName": "DOORS_LOCK", "isAvailable": true},
					{"commandName": "WINDOWS_MOVE", "isAvailable": false},
					{"commandName": seatConfigureCommand, "isAvailable": true, "capabilityInformation": []string{"ZEV_PRECONDITIONING_SEATS_FRONT"}},
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	features, err := c.Features(context.Background(), testVIN)
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	want := map[string]bool{
		"DOORS_LOCK":                      true,
		"WINDOWS_MOVE":                    false,
		seatConfigureCommand:              true,
		"ZEV_PRECONDITIONING_SEATS_FRONT": true,
	}
	if len(features) != len(want) {
		t.Fatalf("Features() = %v", features)
	}
	for k, v := range want {
		if features[k] != v {
			t.Errorf("features[%s] = %v, want %v", k, features[k], v)
		}
	}
}

func TestClient_MalformedVIN(t *testing.T) {
	t.Parallel()

	c, hits := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})

	if _, err := c.GetCapabilities(context.Background(), "../v1/user"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("error = %v, want ErrInvalidCommand", err)
	}
	if hits.Load() != 0 {
		t.Error("request sent for malformed vehicle id")
	}
}

func TestClient_CapabilitiesCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if hits.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"features": map[string]bool{"CHARGING": true}})
	}))
	t.Cleanup(srv.Close)

	cfg := testCommandConfig(srv.URL)
	cfg.CapabilityTTL = time.Hour
	c := NewClient(cfg, region.Europe, &staticTokens{token: &auth.Token{AccessToken: "access-1"}})

	if _, err := c.GetCapabilities(context.Background(), testVIN); err == nil {
		t.Fatal("first call should fail")
	}
	for i := 0; i < 3; i++ {
		caps, err := c.GetCapabilities(context.Background(), testVIN)
		if err != nil {
			t.Fatalf("GetCapabilities() error = %v", err)
		}
		if !caps.Features["CHARGING"] {
			t.Errorf("Features = %v", caps.Features)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2 (errors are not cached)", got)
	}
}
