// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/fleetlink/internal/region"
)

const (
	testPassword = "correct-horse"
	testResume   = "/as/Xk2q/resume/as/authorization.ping"
)

// mockIdentityServer emulates the login, token and REST config endpoints.
type mockIdentityServer struct {
	*httptest.Server

	preflights atomic.Int32
	refreshes  atomic.Int32
	exchanges  atomic.Int32

	mu               sync.Mutex
	challenge        string
	refreshDelay     time.Duration
	refreshStatus    int
	omitRefreshToken bool
	lastForm         url.Values
	lastHeaders      http.Header
	issued           int
	redirectPath     string
}

func newMockIdentityServer(t *testing.T) *mockIdentityServer {
	t.Helper()

	m := &mockIdentityServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/config", func(w http.ResponseWriter, r *http.Request) {
		m.preflights.Add(1)
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	mux.HandleFunc("/as/authorization.oauth2", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code_challenge_method") != string(oidc.CodeChallengeMethodS256) || q.Get("code_challenge") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_request", "errors": "pkce"})
			return
		}
		m.mu.Lock()
		m.challenge = q.Get("code_challenge")
		m.mu.Unlock()
		http.Redirect(w, r, "/ciam/auth/login?resume="+url.QueryEscape(testResume), http.StatusFound)
	})

	mux.HandleFunc("/ciam/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html></html>"))
	})

	mux.HandleFunc("/ciam/auth/ua", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})

	mux.HandleFunc("/ciam/auth/login/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"result": "GO_TO_PASSWORD"})
	})

	mux.HandleFunc("/ciam/auth/login/pass", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != testPassword {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": "INVALID_CREDENTIALS", "errors": []string{"wrong password"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "RESUME2OIDC", "token": "pre-auth-1"})
	})

	mux.HandleFunc(testResume, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("token") != "pre-auth-1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_token", "errors": "pre-auth"})
			return
		}
		w.Header().Set("Location", RedirectURI+"?code=auth-code-1")
		w.WriteHeader(http.StatusFound)
	})

	mux.HandleFunc("/as/token.oauth2", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		m.lastForm = r.PostForm
		m.lastHeaders = r.Header.Clone()
		m.mu.Unlock()

		switch r.PostForm.Get("grant_type") {
		case string(oidc.GrantTypeCode):
			m.exchanges.Add(1)
			m.mu.Lock()
			challenge := m.challenge
			m.mu.Unlock()
			if r.PostForm.Get("code") != "auth-code-1" || oidc.NewSHACodeChallenge(r.PostForm.Get("code_verifier")) != challenge {
				writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_grant", "errors": "verifier"})
				return
			}
			writeJSON(w, http.StatusOK, m.tokenResponse(true))

		case string(oidc.GrantTypeRefreshToken):
			m.refreshes.Add(1)
			m.mu.Lock()
			delay, status, omit := m.refreshDelay, m.refreshStatus, m.omitRefreshToken
			m.mu.Unlock()
			time.Sleep(delay)
			if status != 0 {
				writeJSON(w, status, map[string]string{"code": "invalid_grant", "errors": "refresh token expired"})
				return
			}
			writeJSON(w, http.StatusOK, m.tokenResponse(!omit))

		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		redirect := m.redirectPath
		m.mu.Unlock()
		if redirect != "" && r.URL.Path == redirect {
			w.Header().Set("Location", "fleetlink-test://unexpected")
			w.WriteHeader(http.StatusFound)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockIdentityServer) tokenResponse(withRefresh bool) map[string]interface{} {
	m.mu.Lock()
	m.issued++
	n := m.issued
	m.mu.Unlock()

	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "account-subject-0001",
		"n":   n,
	}).SignedString([]byte("test-signing-key"))

	resp := map[string]interface{}{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   7200,
	}
	if withRefresh {
		resp["refresh_token"] = fmt.Sprintf("refresh-%d", n)
	}
	return resp
}

func (m *mockIdentityServer) form() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastForm
}

func (m *mockIdentityServer) headers() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeaders
}

func (m *mockIdentityServer) setRefresh(delay time.Duration, status int, omitRefreshToken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshDelay = delay
	m.refreshStatus = status
	m.omitRefreshToken = omitRefreshToken
}

// redirectOn makes path answer with a custom-scheme redirect.
func (m *mockIdentityServer) redirectOn(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirectPath = path
}

func (m *mockIdentityServer) sessionConfig() Config {
	return Config{
		Region:      region.Europe,
		StoreKey:    "driver@example.com",
		RESTURL:     m.URL,
		LoginURL:    m.URL,
		HTTPTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
