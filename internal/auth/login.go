// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/fleetlink/internal/logging"
)

const (
	// RedirectURI is the app callback. Nothing listens on this scheme; the
	// authorization code is read from the redirect Location header.
	RedirectURI = "rismycar://login-callback"

	loginScope = "email openid profile offline_access phone ciam-uid"
)

// loginFlow drives one interactive login attempt. A new flow, and with it a
// new PKCE pair, is created per attempt.
type loginFlow struct {
	s    *Session
	pkce *PKCEChallenge
}

func newLoginFlow(s *Session) *loginFlow {
	return &loginFlow{s: s}
}

func (f *loginFlow) run(ctx context.Context, username, password string) (*Token, error) {
	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}
	f.pkce = pkce

	resume, err := f.authorize(ctx)
	if err != nil {
		return nil, err
	}
	logging.Debug().Msg("Login: authorization resume token received")

	if err := f.postUserAgent(ctx); err != nil {
		return nil, err
	}
	if err := f.postUsername(ctx, username); err != nil {
		return nil, err
	}

	preAuth, err := f.postPassword(ctx, username, password)
	if err != nil {
		return nil, err
	}

	code, err := f.resume(ctx, resume, preAuth)
	if err != nil {
		return nil, err
	}
	logging.Debug().Msg("Login: authorization code received")

	return f.exchange(ctx, code)
}

// authorize requests the authorization URL and returns the resume path from
// the query of the page the redirects end on.
func (f *loginFlow) authorize(ctx context.Context) (string, error) {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", f.s.clientID)
	q.Set("redirect_uri", RedirectURI)
	q.Set("scope", loginScope)
	q.Set("code_challenge", f.pkce.CodeChallenge)
	q.Set("code_challenge_method", string(f.pkce.Method))

	authURL := f.s.loginURL + "/as/authorization.oauth2?" + q.Encode()
	resp, err := f.s.do(ctx, http.MethodGet, authURL, f.s.Headers(), nil)
	if err != nil {
		return "", err
	}

	resume := resp.url.Query().Get("resume")
	if resume == "" {
		return "", &AuthError{URL: authURL, Status: resp.status, Code: "0", Detail: "authorization redirect without resume"}
	}
	return resume, nil
}

func (f *loginFlow) postUserAgent(ctx context.Context) error {
	_, err := f.postJSON(ctx, "/ciam/auth/ua", map[string]string{
		"browserName":    "Mobile Safari",
		"browserVersion": "17.4.1",
		"osName":         "iOS",
	})
	return err
}

func (f *loginFlow) postUsername(ctx context.Context, username string) error {
	_, err := f.postJSON(ctx, "/ciam/auth/login/user", map[string]string{
		"username": username,
	})
	return err
}

// postPassword submits the credentials and returns the short-lived pre-auth token.
func (f *loginFlow) postPassword(ctx context.Context, username, password string) (string, error) {
	body, err := f.postJSON(ctx, "/ciam/auth/login/pass", map[string]interface{}{
		"username":   username,
		"password":   password,
		"rememberMe": false,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Token == "" {
		return "", &AuthError{URL: f.s.loginURL + "/ciam/auth/login/pass", Status: http.StatusOK, Code: "0", Detail: "password response without token", Err: err}
	}
	return result.Token, nil
}

// resume resubmits the pre-auth token and captures the authorization code from
// the custom-scheme redirect.
func (f *loginFlow) resume(ctx context.Context, resume, preAuth string) (string, error) {
	resumeURL := resume
	if strings.HasPrefix(resume, "/") {
		resumeURL = f.s.loginURL + resume
	}

	headers := f.s.Headers()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	form := url.Values{}
	form.Set("token", preAuth)

	resp, err := f.s.doRedirect(ctx, http.MethodPost, resumeURL, headers, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}

	location := resp.header.Get("Location")
	if resp.status < 300 || resp.status >= 400 || location == "" {
		return "", &AuthError{URL: resumeURL, Status: resp.status, Code: "0", Detail: "resume did not redirect to the app callback"}
	}

	target, err := url.Parse(location)
	if err != nil {
		return "", &AuthError{URL: resumeURL, Status: resp.status, Code: "0", Detail: "invalid callback location", Err: err}
	}
	code := target.Query().Get("code")
	if code == "" {
		return "", &AuthError{URL: resumeURL, Status: resp.status, Code: "0", Detail: fmt.Sprintf("callback without code: %s", target.Query().Get("error"))}
	}
	return code, nil
}

// exchange trades the authorization code and PKCE verifier for the token pair.
func (f *loginFlow) exchange(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", string(oidc.GrantTypeCode))
	form.Set("code", code)
	form.Set("redirect_uri", RedirectURI)
	form.Set("client_id", f.s.clientID)
	form.Set("code_verifier", f.pkce.CodeVerifier)

	return f.s.postToken(ctx, form)
}

func (f *loginFlow) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", path, err)
	}

	headers := f.s.Headers()
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	resp, err := f.s.do(ctx, http.MethodPost, f.s.loginURL+path, headers, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}
