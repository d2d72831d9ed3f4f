// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var (
	// ErrReauthRequired means no usable token exists and an interactive login is needed.
	ErrReauthRequired = errors.New("interactive login required")

	// ErrTokenNotFound is returned by a TokenStore when no token is stored for the key.
	ErrTokenNotFound = errors.New("token not found")
)

// AuthError is a classified login or refresh failure.
type AuthError struct {
	// URL is the request URL that failed.
	URL string
	// Status is the HTTP status code, 0 for transport failures.
	Status int
	// Code is the backend error code, "0" when the body carried none.
	Code string
	// Detail is the backend error list or the transport error text.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Error requesting: %s - %s - %s", e.URL, e.Code, e.Detail)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Rejected reports whether the server refused the request with a 4xx status,
// as opposed to a transport failure or server error.
func (e *AuthError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// newStatusError builds an AuthError from a non-2xx response.
func newStatusError(url string, status int, body []byte) *AuthError {
	e := &AuthError{URL: url, Status: status, Code: "0", Detail: string(body)}

	var payload struct {
		Code   json.RawMessage `json:"code"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Code) > 0 {
		e.Code = trimQuotes(string(payload.Code))
		e.Detail = string(payload.Errors)
	}
	if e.Detail == "" {
		e.Detail = fmt.Sprintf("status %d", status)
	}
	return e
}

// newTransportError wraps a failure that produced no response.
func newTransportError(url string, err error) *AuthError {
	return &AuthError{URL: url, Code: "0", Detail: err.Error(), Err: err}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
