// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package command

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// ErrInvalidCommand wraps validation failures of a command or route request.
var ErrInvalidCommand = errors.New("invalid command request")

// RequestError is a failed REST call.
type RequestError struct {
	Method string
	URL    string
	// Status is the HTTP status code, 0 for transport failures.
	Status int
	// Code is the backend error code, "0" when the body carried none.
	Code string
	// Body is the backend error list, the raw body, or the transport error text.
	Body string
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Error requesting: %s - %d - %s - %s", e.URL, e.Status, e.Code, e.Body)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ClientError reports a 4xx response. Client errors never trip the breaker.
func (e *RequestError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

func newStatusError(method, url string, status int, body []byte) *RequestError {
	e := &RequestError{Method: method, URL: url, Status: status, Code: "0", Body: string(body)}

	var payload struct {
		Code   json.RawMessage `json:"code"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Code) > 0 {
		e.Code = trimQuotes(string(payload.Code))
		e.Body = string(payload.Errors)
	}
	if e.Body == "" {
		e.Body = http.StatusText(status)
	}
	return e
}

func newTransportError(method, url string, err error) *RequestError {
	return &RequestError{Method: method, URL: url, Code: "0", Body: err.Error(), Err: err}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
