// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryLeeway is how long before ExpiresAt a token is already treated as expired.
const ExpiryLeeway = 60 * time.Second

// Token is an OAuth2 token pair as returned by the token endpoint.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	// ExpiresAt is epoch seconds, computed locally from ExpiresIn.
	ExpiresAt int64 `json:"expires_at"`
	// Subject is the access token's sub claim, when it is a JWT.
	Subject string `json:"subject,omitempty"`
}

// Expired reports whether the token expires within ExpiryLeeway of now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt-now.Unix() < int64(ExpiryLeeway/time.Second)
}

// Clone returns a copy of the token.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// stamp fills in the derived fields after a token response was decoded.
func (t *Token) stamp(now time.Time) {
	t.ExpiresAt = now.Unix() + t.ExpiresIn
	t.Subject = subjectFromJWT(t.AccessToken)
}

// subjectFromJWT extracts the sub claim without verifying the signature.
// The token came straight from the issuer over TLS; it is only used to label the account.
func subjectFromJWT(raw string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}
