// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/oidc"
)

// PKCEChallenge holds a code verifier and its S256 challenge (RFC 7636).
type PKCEChallenge struct {
	CodeVerifier  string
	CodeChallenge string
	Method        oidc.CodeChallengeMethod
}

// GeneratePKCE creates a new verifier from 32 random bytes, base64url without
// padding, and derives its SHA-256 challenge.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, 32)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	codeVerifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEChallenge{
		CodeVerifier:  codeVerifier,
		CodeChallenge: oidc.NewSHACodeChallenge(codeVerifier),
		Method:        oidc.CodeChallengeMethodS256,
	}, nil
}
