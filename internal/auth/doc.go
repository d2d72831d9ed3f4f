// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

/*
Package auth manages the account's OAuth2 token lifecycle.

A Session performs the interactive PKCE login, persists the resulting token
through a TokenStore, and hands out valid bearer tokens to the connection
manager and the command client:

	store, err := auth.OpenBadgerTokenStore("/data/tokens", encryptor)
	session := auth.NewSession(auth.Config{Region: region.Europe, StoreKey: account}, store)

	token, err := session.GetCachedToken(ctx)
	if errors.Is(err, auth.ErrReauthRequired) {
	    // run `fleetlink --login` again
	}

# Token Lifecycle

GetCachedToken serves the in-memory token, falls back to the store, and
refreshes when the token expires within ExpiryLeeway. Refresh runs under a
mutex: callers that arrive while a refresh is in flight wait for it and reuse
its result.

A refresh is a preflight GET of the REST config endpoint followed by a
refresh_token grant. A response without a refresh_token keeps the previous
one. When the server rejects a refresh that was itself a retry (ForceRefresh
after a rejected websocket handshake), the stored token is purged.

# Login

Login drives the six-step browserless flow: authorize with a fresh PKCE pair,
post user agent, username and password, resubmit the pre-auth token to the
resume endpoint, and exchange the code from the custom-scheme callback. The
HTTP client never follows redirects to non-http(s) schemes.

# Storage

BadgerTokenStore keeps tokens in BadgerDB. With an encryption key configured,
access and refresh tokens are AES-256-GCM encrypted with an HKDF-SHA256
derived key before they are written.
*/
package auth
