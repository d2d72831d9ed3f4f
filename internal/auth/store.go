// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"context"
	"sync"
)

// TokenStore persists one token per account key.
// Load returns ErrTokenNotFound when nothing is stored under key.
type TokenStore interface {
	Load(ctx context.Context, key string) (*Token, error)
	Save(ctx context.Context, key string, token *Token) error
	Delete(ctx context.Context, key string) error
}

// MemoryTokenStore is an in-process TokenStore. Tokens are lost on restart.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*Token)}
}

// Load returns a copy of the stored token.
func (s *MemoryTokenStore) Load(_ context.Context, key string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[key]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t.Clone(), nil
}

// Save stores a copy of token.
func (s *MemoryTokenStore) Save(_ context.Context, key string, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[key] = token.Clone()
	return nil
}

// Delete removes the token. Deleting a missing key is not an error.
func (s *MemoryTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	return nil
}
