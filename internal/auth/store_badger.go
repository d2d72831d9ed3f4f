// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const tokenKeyPrefix = "token:"

// BadgerTokenStore persists tokens in BadgerDB, optionally encrypted at rest.
type BadgerTokenStore struct {
	db        *badger.DB
	encryptor *TokenEncryptor
	ownsDB    bool
}

// OpenBadgerTokenStore opens (or creates) a BadgerDB at dir. The returned
// store closes the database on Close.
func OpenBadgerTokenStore(dir string, encryptor *TokenEncryptor) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open token store %s: %w", dir, err)
	}

	return &BadgerTokenStore{db: db, encryptor: encryptor, ownsDB: true}, nil
}

// NewBadgerTokenStore creates a token store on an already open database.
func NewBadgerTokenStore(db *badger.DB, encryptor *TokenEncryptor) *BadgerTokenStore {
	return &BadgerTokenStore{db: db, encryptor: encryptor}
}

// Load returns the token stored under key.
func (s *BadgerTokenStore) Load(_ context.Context, key string) (*Token, error) {
	var stored Token

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return nil, err
	}

	return s.encryptor.DecryptToken(&stored)
}

// Save stores token under key, replacing any previous value.
func (s *BadgerTokenStore) Save(_ context.Context, key string, token *Token) error {
	enc, err := s.encryptor.EncryptToken(token)
	if err != nil {
		return err
	}

	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(tokenKeyPrefix+key), data)
	})
}

// Delete removes the token stored under key.
func (s *BadgerTokenStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(tokenKeyPrefix + key))
	})
}

// Close closes the database when the store opened it.
func (s *BadgerTokenStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
