// Fleetlink - Vehicle Fleet Telemetry Session Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Token encryption errors
var (
	// ErrDecryptionFailed indicates the decryption operation failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const defaultEncryptionContext = "fleetlink-token-store-v1"

// TokenEncryptor provides AES-GCM encryption for persisted tokens.
// A nil *TokenEncryptor is valid and passes values through unchanged.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor creates a token encryptor from a base64-encoded master key.
// Returns nil, nil when masterKey is empty (encryption disabled).
func NewTokenEncryptor(masterKey, context string) (*TokenEncryptor, error) {
	if masterKey == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}

	if context == "" {
		context = defaultEncryptionContext
	}

	derivedKey, err := deriveKey(key, []byte(context), 32)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &TokenEncryptor{aead: aead}, nil
}

// deriveKey derives a key using HKDF-SHA256.
func deriveKey(secret, context []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, context)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// IsEnabled returns true if encryption is enabled.
func (e *TokenEncryptor) IsEnabled() bool {
	return e != nil && e.aead != nil
}

// Encrypt encrypts the plaintext and returns base64-encoded ciphertext with
// the nonce prepended. Empty strings are returned as-is.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if !e.IsEnabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext and returns plaintext.
// Empty strings are returned as-is.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if !e.IsEnabled() || ciphertext == "" {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+1+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}

	return string(plaintext), nil
}

// EncryptToken returns a copy of t with access and refresh tokens encrypted.
func (e *TokenEncryptor) EncryptToken(t *Token) (*Token, error) {
	if !e.IsEnabled() || t == nil {
		return t, nil
	}

	out := t.Clone()
	var err error
	if out.AccessToken, err = e.Encrypt(t.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if out.RefreshToken, err = e.Encrypt(t.RefreshToken); err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	return out, nil
}

// DecryptToken returns a copy of t with access and refresh tokens decrypted.
// Values that still look like plain JWTs were written before encryption was
// enabled and are kept as they are.
func (e *TokenEncryptor) DecryptToken(t *Token) (*Token, error) {
	if !e.IsEnabled() || t == nil {
		return t, nil
	}

	out := t.Clone()
	fields := []*string{&out.AccessToken, &out.RefreshToken}
	for _, field := range fields {
		if *field == "" || looksLikeJWT(*field) {
			continue
		}
		plain, err := e.Decrypt(*field)
		if err != nil {
			return nil, fmt.Errorf("decrypt token: %w", err)
		}
		*field = plain
	}
	return out, nil
}

// looksLikeJWT checks if a string has the header.payload.signature shape.
func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}

// GenerateEncryptionKey generates a random 256-bit key, base64-encoded for configuration.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
