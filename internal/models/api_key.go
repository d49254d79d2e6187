// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/searchbrr/internal/dbinterface"
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrInvalidAPIKey  = errors.New("invalid api key")
)

type APIKey struct {
	ID         int        `json:"id"`
	KeyHash    string     `json:"-"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type APIKeyStore struct {
	db dbinterface.Querier
}

func NewAPIKeyStore(db dbinterface.Querier) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// GenerateAPIKey returns a new random key as a 64-character hex string.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// HashAPIKey returns the hex-encoded SHA-256 digest of a raw key. Only the
// hash is persisted.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Create stores a new API key and returns the raw key exactly once.
func (s *APIKeyStore) Create(ctx context.Context, name string) (string, *APIKey, error) {
	rawKey, err := GenerateAPIKey()
	if err != nil {
		return "", nil, err
	}

	keyHash := HashAPIKey(rawKey)

	var apiKey APIKey
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (key_hash, name)
		VALUES (?, ?)
		RETURNING id, key_hash, name, created_at, last_used_at
	`, keyHash, name).Scan(&apiKey.ID, &apiKey.KeyHash, &apiKey.Name, &apiKey.CreatedAt, &apiKey.LastUsedAt)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create api key: %w", err)
	}

	return rawKey, &apiKey, nil
}

// GetByHash fetches a key row by its hash.
func (s *APIKeyStore) GetByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	var apiKey APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, key_hash, name, created_at, last_used_at
		FROM api_keys
		WHERE key_hash = ?
	`, keyHash).Scan(&apiKey.ID, &apiKey.KeyHash, &apiKey.Name, &apiKey.CreatedAt, &apiKey.LastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return &apiKey, nil
}

// List returns all keys, newest first.
func (s *APIKeyStore) List(ctx context.Context) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key_hash, name, created_at, last_used_at
		FROM api_keys
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		var apiKey APIKey
		if err := rows.Scan(&apiKey.ID, &apiKey.KeyHash, &apiKey.Name, &apiKey.CreatedAt, &apiKey.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, &apiKey)
	}

	return keys, rows.Err()
}

// UpdateLastUsed stamps a key after successful authentication.
func (s *APIKeyStore) UpdateLastUsed(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// Delete removes a key.
func (s *APIKeyStore) Delete(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// ValidateAPIKey checks a raw key and returns its row when valid.
func (s *APIKeyStore) ValidateAPIKey(ctx context.Context, rawKey string) (*APIKey, error) {
	if rawKey == "" {
		return nil, ErrInvalidAPIKey
	}

	apiKey, err := s.GetByHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, ErrAPIKeyNotFound) {
			return nil, ErrInvalidAPIKey
		}
		return nil, err
	}

	return apiKey, nil
}
