// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/searchbrr/internal/dbinterface"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// SearchCacheEntry describes a cached result set without its payload.
type SearchCacheEntry struct {
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SearchCacheStore persists serialized result lists keyed by search
// fingerprint.
type SearchCacheStore struct {
	db dbinterface.Querier
}

func NewSearchCacheStore(db dbinterface.Querier) *SearchCacheStore {
	return &SearchCacheStore{db: db}
}

// Get returns the cached payload for key, or ErrCacheMiss when absent or
// past its expiry.
func (s *SearchCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var results []byte
	var expiresAt time.Time

	err := s.db.QueryRowContext(ctx, `
		SELECT results, expires_at
		FROM search_cache
		WHERE key = ?
	`, key).Scan(&results, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read search cache: %w", err)
	}

	if time.Now().After(expiresAt) {
		return nil, ErrCacheMiss
	}

	return results, nil
}

// Set stores a payload under key, replacing any previous entry.
func (s *SearchCacheStore) Set(ctx context.Context, key string, results []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_cache (key, results, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET results = excluded.results, expires_at = excluded.expires_at
	`, key, results, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write search cache: %w", err)
	}

	return nil
}

// List returns live cache entries, soonest to expire last.
func (s *SearchCacheStore) List(ctx context.Context, limit int) ([]*SearchCacheEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, LENGTH(results), expires_at
		FROM search_cache
		WHERE expires_at > ?
		ORDER BY expires_at DESC
		LIMIT ?
	`, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search cache: %w", err)
	}
	defer rows.Close()

	var entries []*SearchCacheEntry
	for rows.Next() {
		var entry SearchCacheEntry
		if err := rows.Scan(&entry.Key, &entry.Size, &entry.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// DeleteExpired removes entries past their expiry and returns the count.
// Called at startup and periodically by the aggregator.
func (s *SearchCacheStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM search_cache WHERE expires_at <= ?
	`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	return result.RowsAffected()
}

// Delete removes a single entry by key.
func (s *SearchCacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM search_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear drops the whole cache and returns how many entries were removed.
func (s *SearchCacheStore) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM search_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear search cache: %w", err)
	}

	return result.RowsAffected()
}
