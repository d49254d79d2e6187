// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupSearchCacheStore(t *testing.T) (*SearchCacheStore, func()) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db := newMockQuerier(sqlDB)

	ctx := t.Context()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE search_cache (
			key TEXT PRIMARY KEY,
			results BLOB NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)
	`)
	require.NoError(t, err)

	store := NewSearchCacheStore(db)
	cleanup := func() { _ = sqlDB.Close() }

	return store, cleanup
}

func TestSearchCacheStore_SetGet(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()
	payload := []byte(`[{"Title":"Ubuntu 24.04","Guid":"abc"}]`)

	require.NoError(t, store.Set(ctx, "native:all:ubuntu:", payload, time.Hour))

	got, err := store.Get(ctx, "native:all:ubuntu:")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSearchCacheStore_GetMiss(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	_, err := store.Get(t.Context(), "native:all:missing:")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSearchCacheStore_GetExpired(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "native:all:old:", []byte("[]"), -time.Minute))

	_, err := store.Get(ctx, "native:all:old:")
	assert.ErrorIs(t, err, ErrCacheMiss, "expired entries read as misses")
}

func TestSearchCacheStore_SetReplaces(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "k", []byte("old"), time.Hour))
	require.NoError(t, store.Set(ctx, "k", []byte("new"), time.Hour))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestSearchCacheStore_List(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "live", []byte("12345"), time.Hour))
	require.NoError(t, store.Set(ctx, "dead", []byte("x"), -time.Minute))

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1, "expired entries are not listed")

	assert.Equal(t, "live", entries[0].Key)
	assert.Equal(t, 5, entries[0].Size)
}

func TestSearchCacheStore_DeleteExpired(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "live", []byte("a"), time.Hour))
	require.NoError(t, store.Set(ctx, "dead1", []byte("b"), -time.Minute))
	require.NoError(t, store.Set(ctx, "dead2", []byte("c"), -time.Hour))

	deleted, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestSearchCacheStore_Clear(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchCacheStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Hour))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))

	deleted, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}
