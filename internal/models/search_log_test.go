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

func setupSearchLogStore(t *testing.T) (*SearchLogStore, func()) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db := newMockQuerier(sqlDB)

	ctx := t.Context()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE search_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			query TEXT NOT NULL,
			indexer TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			result_count INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0
		)
	`)
	require.NoError(t, err)

	store := NewSearchLogStore(db)
	cleanup := func() { _ = sqlDB.Close() }

	return store, cleanup
}

func TestSearchLogStore_Create(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchLogStore(t)
	defer cleanup()

	ctx := t.Context()

	err := store.Create(ctx, "ubuntu", "all", 42, 1500*time.Millisecond)
	require.NoError(t, err)

	logs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	assert.Equal(t, "ubuntu", logs[0].Query)
	assert.Equal(t, "all", logs[0].Indexer)
	assert.Equal(t, 42, logs[0].ResultCount)
	assert.Equal(t, int64(1500), logs[0].DurationMs)
	assert.False(t, logs[0].Timestamp.IsZero())
}

func TestSearchLogStore_Recent(t *testing.T) {
	t.Parallel()

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		store, cleanup := setupSearchLogStore(t)
		defer cleanup()

		ctx := t.Context()

		for _, q := range []string{"first", "second", "third"} {
			require.NoError(t, store.Create(ctx, q, "eztv", 0, time.Second))
		}

		logs, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, "third", logs[0].Query)
		assert.Equal(t, "first", logs[2].Query)
	})

	t.Run("respects limit", func(t *testing.T) {
		t.Parallel()

		store, cleanup := setupSearchLogStore(t)
		defer cleanup()

		ctx := t.Context()

		for range 5 {
			require.NoError(t, store.Create(ctx, "q", "eztv", 1, time.Second))
		}

		logs, err := store.Recent(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})

	t.Run("empty store", func(t *testing.T) {
		t.Parallel()

		store, cleanup := setupSearchLogStore(t)
		defer cleanup()

		logs, err := store.Recent(t.Context(), 10)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

func TestSearchLogStore_Stats(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchLogStore(t)
	defer cleanup()

	ctx := t.Context()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalSearches)
	assert.Zero(t, stats.AvgSearchTimeMs)

	require.NoError(t, store.Create(ctx, "a", "all", 10, 100*time.Millisecond))
	require.NoError(t, store.Create(ctx, "b", "all", 20, 300*time.Millisecond))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSearches)
	assert.InDelta(t, 200.0, stats.AvgSearchTimeMs, 0.001)
}

func TestSearchLogStore_Clear(t *testing.T) {
	t.Parallel()

	store, cleanup := setupSearchLogStore(t)
	defer cleanup()

	ctx := t.Context()

	require.NoError(t, store.Create(ctx, "a", "all", 1, time.Second))
	require.NoError(t, store.Create(ctx, "b", "all", 2, time.Second))

	deleted, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	logs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
