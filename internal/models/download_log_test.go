// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDownloadLogStore(t *testing.T) (*DownloadLogStore, func()) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	db := newMockQuerier(sqlDB)

	ctx := t.Context()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE download_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			magnet TEXT,
			download_link TEXT,
			client_name TEXT,
			download_type TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	require.NoError(t, err)

	store := NewDownloadLogStore(db)
	cleanup := func() { _ = sqlDB.Close() }

	return store, cleanup
}

func TestDownloadLogStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("client handoff", func(t *testing.T) {
		t.Parallel()

		store, cleanup := setupDownloadLogStore(t)
		defer cleanup()

		ctx := t.Context()

		err := store.Create(ctx, &DownloadLog{
			Title:        "Ubuntu 24.04 LTS",
			Magnet:       "magnet:?xt=urn:btih:abc",
			ClientName:   "torrserver",
			DownloadType: DownloadTypeClient,
		})
		require.NoError(t, err)

		logs, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)

		assert.Equal(t, "Ubuntu 24.04 LTS", logs[0].Title)
		assert.Equal(t, "magnet:?xt=urn:btih:abc", logs[0].Magnet)
		assert.Empty(t, logs[0].DownloadLink)
		assert.Equal(t, "torrserver", logs[0].ClientName)
		assert.Equal(t, DownloadTypeClient, logs[0].DownloadType)
	})

	t.Run("nil entry", func(t *testing.T) {
		t.Parallel()

		store, cleanup := setupDownloadLogStore(t)
		defer cleanup()

		err := store.Create(t.Context(), nil)
		assert.Error(t, err)
	})
}

func TestDownloadLogStore_Recent(t *testing.T) {
	t.Parallel()

	store, cleanup := setupDownloadLogStore(t)
	defer cleanup()

	ctx := t.Context()

	for _, title := range []string{"one", "two", "three"} {
		require.NoError(t, store.Create(ctx, &DownloadLog{
			Title:        title,
			DownloadLink: "https://example.org/" + title + ".torrent",
			DownloadType: DownloadTypeFile,
		}))
	}

	logs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "three", logs[0].Title)
	assert.Equal(t, "two", logs[1].Title)
}
