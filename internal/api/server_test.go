// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/autobrr/searchbrr/internal/catalog"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/models"
)

const testSchema = `
CREATE TABLE search_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query TEXT NOT NULL,
    indexer TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    result_count INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE search_cache (
    key TEXT PRIMARY KEY,
    results BLOB NOT NULL,
    expires_at TIMESTAMP NOT NULL
);
CREATE TABLE download_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    magnet TEXT,
    download_link TEXT,
    client_name TEXT,
    download_type TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE api_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key_hash TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_used_at TIMESTAMP
);
`

func newTestServer(t *testing.T) (http.Handler, *models.APIKeyStore) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.ExecContext(t.Context(), testSchema)
	require.NoError(t, err)

	cacheStore := models.NewSearchCacheStore(sqlDB)
	searchLogs := models.NewSearchLogStore(sqlDB)
	apiKeys := models.NewAPIKeyStore(sqlDB)

	cfg, err := config.New(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	catalogSvc, err := catalog.NewService(t.TempDir(), t.TempDir(), "", zerolog.Nop())
	require.NoError(t, err)

	manager := indexer.NewManager("", "searchbrr-test/1.0", zerolog.Nop())

	server := NewServer(&Dependencies{
		Config:     cfg,
		Manager:    manager,
		Aggregator: indexer.NewAggregator(cacheStore, searchLogs, time.Minute, 100, zerolog.Nop()),
		Catalog:    catalogSvc,

		CacheStore:       cacheStore,
		SearchLogStore:   searchLogs,
		DownloadLogStore: models.NewDownloadLogStore(sqlDB),
		APIKeyStore:      apiKeys,

		Logger: zerolog.Nop(),
	})

	return server.Handler(), apiKeys
}

func TestServerHealth(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerOpenWithoutAPIKeys(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "searchbrr")
}

func TestServerRequiresAPIKeyOnceCreated(t *testing.T) {
	handler, apiKeys := newTestServer(t)

	rawKey, _, err := apiKeys.Create(t.Context(), "test")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/info", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	req.Header.Set("X-API-Key", rawKey)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Torznab clients pass the key as a query parameter instead.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2.0/indexers/all/results/torznab?t=caps&apikey="+rawKey, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<caps>")
}

func TestServerMountsTorznabRoutes(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2.0/indexers/all/results/torznab?t=caps", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, rec.Body.String(), "All Indexers")
}
