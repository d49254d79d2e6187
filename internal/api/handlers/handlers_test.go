// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

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
`

type testStores struct {
	cache     *models.SearchCacheStore
	searchLog *models.SearchLogStore
	downloads *models.DownloadLogStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.ExecContext(t.Context(), testSchema)
	require.NoError(t, err)

	return testStores{
		cache:     models.NewSearchCacheStore(sqlDB),
		searchLog: models.NewSearchLogStore(sqlDB),
		downloads: models.NewDownloadLogStore(sqlDB),
	}
}

func newTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	cfg, err := config.New(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)
	return cfg
}

func newTestAggregator(t *testing.T, stores testStores) *indexer.Aggregator {
	t.Helper()
	return indexer.NewAggregator(stores.cache, stores.searchLog, time.Minute, 100, zerolog.Nop())
}

// testDefinitionYAML is a minimal HTML definition against a stub tracker.
func testDefinitionYAML(baseURL string) string {
	return fmt.Sprintf(`---
id: testtracker
name: Test Tracker
description: Stub tracker for handler tests
language: en-US
type: public
links:
  - %s
caps:
  categorymappings:
    - {id: 41, cat: Movies/HD, desc: Movies HD}
  modes:
    search: [q]
settings:
  - name: sort
    type: select
    label: Sort by
    default: created
    options:
      created: created
      seeders: seeders
search:
  paths:
    - path: /browse
  inputs:
    q: "{{ .Query.Keywords }}"
  rows:
    selector: table tr.release
  fields:
    title:
      selector: td.name a
    details:
      selector: td.name a
      attribute: href
    download:
      selector: td.dl a
      attribute: href
    size:
      selector: td.size
    seeders:
      selector: td.seeds
`, baseURL)
}

const trackerPageHTML = `<html><body><table>
<tr class="release">
	<td class="name"><a href="/details/1">Ubuntu 24.04 ISO</a></td>
	<td class="size">1.5 GB</td>
	<td class="seeds">50</td>
	<td class="dl"><a href="/download/1">get</a></td>
</tr>
</table></body></html>`

// newTestManager loads one native test definition pointing at baseURL.
func newTestManager(t *testing.T, baseURL string) *indexer.Manager {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "testtracker.yml"), []byte(testDefinitionYAML(baseURL)), 0o644)
	require.NoError(t, err)

	manager := indexer.NewManager("", "searchbrr-test/1.0", zerolog.Nop())
	count, err := manager.LoadNative(dir, nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	return manager
}
