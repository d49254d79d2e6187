// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package catalog

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const definitionYAML = `---
id: exampletracker
name: Example Tracker
links:
  - https://tracker.example/
caps:
  categorymappings:
    - {id: 1, cat: Movies, desc: Movies}
  modes:
    search: [q]
search:
  paths:
    - path: /browse
  rows:
    selector: tr
  fields:
    title:
      selector: a
`

func newTestService(t *testing.T, apiBase string) *Service {
	t.Helper()

	base := t.TempDir()
	svc, err := NewService(filepath.Join(base, "available"), filepath.Join(base, "active"), "", zerolog.Nop())
	require.NoError(t, err)
	if apiBase != "" {
		svc.apiBase = apiBase
	}
	return svc
}

// githubStub serves the contents listing plus per-file downloads.
func githubStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/repos/Jackett/Jackett/contents/src/Jackett.Common/Definitions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[
			{"name": "exampletracker.yml", "type": "file", "download_url": "%[1]s/raw/exampletracker.yml"},
			{"name": "broken.yml", "type": "file", "download_url": "%[1]s/raw/broken.yml"},
			{"name": "README.md", "type": "file", "download_url": "%[1]s/raw/README.md"},
			{"name": "subdir", "type": "dir", "download_url": null},
			{"name": "nourl.yml", "type": "file", "download_url": null}
		]`, srv.URL)
	})
	mux.HandleFunc("/raw/exampletracker.yml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, definitionYAML)
	})
	mux.HandleFunc("/raw/broken.yml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "id: [unclosed")
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestServiceList(t *testing.T) {
	t.Parallel()

	srv := githubStub(t)
	svc := newTestService(t, srv.URL)

	items, err := svc.List(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Directories, non-yml files and entries without a download URL are
	// filtered out; names are sorted and stripped of the extension.
	assert.Equal(t, "broken", items[0].Name)
	assert.Equal(t, "exampletracker", items[1].Name)
	assert.Equal(t, "exampletracker.yml", items[1].Filename)
	assert.False(t, items[1].Active)
}

func TestServiceList_FuzzyFilter(t *testing.T) {
	t.Parallel()

	srv := githubStub(t)
	svc := newTestService(t, srv.URL)

	items, err := svc.List(t.Context(), "exmplt")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "exampletracker", items[0].Name)

	items, err = svc.List(t.Context(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestServiceDownloadAndActivate(t *testing.T) {
	t.Parallel()

	srv := githubStub(t)
	svc := newTestService(t, srv.URL)

	entry, err := svc.Lookup(t.Context(), "ExampleTracker")
	require.NoError(t, err)

	path, err := svc.Download(t.Context(), entry)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, []string{"exampletracker"}, svc.ListAvailable())
	assert.Empty(t, svc.ListActive())

	require.NoError(t, svc.Activate("exampletracker"))
	assert.Equal(t, []string{"exampletracker"}, svc.ListActive())

	// Active copies are flagged in the catalog listing.
	items, err := svc.List(t.Context(), "")
	require.NoError(t, err)
	for _, item := range items {
		if item.Name == "exampletracker" {
			assert.True(t, item.Active)
		}
	}

	require.NoError(t, svc.Deactivate("exampletracker"))
	assert.Empty(t, svc.ListActive())
	// The available cache copy survives deactivation.
	assert.Equal(t, []string{"exampletracker"}, svc.ListAvailable())
}

func TestServiceDownload_RejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	srv := githubStub(t)
	svc := newTestService(t, srv.URL)

	entry, err := svc.Lookup(t.Context(), "broken")
	require.NoError(t, err)

	_, err = svc.Download(t.Context(), entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
	assert.Empty(t, svc.ListAvailable())
}

func TestServiceActivate_NotDownloaded(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "")
	err := svc.Activate("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not downloaded")
}

func TestServiceDeactivate_NotActive(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, "")
	err := svc.Deactivate("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestServiceHydrate(t *testing.T) {
	t.Parallel()

	srv := githubStub(t)
	svc := newTestService(t, srv.URL)

	svc.Hydrate(t.Context())
	items, err := svc.List(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestServiceHydrate_SkipsWhenLocalPresent(t *testing.T) {
	t.Parallel()

	// Point at a dead endpoint; hydration must not even try when a local
	// definition already exists.
	svc := newTestService(t, "http://127.0.0.1:1")
	require.NoError(t, os.MkdirAll(svc.availableDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc.availableDir, "local.yml"), []byte(definitionYAML), 0o644))

	svc.Hydrate(t.Context())

	svc.mu.RLock()
	defer svc.mu.RUnlock()
	assert.Nil(t, svc.remote)
}
