// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/domain"
)

func newDownloadFixture(t *testing.T) (http.Handler, *config.AppConfig, testStores) {
	t.Helper()

	stores := newTestStores(t)
	cfg := newTestConfig(t)

	h := NewDownloadHandler(cfg, stores.downloads, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	return r, cfg, stores
}

// testTorrentBytes builds a valid single-file torrent.
func testTorrentBytes(t *testing.T) []byte {
	t.Helper()

	info := metainfo.Info{
		Name:        "ubuntu-24.04.iso",
		PieceLength: 262144,
		Pieces:      make([]byte, 20),
		Length:      1048576,
	}
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)

	mi := metainfo.MetaInfo{
		Announce:  "http://tracker.example/announce",
		InfoBytes: infoBytes,
	}
	var buf bytes.Buffer
	require.NoError(t, mi.Write(&buf))
	return buf.Bytes()
}

func TestDownload_SavesMagnetStub(t *testing.T) {
	router, cfg, stores := newDownloadFixture(t)

	dir := t.TempDir()
	require.NoError(t, cfg.Update(func(c *domain.Config) {
		c.DownloadPath = dir
	}))

	magnet := "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=ubuntu"
	body, _ := json.Marshal(map[string]string{"url": magnet, "title": "Ubuntu 24.04"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := os.ReadFile(filepath.Join(dir, "Ubuntu 24.04.magnet"))
	require.NoError(t, err)
	assert.Equal(t, magnet, string(saved))

	logs, err := stores.downloads.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "magnet", logs[0].DownloadType)
}

func TestDownload_FetchesAndSavesTorrent(t *testing.T) {
	router, cfg, stores := newDownloadFixture(t)

	payload := testTorrentBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	require.NoError(t, cfg.Update(func(c *domain.Config) {
		c.DownloadPath = dir
	}))

	body, _ := json.Marshal(map[string]string{"url": server.URL + "/dl/1", "title": "Ubuntu 24.04"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	saved, err := os.ReadFile(filepath.Join(dir, "Ubuntu 24.04.torrent"))
	require.NoError(t, err)
	assert.Equal(t, payload, saved)

	logs, err := stores.downloads.Recent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "file", logs[0].DownloadType)
}

func TestDownload_RejectsNonTorrentPayload(t *testing.T) {
	router, cfg, _ := newDownloadFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>ratelimited</html>"))
	}))
	t.Cleanup(server.Close)

	require.NoError(t, cfg.Update(func(c *domain.Config) {
		c.DownloadPath = t.TempDir()
	}))

	body, _ := json.Marshal(map[string]string{"url": server.URL, "title": "x"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDownload_NoClientNoPath(t *testing.T) {
	router, _, _ := newDownloadFixture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"magnet:?xt=urn:btih:abc","title":"x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTorrentMeta_FromMagnet(t *testing.T) {
	router, _, _ := newDownloadFixture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/torrent/meta", strings.NewReader(`{"url":"magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=ubuntu-24.04"}`)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TorrentMetaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ubuntu-24.04", resp.Name)
	assert.Equal(t, "c9e15763f722f23e98a29decdfae341b98d53056", resp.InfoHash)
}

func TestTorrentMeta_FromTorrentFile(t *testing.T) {
	router, _, _ := newDownloadFixture(t)

	payload := testTorrentBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	t.Cleanup(server.Close)

	body, _ := json.Marshal(map[string]string{"url": server.URL + "/file.torrent"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/torrent/meta", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TorrentMetaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ubuntu-24.04.iso", resp.Name)
	assert.Equal(t, int64(1048576), resp.Size)
	assert.Equal(t, 1, resp.Files)
	assert.Len(t, resp.InfoHash, 40)
}

func TestTorrentMeta_InvalidPayload(t *testing.T) {
	router, _, _ := newDownloadFixture(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a torrent"))
	}))
	t.Cleanup(server.Close)

	body, _ := json.Marshal(map[string]string{"url": server.URL})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/torrent/meta", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a_b_c", sanitizeFilename("a/b\\c"))
	assert.Equal(t, "Show S01E01 1080p", sanitizeFilename("Show S01E01 1080p"))
	assert.Equal(t, "download", sanitizeFilename("   "))
}
