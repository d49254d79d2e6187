// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressedServer(body string, contentType string) http.Handler {
	return SelectiveCompress(1024, 4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
}

func TestSelectiveCompress_GzipLargeJSON(t *testing.T) {
	t.Parallel()

	body := strings.Repeat(`{"title":"ubuntu-24.04-live-server-amd64"},`, 200)
	handler := compressedServer(body, "application/json")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestSelectiveCompress_PrefersZstd(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("<item><title>release</title></item>", 100)
	handler := compressedServer(body, "application/xml; charset=utf-8")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, zstd, br")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))

	dec, err := zstd.NewReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestSelectiveCompress_SkipsSmallResponses(t *testing.T) {
	t.Parallel()

	handler := compressedServer(`{"ok":true}`, "application/json")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}

func TestSelectiveCompress_SkipsBinaryContent(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("d8:announce0:e", 200)
	handler := compressedServer(body, "application/x-bittorrent")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())
}

func TestSelectiveCompress_NoAcceptEncoding(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 4096)
	handler := compressedServer(body, "text/plain")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, body, rec.Body.String())
}

func TestNegotiateAlgorithm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   Algorithm
	}{
		{"zstd, gzip", AlgorithmZstd},
		{"br, gzip", AlgorithmBrotli},
		{"gzip", AlgorithmGzip},
		{"deflate", AlgorithmDeflate},
		{"gzip;q=0", AlgorithmNone},
		{"*", AlgorithmZstd},
		{"identity", AlgorithmNone},
		{"", AlgorithmNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, negotiateAlgorithm(tt.header), "header %q", tt.header)
	}
}
