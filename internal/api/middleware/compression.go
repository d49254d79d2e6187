// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Algorithm is one negotiated content encoding.
type Algorithm int

const (
	AlgorithmNone Algorithm = iota
	AlgorithmGzip
	AlgorithmBrotli
	AlgorithmZstd
	AlgorithmDeflate
)

// compressibleType reports whether a Content-Type is worth compressing.
// Torrent payloads are already packed.
func compressibleType(contentType string) bool {
	return strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "application/rss+xml")
}

// compressionWriter buffers the response until the minimum size
// threshold is cleared, so the encoding decision (and the headers that
// go with it) happens before anything reaches the wire.
type compressionWriter struct {
	http.ResponseWriter
	algorithm Algorithm
	level     int
	minSize   int

	status  int
	buf     bytes.Buffer
	writer  io.Writer
	decided bool
}

func (w *compressionWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
}

func (w *compressionWriter) Write(data []byte) (int, error) {
	if w.decided {
		return w.writer.Write(data)
	}

	w.buf.Write(data)
	if w.buf.Len() >= w.minSize {
		if err := w.decide(true); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// decide commits to compressing or not, writes the deferred status and
// flushes the buffer through the chosen writer.
func (w *compressionWriter) decide(compress bool) error {
	w.decided = true

	if compress && compressibleType(w.Header().Get("Content-Type")) {
		if encoder := w.newEncoder(); encoder != nil {
			w.Header().Del("Content-Length")
			w.writer = encoder
		}
	}
	if w.writer == nil {
		w.writer = w.ResponseWriter
	}

	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(w.status)

	_, err := w.writer.Write(w.buf.Bytes())
	w.buf.Reset()
	return err
}

func (w *compressionWriter) newEncoder() io.Writer {
	switch w.algorithm {
	case AlgorithmZstd:
		encoder, err := zstd.NewWriter(w.ResponseWriter, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(w.level)))
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "zstd")
		return encoder
	case AlgorithmBrotli:
		w.Header().Set("Content-Encoding", "br")
		return brotli.NewWriterLevel(w.ResponseWriter, w.level)
	case AlgorithmGzip:
		gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "gzip")
		return gz
	case AlgorithmDeflate:
		fl, err := flate.NewWriter(w.ResponseWriter, w.level)
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "deflate")
		return fl
	}
	return nil
}

// close flushes a short undecided response uncompressed and finishes
// any open encoder stream.
func (w *compressionWriter) close() error {
	if !w.decided {
		return w.decide(false)
	}
	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (w *compressionWriter) Flush() {
	if !w.decided {
		_ = w.decide(w.buf.Len() >= w.minSize)
	}
	if flusher, ok := w.writer.(interface{ Flush() }); ok {
		flusher.Flush()
	} else if flusher, ok := w.writer.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// negotiateAlgorithm picks the best encoding the client accepts, best
// first: zstd, brotli, gzip, deflate.
func negotiateAlgorithm(acceptEncoding string) Algorithm {
	encodings := parseAcceptEncoding(acceptEncoding)

	switch {
	case encodings["zstd"] > 0:
		return AlgorithmZstd
	case encodings["br"] > 0:
		return AlgorithmBrotli
	case encodings["gzip"] > 0:
		return AlgorithmGzip
	case encodings["deflate"] > 0:
		return AlgorithmDeflate
	}
	return AlgorithmNone
}

// parseAcceptEncoding returns the quality value per encoding, expanding
// the * wildcard to every supported one.
func parseAcceptEncoding(header string) map[string]float64 {
	encodings := make(map[string]float64)

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		encoding := part
		qvalue := 1.0
		if idx := strings.Index(part, ";q="); idx != -1 {
			encoding = strings.TrimSpace(part[:idx])
			if q, err := strconv.ParseFloat(strings.TrimSpace(part[idx+3:]), 64); err == nil {
				qvalue = q
			}
		}

		if encoding == "*" {
			for _, e := range []string{"zstd", "br", "gzip", "deflate"} {
				if _, seen := encodings[e]; !seen {
					encodings[e] = qvalue
				}
			}
			continue
		}
		encodings[encoding] = qvalue
	}
	return encodings
}

// SelectiveCompress compresses responses above minSize bytes using the
// best encoding the client accepts. Small responses pass through
// untouched.
func SelectiveCompress(minSize, level int) func(http.Handler) http.Handler {
	if minSize < 0 {
		minSize = 1024
	}
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			algorithm := negotiateAlgorithm(r.Header.Get("Accept-Encoding"))
			if algorithm == AlgorithmNone {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Vary", "Accept-Encoding")

			wrapped := &compressionWriter{
				ResponseWriter: w,
				algorithm:      algorithm,
				level:          level,
				minSize:        minSize,
			}
			next.ServeHTTP(wrapped, r)
			_ = wrapped.close()
		})
	}
}
