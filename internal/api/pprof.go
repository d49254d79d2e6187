// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// mountPprof exposes the runtime profiling endpoints on the main router.
// Only wired when pprofEnabled is set; the routes sit in front of the
// API key middleware, so keep the instance on a trusted network when
// profiling.
func mountPprof(r chi.Router) {
	r.HandleFunc("/debug/pprof/*", func(w http.ResponseWriter, req *http.Request) {
		http.DefaultServeMux.ServeHTTP(w, req)
	})
}
