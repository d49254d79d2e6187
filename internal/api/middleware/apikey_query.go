// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package middleware carries the HTTP middleware shared by the API
// routes: authentication and response compression.
package middleware

import "net/http"

// APIKeyFromQuery promotes an API key query param into the X-API-Key header.
// Torznab clients (Sonarr, Radarr, Prowlarr) send the key as ?apikey=, so
// the Torznab routes mount this in front of the header-based check.
func APIKeyFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") == "" {
				if apiKey := r.URL.Query().Get(param); apiKey != "" {
					r.Header.Set("X-API-Key", apiKey)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
