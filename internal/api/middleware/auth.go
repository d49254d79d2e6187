// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/models"
)

// RequireAPIKey validates the X-API-Key header against the key store.
// An instance with no keys created yet is open, so first-run setup and
// local use work before `searchbrr apikey create` has been run.
func RequireAPIKey(store *models.APIKeyStore, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keys, err := store.List(r.Context())
			if err != nil {
				log.Error().Err(err).Msg("failed to list API keys")
				unauthorized(w)
				return
			}
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				unauthorized(w)
				return
			}

			apiKey, err := store.ValidateAPIKey(r.Context(), rawKey)
			if err != nil {
				if !errors.Is(err, models.ErrInvalidAPIKey) {
					log.Error().Err(err).Msg("API key validation failed")
				}
				unauthorized(w)
				return
			}

			// Last-used bookkeeping must not hold up the request.
			go func(id int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.UpdateLastUsed(ctx, id); err != nil {
					log.Debug().Err(err).Int("id", id).Msg("failed to update API key last used")
				}
			}(apiKey.ID)

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
