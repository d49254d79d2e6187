// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/buildinfo"
	"github.com/autobrr/searchbrr/internal/clients"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/models"
	"github.com/autobrr/searchbrr/pkg/torznab"
)

// SettingsHandler manages the persisted configuration: proxied indexers,
// the download client, the outbound proxy and the cache/activity stores.
type SettingsHandler struct {
	cfg        *config.AppConfig
	manager    *indexer.Manager
	cache      *models.SearchCacheStore
	searchLogs *models.SearchLogStore
	reload     func() error
	log        zerolog.Logger
}

// NewSettingsHandler creates a new settings handler. reload rebuilds the
// indexer manager after config changes.
func NewSettingsHandler(cfg *config.AppConfig, manager *indexer.Manager, cache *models.SearchCacheStore, searchLogs *models.SearchLogStore, reload func() error, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		cfg:        cfg,
		manager:    manager,
		cache:      cache,
		searchLogs: searchLogs,
		reload:     reload,
		log:        logger.With().Str("component", "settings-api").Logger(),
	}
}

// Routes registers the settings routes on the given router.
func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/indexer", h.ListIndexers)
	r.Post("/indexer", h.AddIndexer)
	r.Post("/indexer/test", h.TestIndexer)
	r.Put("/indexer/{name}", h.EditIndexer)
	r.Delete("/indexer/{name}", h.DeleteIndexer)
	r.Put("/indexer/{name}/status", h.SetIndexerStatus)
	r.Get("/download", h.GetDownloadClient)
	r.Post("/download", h.SetDownloadClient)
	r.Post("/download/test", h.TestDownloadClient)
	r.Get("/proxy", h.GetProxy)
	r.Post("/proxy", h.SetProxy)
	r.Post("/cache/clear", h.ClearCache)
	r.Post("/activity/clear", h.ClearActivity)
}

// ListIndexers returns the configured proxied indexers with their API
// keys redacted.
func (h *SettingsHandler) ListIndexers(w http.ResponseWriter, r *http.Request) {
	stored := h.cfg.Config.Indexers
	out := make([]domain.ProxiedIndexer, len(stored))
	for i, idx := range stored {
		idx.APIKey = domain.RedactString(idx.APIKey)
		out[i] = idx
	}
	RespondJSON(w, http.StatusOK, out)
}

// AddIndexer registers a new proxied Torznab endpoint.
func (h *SettingsHandler) AddIndexer(w http.ResponseWriter, r *http.Request) {
	var req domain.ProxiedIndexer
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.URL == "" {
		RespondError(w, http.StatusBadRequest, "Name and URL are required")
		return
	}

	var conflict bool
	err := h.cfg.Update(func(c *domain.Config) {
		for _, existing := range c.Indexers {
			if strings.EqualFold(existing.Name, req.Name) {
				conflict = true
				return
			}
		}
		c.Indexers = append(c.Indexers, req)
	})
	if conflict {
		RespondError(w, http.StatusConflict, "Indexer already exists")
		return
	}
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save indexer")
		return
	}
	h.rebuild()

	RespondJSON(w, http.StatusCreated, req)
}

type testProxiedRequest struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// TestIndexer fetches the caps document of a Torznab endpoint to verify
// the URL and key before saving.
func (h *SettingsHandler) TestIndexer(w http.ResponseWriter, r *http.Request) {
	var req testProxiedRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		RespondError(w, http.StatusBadRequest, "URL is required")
		return
	}

	client := torznab.NewClient(torznab.Config{
		BaseURL:   req.URL,
		APIKey:    req.APIKey,
		UserAgent: buildinfo.UserAgent,
	})

	start := time.Now()
	_, err := client.Caps(r.Context())
	resp := TestResponse{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	RespondJSON(w, http.StatusOK, resp)
}

// EditIndexer updates a proxied indexer, renaming it when the payload
// name differs.
func (h *SettingsHandler) EditIndexer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req domain.ProxiedIndexer
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = name
	}

	var found, conflict bool
	err := h.cfg.Update(func(c *domain.Config) {
		idx := -1
		for i, existing := range c.Indexers {
			if strings.EqualFold(existing.Name, name) {
				idx = i
				continue
			}
			if strings.EqualFold(existing.Name, req.Name) {
				conflict = true
			}
		}
		if idx == -1 || conflict {
			return
		}
		found = true
		// A redacted key in the payload means "keep the stored one".
		if domain.IsRedactedValue(req.APIKey) {
			req.APIKey = c.Indexers[idx].APIKey
		}
		c.Indexers[idx] = req
	})
	if conflict {
		RespondError(w, http.StatusConflict, "Indexer name already in use")
		return
	}
	if !found {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save indexer")
		return
	}
	h.rebuild()

	RespondJSON(w, http.StatusOK, req)
}

// DeleteIndexer removes a proxied indexer.
func (h *SettingsHandler) DeleteIndexer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var found bool
	err := h.cfg.Update(func(c *domain.Config) {
		kept := c.Indexers[:0]
		for _, existing := range c.Indexers {
			if strings.EqualFold(existing.Name, name) {
				found = true
				continue
			}
			kept = append(kept, existing)
		}
		c.Indexers = kept
	})
	if !found {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save config")
		return
	}
	h.rebuild()

	RespondJSON(w, http.StatusOK, map[string]any{"deleted": name})
}

type indexerStatusRequest struct {
	Enabled bool `json:"enabled"`
}

// SetIndexerStatus toggles an indexer, native or proxied, on the
// disabled list.
func (h *SettingsHandler) SetIndexerStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req indexerStatusRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.cfg.Update(func(c *domain.Config) {
		kept := c.DisabledIndexers[:0]
		for _, disabled := range c.DisabledIndexers {
			if !strings.EqualFold(disabled, name) {
				kept = append(kept, disabled)
			}
		}
		c.DisabledIndexers = kept
		if !req.Enabled {
			c.DisabledIndexers = append(c.DisabledIndexers, name)
		}
	})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save config")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"enabled": req.Enabled,
	})
}

// GetDownloadClient returns the download client config with the password
// redacted.
func (h *SettingsHandler) GetDownloadClient(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfg.Config.DownloadClient
	cfg.QbitPassword = domain.RedactString(cfg.QbitPassword)
	RespondJSON(w, http.StatusOK, cfg)
}

// SetDownloadClient persists the download client config.
func (h *SettingsHandler) SetDownloadClient(w http.ResponseWriter, r *http.Request) {
	var req domain.DownloadClientConfig
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.cfg.Update(func(c *domain.Config) {
		if domain.IsRedactedValue(req.QbitPassword) {
			req.QbitPassword = c.DownloadClient.QbitPassword
		}
		c.DownloadClient = req
	})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save config")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{"saved": true})
}

// TestDownloadClient connects to the configured (or posted) download
// client and reports whether it answers.
func (h *SettingsHandler) TestDownloadClient(w http.ResponseWriter, r *http.Request) {
	req := h.cfg.Config.DownloadClient
	if !DecodeJSONOptional(w, r, &req) {
		return
	}
	if domain.IsRedactedValue(req.QbitPassword) {
		req.QbitPassword = h.cfg.Config.DownloadClient.QbitPassword
	}

	downloader, err := clients.New(req, h.log)
	if err != nil {
		RespondJSON(w, http.StatusOK, TestResponse{Success: false, Error: err.Error()})
		return
	}

	start := time.Now()
	err = downloader.TestConnection(r.Context())
	resp := TestResponse{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	RespondJSON(w, http.StatusOK, resp)
}

// GetProxy returns the outbound proxy URL.
func (h *SettingsHandler) GetProxy(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"proxy_url": h.cfg.Config.ProxyURL,
	})
}

type proxyRequest struct {
	ProxyURL string `json:"proxy_url"`
}

// SetProxy persists the outbound proxy URL and rebuilds the indexer
// manager so new executors route through it.
func (h *SettingsHandler) SetProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.cfg.Update(func(c *domain.Config) {
		c.ProxyURL = req.ProxyURL
	})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save config")
		return
	}

	h.manager.SetProxyURL(req.ProxyURL)
	h.rebuild()

	RespondJSON(w, http.StatusOK, map[string]any{"saved": true})
}

// ClearCache drops all cached search results.
func (h *SettingsHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.cache.Clear(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to clear cache")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// ClearActivity drops the search history.
func (h *SettingsHandler) ClearActivity(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.searchLogs.Clear(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to clear activity")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *SettingsHandler) rebuild() {
	if h.reload == nil {
		return
	}
	if err := h.reload(); err != nil {
		h.log.Error().Err(err).Msg("failed to rebuild indexer manager")
	}
}
