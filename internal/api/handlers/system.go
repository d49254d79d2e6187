// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/buildinfo"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/models"
)

const recentSearchCount = 20

// SystemHandler serves instance info, runtime stats and the search
// history endpoints.
type SystemHandler struct {
	manager    *indexer.Manager
	cfg        *config.AppConfig
	searchLogs *models.SearchLogStore
	cache      *models.SearchCacheStore
	startedAt  time.Time
	log        zerolog.Logger
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(manager *indexer.Manager, cfg *config.AppConfig, searchLogs *models.SearchLogStore, cache *models.SearchCacheStore, startedAt time.Time, logger zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		manager:    manager,
		cfg:        cfg,
		searchLogs: searchLogs,
		cache:      cache,
		startedAt:  startedAt,
		log:        logger.With().Str("component", "system-api").Logger(),
	}
}

// Routes registers the system routes on the given router.
func (h *SystemHandler) Routes(r chi.Router) {
	r.Get("/info", h.Info)
	r.Get("/stats", h.Stats)
	r.Get("/history", h.History)
	r.Get("/history/{key}", h.HistoryEntry)
}

// Info identifies the instance.
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"name":    "searchbrr",
		"version": buildinfo.Version,
	})
}

// StatsResponse is the /stats document.
type StatsResponse struct {
	IndexersLoaded  int     `json:"indexers_loaded"`
	IndexersHealthy int     `json:"indexers_healthy"`
	IndexersNative  int     `json:"indexers_native"`
	IndexersProxied int     `json:"indexers_proxied"`
	IndexersEnabled int     `json:"indexers_enabled"`
	UptimeSeconds   int64   `json:"uptime_seconds"`
	TotalSearches   int     `json:"total_searches"`
	AvgSearchTimeMs float64 `json:"avg_search_time_ms"`

	RecentSearches []*models.SearchLog `json:"recent_searches"`
}

// Stats reports indexer counts, uptime and search activity.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	nativeCount, proxiedCount := h.manager.Counts()

	enabled := 0
	for _, idx := range h.manager.AllNative() {
		if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
			enabled++
		}
	}
	for _, idx := range h.manager.AllProxied() {
		if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
			enabled++
		}
	}

	resp := StatsResponse{
		IndexersLoaded:  nativeCount + proxiedCount,
		IndexersHealthy: enabled,
		IndexersNative:  nativeCount,
		IndexersProxied: proxiedCount,
		IndexersEnabled: enabled,
		UptimeSeconds:   int64(time.Since(h.startedAt).Seconds()),
		RecentSearches:  []*models.SearchLog{},
	}

	if stats, err := h.searchLogs.Stats(r.Context()); err == nil {
		resp.TotalSearches = stats.TotalSearches
		resp.AvgSearchTimeMs = stats.AvgSearchTimeMs
	} else {
		h.log.Warn().Err(err).Msg("failed to read search stats")
	}

	if recent, err := h.searchLogs.Recent(r.Context(), recentSearchCount); err == nil {
		resp.RecentSearches = recent
	} else {
		h.log.Warn().Err(err).Msg("failed to read recent searches")
	}

	RespondJSON(w, http.StatusOK, resp)
}

// History lists the cached result sets: fingerprint, payload size and
// expiry, newest first.
func (h *SystemHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.List(r.Context(), 100)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// HistoryEntry returns one cached result payload by fingerprint. The key
// arrives URL-escaped since fingerprints contain colons.
func (h *SystemHandler) HistoryEntry(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}

	payload, err := h.cache.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrCacheMiss) {
			RespondError(w, http.StatusNotFound, "History entry not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, "Failed to read history entry")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}
