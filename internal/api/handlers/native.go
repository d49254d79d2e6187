// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/catalog"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/native"
)

// NativeHandler manages the native definition lifecycle: browsing the
// remote catalog, installing and removing definitions, per-definition
// settings and test searches.
type NativeHandler struct {
	manager    *indexer.Manager
	aggregator *indexer.Aggregator
	catalog    *catalog.Service
	cfg        *config.AppConfig
	reload     func() error
	log        zerolog.Logger
}

// NewNativeHandler creates a new native indexer handler. reload rebuilds
// the manager's native set after install, removal or settings changes.
func NewNativeHandler(manager *indexer.Manager, aggregator *indexer.Aggregator, catalogSvc *catalog.Service, cfg *config.AppConfig, reload func() error, logger zerolog.Logger) *NativeHandler {
	return &NativeHandler{
		manager:    manager,
		aggregator: aggregator,
		catalog:    catalogSvc,
		cfg:        cfg,
		reload:     reload,
		log:        logger.With().Str("component", "native-api").Logger(),
	}
}

// Routes registers the native indexer routes on the given router.
func (h *NativeHandler) Routes(r chi.Router) {
	r.Get("/list", h.List)
	r.Post("/refresh", h.Refresh)
	r.Get("/local", h.Local)
	r.Post("/download", h.Download)
	r.Post("/delete", h.Delete)
	r.Delete("/delete/{id}", h.DeleteByID)
	r.Get("/search", h.Search)
	r.Get("/{id}/settings", h.GetSettings)
	r.Put("/{id}/settings", h.PutSettings)
	r.Post("/{id}/test", h.Test)
}

// CatalogEntry is one row of the remote definitions listing.
type CatalogEntry struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
}

// List returns the remote definitions catalog, filtered by ?q=.
func (h *NativeHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		RespondError(w, http.StatusBadGateway, "Failed to fetch definitions catalog")
		return
	}

	out := make([]CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, CatalogEntry{Name: entry.Name, Installed: entry.Active})
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"indexers": out,
		"total":    len(out),
	})
}

// Refresh re-fetches the remote catalog listing.
func (h *NativeHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	entries, err := h.catalog.Refresh(r.Context())
	if err != nil {
		RespondError(w, http.StatusBadGateway, "Failed to refresh definitions catalog")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"total": len(entries)})
}

// LocalIndexer is one installed definition in the /local listing.
type LocalIndexer struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	IndexerType string   `json:"indexer_type,omitempty"`
	Links       []string `json:"links,omitempty"`
	LegacyLinks []string `json:"legacylinks,omitempty"`
	Categories  []int    `json:"categories,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// Local returns the installed definitions with their parsed metadata.
func (h *NativeHandler) Local(w http.ResponseWriter, r *http.Request) {
	var out []LocalIndexer
	for _, idx := range h.manager.AllNative() {
		def := idx.Definition()
		out = append(out, LocalIndexer{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Language:    def.Language,
			IndexerType: def.Type,
			Links:       def.Links,
			LegacyLinks: def.LegacyLinks,
			Categories:  def.ExtractCategories(),
			Enabled:     h.cfg.Config.IsIndexerEnabled(def.ID),
		})
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"indexers": out,
		"total":    len(out),
	})
}

type downloadDefinitionRequest struct {
	Name string `json:"name"`
}

// Download installs a definition: fetch it from the catalog, activate it
// and reload the native set.
func (h *NativeHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadDefinitionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		RespondError(w, http.StatusBadRequest, "Missing definition name")
		return
	}

	entry, err := h.catalog.Lookup(r.Context(), req.Name)
	if err != nil {
		RespondError(w, http.StatusNotFound, "Definition not found")
		return
	}

	name, err := h.catalog.Download(r.Context(), entry)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("definition download failed")
		RespondError(w, http.StatusBadGateway, "Failed to download definition")
		return
	}
	if err := h.catalog.Activate(name); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to activate definition")
		return
	}
	h.reloadNative()

	RespondJSON(w, http.StatusOK, map[string]any{
		"name":      name,
		"installed": true,
	})
}

type deleteDefinitionRequest struct {
	Name string `json:"name"`
}

// Delete removes an installed definition by name from the request body.
func (h *NativeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteDefinitionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	h.deactivate(w, req.Name)
}

// DeleteByID removes an installed definition named in the URL.
func (h *NativeHandler) DeleteByID(w http.ResponseWriter, r *http.Request) {
	h.deactivate(w, chi.URLParam(r, "id"))
}

func (h *NativeHandler) deactivate(w http.ResponseWriter, name string) {
	if name == "" {
		RespondError(w, http.StatusBadRequest, "Missing definition name")
		return
	}
	if err := h.catalog.Deactivate(name); err != nil {
		RespondError(w, http.StatusNotFound, "Definition not installed")
		return
	}
	h.reloadNative()

	RespondJSON(w, http.StatusOK, map[string]any{"deleted": name})
}

// Search fans a query out over the enabled native indexers (or one of
// them via ?indexer=) and returns the merged results as JSON.
func (h *NativeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := queryFromParams(r)
	target := r.URL.Query().Get("indexer")
	if target == "" {
		target = indexer.AllIndexers
	}

	var indexers []indexer.Indexer
	if target == indexer.AllIndexers {
		for _, idx := range h.manager.AllNative() {
			if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
				indexers = append(indexers, idx)
			}
		}
	} else {
		idx, ok := h.manager.Native(target)
		if !ok {
			RespondError(w, http.StatusNotFound, "Indexer not found")
			return
		}
		indexers = append(indexers, idx)
	}

	results, err := h.aggregator.SearchSingleFlight(r.Context(), indexer.KindNative, target, indexers, query)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"results": resultsToJSON(results),
		"total":   len(results),
	})
}

// SettingField is one user-configurable definition setting.
type SettingField struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Label   string            `json:"label,omitempty"`
	Default string            `json:"default,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// GetSettings returns the declared settings of a definition together
// with the effective values (saved overrides on top of defaults).
func (h *NativeHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, ok := h.manager.Native(id)
	if !ok {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}
	def := idx.Definition()

	fields := make([]SettingField, 0, len(def.Settings))
	for _, s := range def.Settings {
		fields = append(fields, SettingField{
			Name:    s.Name,
			Type:    s.Type,
			Label:   s.Label,
			Default: s.DefaultValue(),
			Options: s.Options,
		})
	}

	values := def.DefaultConfig()
	for k, v := range h.cfg.Config.NativeSettings[id] {
		values[k] = v
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"settings": fields,
		"values":   values,
	})
}

// PutSettings persists setting overrides for a definition and reloads
// the native set so they take effect.
func (h *NativeHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.manager.Native(id); !ok {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}

	var values map[string]string
	if !DecodeJSON(w, r, &values) {
		return
	}

	err := h.cfg.Update(func(c *domain.Config) {
		if c.NativeSettings == nil {
			c.NativeSettings = make(map[string]map[string]string)
		}
		c.NativeSettings[id] = values
	})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	h.reloadNative()

	RespondJSON(w, http.StatusOK, map[string]any{"saved": true})
}

type testIndexerRequest struct {
	Query    string            `json:"query"`
	Settings map[string]string `json:"settings"`
}

// TestResponse reports the outcome of a test search.
type TestResponse struct {
	Success    bool   `json:"success"`
	Results    int    `json:"results"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Test runs a search against one definition, with the payload settings
// when given and the saved ones otherwise.
func (h *NativeHandler) Test(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, ok := h.manager.Native(id)
	if !ok {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}

	var req testIndexerRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	settings := req.Settings
	if settings == nil {
		settings = h.cfg.Config.NativeSettings[id]
	}

	executor, err := native.NewExecutor(h.cfg.Config.ProxyURL, h.log)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to create executor")
		return
	}
	probe := indexer.NewNativeIndexer(idx.Definition(), executor, settings, h.log)

	start := time.Now()
	query := domain.TextSearch(req.Query)
	results, err := probe.Search(r.Context(), query)
	resp := TestResponse{
		Success:    err == nil,
		Results:    len(results),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (h *NativeHandler) reloadNative() {
	if h.reload == nil {
		return
	}
	if err := h.reload(); err != nil {
		h.log.Error().Err(err).Msg("failed to reload native indexers")
	}
}
