// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/zeebo/bencode"

	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/models"
	"github.com/autobrr/searchbrr/internal/torznab"
)

// TorznabHandler serves the Torznab-compatible endpoints under /api/v2.0
// plus the JSON search and indexer listing the web UI uses.
type TorznabHandler struct {
	manager    *indexer.Manager
	aggregator *indexer.Aggregator
	downloads  *models.DownloadLogStore
	cfg        *config.AppConfig
	log        zerolog.Logger
}

// NewTorznabHandler creates a new Torznab handler.
func NewTorznabHandler(manager *indexer.Manager, aggregator *indexer.Aggregator, downloads *models.DownloadLogStore, cfg *config.AppConfig, logger zerolog.Logger) *TorznabHandler {
	return &TorznabHandler{
		manager:    manager,
		aggregator: aggregator,
		downloads:  downloads,
		cfg:        cfg,
		log:        logger.With().Str("component", "torznab-api").Logger(),
	}
}

// Routes registers the Torznab routes on the given router.
func (h *TorznabHandler) Routes(r chi.Router) {
	r.Get("/indexers", h.ListIndexers)
	r.Get("/search", h.SearchJSON)
	r.Get("/indexers/{indexer}/results/torznab", h.Torznab)
	// Some clients append /api to the configured feed URL.
	r.Get("/indexers/{indexer}/results/torznab/api", h.Torznab)
	r.Get("/indexers/{indexer}/dl", h.Download)
	r.Get("/indexers/{indexer}/caps", h.ProxiedCaps)
}

// IndexerInfo is one row of the indexer listing.
type IndexerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

// ListIndexers returns every configured indexer, native and proxied.
func (h *TorznabHandler) ListIndexers(w http.ResponseWriter, r *http.Request) {
	var out []IndexerInfo
	for _, idx := range h.manager.AllNative() {
		out = append(out, IndexerInfo{
			ID:      idx.ID(),
			Name:    idx.Name(),
			Kind:    string(indexer.KindNative),
			Enabled: h.cfg.Config.IsIndexerEnabled(idx.ID()),
		})
	}
	for _, idx := range h.manager.AllProxied() {
		out = append(out, IndexerInfo{
			ID:      idx.ID(),
			Name:    idx.Name(),
			Kind:    string(indexer.KindProxied),
			Enabled: h.cfg.Config.IsIndexerEnabled(idx.ID()),
		})
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"indexers": out,
		"total":    len(out),
	})
}

// SearchJSON fans a query out over the proxied indexers and returns the
// merged results as JSON.
func (h *TorznabHandler) SearchJSON(w http.ResponseWriter, r *http.Request) {
	query := queryFromParams(r)
	target := r.URL.Query().Get("indexer")
	if target == "" {
		target = indexer.AllIndexers
	}

	var indexers []indexer.Indexer
	if target == indexer.AllIndexers {
		for _, idx := range h.manager.AllProxied() {
			if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
				indexers = append(indexers, idx)
			}
		}
	} else {
		idx, ok := h.manager.Proxied(target)
		if !ok {
			RespondError(w, http.StatusNotFound, "Indexer not found")
			return
		}
		indexers = append(indexers, idx)
	}

	results, err := h.aggregator.SearchSingleFlight(r.Context(), indexer.KindProxied, target, indexers, query)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"results": resultsToJSON(results),
		"total":   len(results),
	})
}

// Torznab is the t-dispatched Torznab endpoint: caps, search, tvsearch,
// movie, music and book. The indexer path segment is a native definition
// id or "all" for the full native+proxied aggregate.
func (h *TorznabHandler) Torznab(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "indexer")

	t := r.URL.Query().Get("t")
	if t == "" {
		t = "search"
	}

	if t == "caps" {
		h.caps(w, r, target)
		return
	}

	searchType, ok := domain.ParseSearchType(t)
	if !ok {
		doc, _ := torznab.Marshal(torznab.NewError(torznab.CodeUnknownAction, "Unknown action"))
		RespondXML(w, http.StatusBadRequest, doc)
		return
	}

	query := queryFromParams(r)
	query.Type = searchType

	kind := indexer.KindNative
	var indexers []indexer.Indexer
	indexerName := target

	if target == indexer.AllIndexers {
		kind = indexer.KindTorznab
		indexerName = "All Indexers"
		for _, idx := range h.manager.AllNative() {
			if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
				indexers = append(indexers, idx)
			}
		}
		for _, idx := range h.manager.AllProxied() {
			if h.cfg.Config.IsIndexerEnabled(idx.ID()) {
				indexers = append(indexers, idx)
			}
		}
	} else {
		idx, ok := h.manager.Native(target)
		if !ok {
			h.respondIndexerNotFound(w)
			return
		}
		indexerName = idx.Name()
		indexers = append(indexers, idx)
	}

	// A failing indexer yields an empty feed, not a Torznab error; the
	// arr clients treat errors as indexer outages.
	results, err := h.aggregator.SearchSingleFlight(r.Context(), kind, target, indexers, query)
	if err != nil {
		h.log.Warn().Err(err).Str("indexer", target).Msg("torznab search failed")
		results = nil
	}

	doc, err := torznab.Marshal(torznab.NewResults(indexerName, requestBaseURL(r), target, results))
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to render feed")
		return
	}
	RespondXML(w, http.StatusOK, doc)
}

func (h *TorznabHandler) caps(w http.ResponseWriter, r *http.Request, target string) {
	var name string
	var categories []int

	if target == indexer.AllIndexers {
		name = "All Indexers"
		for _, cat := range domain.Categories {
			categories = append(categories, cat.ID)
		}
	} else {
		idx, ok := h.manager.Native(target)
		if !ok {
			h.respondIndexerNotFound(w)
			return
		}
		name = idx.Name()
		categories = idx.Definition().ExtractCategories()
	}

	doc, err := torznab.Marshal(torznab.NewCaps(name, categories))
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to render caps")
		return
	}
	RespondXML(w, http.StatusOK, doc)
}

func (h *TorznabHandler) respondIndexerNotFound(w http.ResponseWriter) {
	doc, _ := torznab.Marshal(torznab.NewError(torznab.CodeIndexerNotFound, "Incorrect user credentials or indexer not found"))
	RespondXML(w, http.StatusNotFound, doc)
}

// Download resolves a wrapped /dl link back into a torrent payload.
// Magnets redirect straight to the client; everything else is fetched
// through the indexer so cookies and multi-step resolution apply.
func (h *TorznabHandler) Download(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "indexer")
	link := torznab.UnwrapDownloadLink(r.URL.Query().Get("link"))
	if link == "" {
		RespondError(w, http.StatusBadRequest, "Missing link parameter")
		return
	}

	if domain.IsMagnet(link) {
		h.logDownload(r, link, "", models.DownloadTypeMagnet, "")
		w.Header().Set("Location", link)
		w.WriteHeader(http.StatusTemporaryRedirect)
		return
	}

	if proxied, ok := h.manager.Proxied(target); ok {
		payload, err := proxied.Client().Download(r.Context(), link)
		if err == nil {
			h.logDownload(r, "", link, models.DownloadTypeFile, target)
			serveTorrent(w, payload)
			return
		}
		h.log.Warn().Err(err).Str("indexer", target).Msg("proxied download failed, trying native")
	}

	if native, ok := h.manager.Native(target); ok {
		payload, err := native.Download(r.Context(), link)
		if err != nil {
			h.log.Error().Err(err).Str("indexer", target).Msg("native download failed")
			RespondError(w, http.StatusBadGateway, "Download failed")
			return
		}
		// Multi-step download selectors can resolve to a magnet.
		if len(payload) < 2048 && domain.IsMagnet(string(payload)) {
			h.logDownload(r, string(payload), "", models.DownloadTypeMagnet, target)
			w.Header().Set("Location", string(payload))
			w.WriteHeader(http.StatusTemporaryRedirect)
			return
		}
		if !looksLikeTorrent(payload) {
			h.log.Error().Str("indexer", target).Msg("download payload is not a torrent")
			RespondError(w, http.StatusBadGateway, "Download failed")
			return
		}
		h.logDownload(r, "", link, models.DownloadTypeFile, target)
		serveTorrent(w, payload)
		return
	}

	RespondError(w, http.StatusNotFound, "Indexer not found")
}

// ProxiedCaps fetches the upstream capabilities of a proxied indexer and
// returns them as JSON.
func (h *TorznabHandler) ProxiedCaps(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "indexer")
	idx, ok := h.manager.Proxied(target)
	if !ok {
		RespondError(w, http.StatusNotFound, "Indexer not found")
		return
	}

	caps, err := idx.Client().Caps(r.Context())
	if err != nil {
		RespondError(w, http.StatusBadGateway, "Failed to fetch caps")
		return
	}
	RespondJSON(w, http.StatusOK, caps)
}

func (h *TorznabHandler) logDownload(r *http.Request, magnet, link, downloadType, indexerID string) {
	if h.downloads == nil {
		return
	}
	title := r.URL.Query().Get("file")
	if title == "" {
		title = indexerID
	}
	entry := &models.DownloadLog{
		Title:        title,
		Magnet:       magnet,
		DownloadLink: link,
		DownloadType: downloadType,
	}
	if err := h.downloads.Create(r.Context(), entry); err != nil {
		h.log.Warn().Err(err).Msg("failed to write download log")
	}
}

func serveTorrent(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/x-bittorrent")
	w.Header().Set("Content-Disposition", `attachment; filename="download.torrent"`)
	_, _ = w.Write(payload)
}

// looksLikeTorrent checks the payload decodes as a bencoded dictionary,
// catching trackers that serve an HTML error page with status 200.
func looksLikeTorrent(payload []byte) bool {
	var doc map[string]bencode.RawMessage
	return bencode.DecodeBytes(payload, &doc) == nil
}

// requestBaseURL rebuilds the externally visible server URL for /dl
// wrapping from the request the client just made.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// queryFromParams maps the Torznab query parameters onto a SearchQuery.
func queryFromParams(r *http.Request) domain.SearchQuery {
	params := r.URL.Query()
	query := domain.SearchQuery{
		Type:   domain.SearchTypeSearch,
		Query:  params.Get("q"),
		IMDBID: params.Get("imdbid"),
		Genre:  params.Get("genre"),
		Artist: params.Get("artist"),
		Album:  params.Get("album"),
		Label:  params.Get("label"),
		Track:  params.Get("track"),
		Title:  params.Get("title"),
		Author: params.Get("author"),
	}

	if cat := params.Get("cat"); cat != "" {
		for _, part := range strings.Split(cat, ",") {
			if id, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				query.Categories = append(query.Categories, id)
			}
		}
	}

	query.Season = intParam(params.Get("season"))
	query.Episode = intParam(params.Get("ep"))
	query.TVDBID = intParam(params.Get("tvdbid"))
	query.TMDBID = intParam(params.Get("tmdbid"))
	query.Year = intParam(params.Get("year"))
	query.Limit = intParam(params.Get("limit"))
	query.Offset = intParam(params.Get("offset"))

	return query
}

func intParam(value string) *int {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

// SearchResult is one row of the JSON search responses.
type SearchResult struct {
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	Magnet      string `json:"magnet,omitempty"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	Indexer     string `json:"indexer"`
	IndexerID   string `json:"indexer_id"`
	PublishDate string `json:"publish_date,omitempty"`
	Categories  []int  `json:"categories,omitempty"`
	Comments    string `json:"comments,omitempty"`
	GUID        string `json:"guid"`
}

func resultsToJSON(results []*domain.TorrentResult) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		row := SearchResult{
			Title:      r.Title,
			Link:       r.Link,
			Magnet:     r.Magnet,
			Seeders:    r.SeederCount(),
			Indexer:    r.Indexer,
			IndexerID:  r.Indexer,
			Categories: r.Categories,
			Comments:   r.Details,
			GUID:       r.GUID,
		}
		if r.Size != nil {
			row.Size = *r.Size
		}
		if r.Leechers != nil {
			row.Leechers = *r.Leechers
		}
		if r.PublishDate != nil {
			row.PublishDate = r.PublishDate.Format(time.RFC3339)
		}
		out = append(out, row)
	}
	return out
}
