// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/buildinfo"
	"github.com/autobrr/searchbrr/internal/clients"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/models"
)

const maxTorrentPayload = 32 << 20 // 32 MiB

// DownloadHandler hands releases to the configured download client or
// saves them to the download directory, and inspects torrent metadata.
type DownloadHandler struct {
	cfg       *config.AppConfig
	downloads *models.DownloadLogStore
	client    *http.Client
	log       zerolog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(cfg *config.AppConfig, downloads *models.DownloadLogStore, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		cfg:       cfg,
		downloads: downloads,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       logger.With().Str("component", "download-api").Logger(),
	}
}

// Routes registers the download routes on the given router.
func (h *DownloadHandler) Routes(r chi.Router) {
	r.Post("/download", h.Download)
	r.Post("/torrent/meta", h.TorrentMeta)
}

type downloadRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Download sends a release to the configured download client, or writes
// it into the download directory when no client is set up.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		RespondError(w, http.StatusBadRequest, "Missing url")
		return
	}
	if req.Title == "" {
		req.Title = "download"
	}

	clientCfg := h.cfg.Config.DownloadClient
	if clientCfg.Client != "" {
		downloader, err := clients.New(clientCfg, h.log)
		if err != nil {
			RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := downloader.AddTorrent(r.Context(), req.URL); err != nil {
			h.log.Error().Err(err).Str("client", downloader.Name()).Msg("failed to add torrent")
			RespondError(w, http.StatusBadGateway, "Download client rejected the torrent")
			return
		}
		h.logDownload(r, req, models.DownloadTypeClient, downloader.Name())
		RespondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"sent_to": downloader.Name(),
		})
		return
	}

	dir := h.cfg.Config.DownloadPath
	if dir == "" {
		RespondError(w, http.StatusBadRequest, "No download client configured and no download path set")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to create download directory")
		return
	}

	if domain.IsMagnet(req.URL) {
		path := filepath.Join(dir, sanitizeFilename(req.Title)+".magnet")
		if err := os.WriteFile(path, []byte(req.URL), 0o644); err != nil {
			RespondError(w, http.StatusInternalServerError, "Failed to save magnet")
			return
		}
		h.logDownload(r, req, models.DownloadTypeMagnet, "")
		RespondJSON(w, http.StatusOK, map[string]any{"success": true, "path": path})
		return
	}

	payload, err := h.fetch(r, req.URL)
	if err != nil {
		h.log.Error().Err(err).Str("url", req.URL).Msg("torrent fetch failed")
		RespondError(w, http.StatusBadGateway, "Failed to fetch torrent")
		return
	}
	if !looksLikeTorrent(payload) {
		RespondError(w, http.StatusBadGateway, "Fetched payload is not a torrent")
		return
	}

	path := filepath.Join(dir, sanitizeFilename(req.Title)+".torrent")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		RespondError(w, http.StatusInternalServerError, "Failed to save torrent")
		return
	}
	h.logDownload(r, req, models.DownloadTypeFile, "")
	RespondJSON(w, http.StatusOK, map[string]any{"success": true, "path": path})
}

type torrentMetaRequest struct {
	URL string `json:"url"`
}

// TorrentMetaResponse describes a torrent without adding it anywhere.
type TorrentMetaResponse struct {
	Name     string `json:"name"`
	InfoHash string `json:"info_hash"`
	Size     int64  `json:"size,omitempty"`
	Files    int    `json:"files,omitempty"`
}

// TorrentMeta resolves a torrent URL or magnet into its metadata.
// Magnets carry only the name and infohash; torrent files are fetched
// and parsed in full.
func (h *DownloadHandler) TorrentMeta(w http.ResponseWriter, r *http.Request) {
	var req torrentMetaRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		RespondError(w, http.StatusBadRequest, "Missing url")
		return
	}

	if domain.IsMagnet(req.URL) {
		magnet, err := metainfo.ParseMagnetUri(req.URL)
		if err != nil {
			RespondError(w, http.StatusBadRequest, "Invalid magnet URI")
			return
		}
		RespondJSON(w, http.StatusOK, TorrentMetaResponse{
			Name:     magnet.DisplayName,
			InfoHash: magnet.InfoHash.HexString(),
		})
		return
	}

	payload, err := h.fetch(r, req.URL)
	if err != nil {
		h.log.Error().Err(err).Str("url", req.URL).Msg("torrent fetch failed")
		RespondError(w, http.StatusBadGateway, "Failed to fetch torrent")
		return
	}

	mi, err := metainfo.Load(bytes.NewReader(payload))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Payload is not a torrent")
		return
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Torrent info dictionary is invalid")
		return
	}

	RespondJSON(w, http.StatusOK, TorrentMetaResponse{
		Name:     info.BestName(),
		InfoHash: mi.HashInfoBytes().HexString(),
		Size:     info.TotalLength(),
		Files:    len(info.UpvertedFiles()),
	})
}

func (h *DownloadHandler) fetch(r *http.Request, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTorrentPayload))
}

func (h *DownloadHandler) logDownload(r *http.Request, req downloadRequest, downloadType, clientName string) {
	if h.downloads == nil {
		return
	}
	entry := &models.DownloadLog{
		Title:        req.Title,
		ClientName:   clientName,
		DownloadType: downloadType,
	}
	if domain.IsMagnet(req.URL) {
		entry.Magnet = req.URL
	} else {
		entry.DownloadLink = req.URL
	}
	if err := h.downloads.Create(r.Context(), entry); err != nil {
		h.log.Warn().Err(err).Msg("failed to write download log")
	}
}

// sanitizeFilename strips path separators and characters that are
// invalid on common filesystems.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
	)
	out := strings.TrimSpace(replacer.Replace(name))
	if out == "" {
		return "download"
	}
	return out
}
