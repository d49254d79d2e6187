// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package clients hands releases to download clients.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/domain"
)

// Client names accepted in DownloadClientConfig.Client.
const (
	ClientTorrServer  = "torrserver"
	ClientQBittorrent = "qbittorrent"
)

// Downloader adds releases to a torrent client.
type Downloader interface {
	Name() string
	AddTorrent(ctx context.Context, link string) error
	TestConnection(ctx context.Context) error
}

// New builds the configured downloader.
func New(cfg domain.DownloadClientConfig, logger zerolog.Logger) (Downloader, error) {
	switch strings.ToLower(cfg.Client) {
	case ClientTorrServer:
		if cfg.TorrServerURL == "" {
			return nil, fmt.Errorf("torrserver URL is not configured")
		}
		return NewTorrServer(cfg.TorrServerURL, logger), nil
	case ClientQBittorrent:
		if cfg.QbitURL == "" {
			return nil, fmt.Errorf("qbittorrent URL is not configured")
		}
		return NewQBittorrent(cfg.QbitURL, cfg.QbitUsername, cfg.QbitPassword, logger), nil
	case "":
		return nil, fmt.Errorf("no download client configured")
	default:
		return nil, fmt.Errorf("unknown download client %q", cfg.Client)
	}
}

// TorrServer speaks the TorrServer HTTP API.
type TorrServer struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewTorrServer(url string, logger zerolog.Logger) *TorrServer {
	return &TorrServer{
		url:    strings.TrimRight(url, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
		log:    logger.With().Str("client", ClientTorrServer).Logger(),
	}
}

func (t *TorrServer) Name() string { return ClientTorrServer }

type torrServerAddRequest struct {
	Action string `json:"action"`
	Link   string `json:"link"`
}

// AddTorrent posts the magnet or torrent URL to /torrents.
func (t *TorrServer) AddTorrent(ctx context.Context, link string) error {
	payload, err := json.Marshal(torrServerAddRequest{Action: "add", Link: link})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/torrents", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to torrserver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("torrserver returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	t.log.Debug().Str("link", link).Msg("added torrent to torrserver")
	return nil
}

// TestConnection hits /echo, which TorrServer answers with its version.
func (t *TorrServer) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url+"/echo", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to torrserver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("torrserver responded with status %d", resp.StatusCode)
	}
	return nil
}

// QBittorrent wraps the go-qbittorrent client. Login happens lazily on
// first use so constructing the adapter never blocks startup.
type QBittorrent struct {
	client *qbt.Client
	log    zerolog.Logger
}

func NewQBittorrent(url, username, password string, logger zerolog.Logger) *QBittorrent {
	return &QBittorrent{
		client: qbt.NewClient(qbt.Config{
			Host:     url,
			Username: username,
			Password: password,
			Timeout:  15,
		}),
		log: logger.With().Str("client", ClientQBittorrent).Logger(),
	}
}

func (q *QBittorrent) Name() string { return ClientQBittorrent }

// AddTorrent sends the magnet or torrent URL to qBittorrent.
func (q *QBittorrent) AddTorrent(ctx context.Context, link string) error {
	if err := q.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("failed to login to qbittorrent: %w", err)
	}

	if err := q.client.AddTorrentFromUrlCtx(ctx, link, map[string]string{}); err != nil {
		return fmt.Errorf("failed to add torrent: %w", err)
	}

	q.log.Debug().Str("link", link).Msg("added torrent to qbittorrent")
	return nil
}

// TestConnection logs in and reads the application version.
func (q *QBittorrent) TestConnection(ctx context.Context) error {
	if err := q.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("failed to login to qbittorrent: %w", err)
	}

	version, err := q.client.GetAppVersionCtx(ctx)
	if err != nil {
		return fmt.Errorf("failed to read qbittorrent version: %w", err)
	}
	if version == "" {
		return fmt.Errorf("qbittorrent returned an empty version")
	}
	return nil
}
