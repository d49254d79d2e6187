// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"time"
)

// TorrentResult is a single search result. The JSON field names are part of
// the cache format, so cached result sets written by earlier versions keep
// decoding.
type TorrentResult struct {
	Title       string     `json:"Title"`
	GUID        string     `json:"Guid"`
	Link        string     `json:"Link,omitempty"`
	Details     string     `json:"Comments,omitempty"`
	Magnet      string     `json:"Magnet,omitempty"`
	PublishDate *time.Time `json:"PublishDate,omitempty"`
	Categories  []int      `json:"Category,omitempty"`
	Size        *int64     `json:"Size,omitempty"`
	Files       *int       `json:"Files,omitempty"`
	Grabs       *int       `json:"Grabs,omitempty"`
	Seeders     *int       `json:"Seeders,omitempty"`
	Leechers    *int       `json:"Peers,omitempty"`
	InfoHash    string     `json:"InfoHash,omitempty"`

	IMDBID string `json:"ImdbId,omitempty"`
	TMDBID *int   `json:"TmdbId,omitempty"`
	TVDBID *int   `json:"TvdbId,omitempty"`

	Uploader        string   `json:"Uploader,omitempty"`
	MinimumRatio    *float64 `json:"MinimumRatio,omitempty"`
	MinimumSeedTime *int64   `json:"MinimumSeedTime,omitempty"`

	DownloadVolumeFactor *float64 `json:"DownloadVolumeFactor,omitempty"`
	UploadVolumeFactor   *float64 `json:"UploadVolumeFactor,omitempty"`

	// Indexer is the id of the indexer that produced this result, set by the
	// aggregator before merging.
	Indexer string `json:"Indexer,omitempty"`

	Flags       []string `json:"Flags,omitempty"`
	Description string   `json:"Description,omitempty"`
	Genre       string   `json:"Genre,omitempty"`
	Poster      string   `json:"Poster,omitempty"`
}

// SeederCount returns the seeder count for ordering, treating unknown as 0.
func (r *TorrentResult) SeederCount() int {
	if r.Seeders == nil {
		return 0
	}
	return *r.Seeders
}

// DownloadLink returns the best candidate for fetching the torrent payload,
// preferring the magnet URI over the torrent file link.
func (r *TorrentResult) DownloadLink() string {
	if r.Magnet != "" {
		return r.Magnet
	}
	return r.Link
}

// IsMagnet reports whether a link is a magnet URI.
func IsMagnet(link string) bool {
	return strings.HasPrefix(strings.ToLower(link), "magnet:")
}
