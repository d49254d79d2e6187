// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// SearchType mirrors the Torznab "t" parameter.
type SearchType string

const (
	SearchTypeSearch SearchType = "search"
	SearchTypeTV     SearchType = "tvsearch"
	SearchTypeMovie  SearchType = "movie"
	SearchTypeMusic  SearchType = "music"
	SearchTypeBook   SearchType = "book"
)

// ParseSearchType maps a Torznab t parameter to a SearchType.
func ParseSearchType(t string) (SearchType, bool) {
	switch strings.ToLower(t) {
	case "search":
		return SearchTypeSearch, true
	case "tvsearch":
		return SearchTypeTV, true
	case "movie":
		return SearchTypeMovie, true
	case "music":
		return SearchTypeMusic, true
	case "book":
		return SearchTypeBook, true
	default:
		return SearchTypeSearch, false
	}
}

// SearchQuery carries everything a Torznab search request can express.
// Pointer fields distinguish "absent" from zero values so templates can
// test them with {{ if .Query.Season }}.
type SearchQuery struct {
	Type SearchType `json:"search_type"`

	Query      string `json:"query,omitempty"`
	Categories []int  `json:"categories,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
	Offset     *int   `json:"offset,omitempty"`

	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
	IMDBID  string `json:"imdb_id,omitempty"`
	TVDBID  *int   `json:"tvdb_id,omitempty"`
	TMDBID  *int   `json:"tmdb_id,omitempty"`
	TVMaze  *int   `json:"tvmaze_id,omitempty"`
	TraktID *int   `json:"trakt_id,omitempty"`
	Douban  *int   `json:"douban_id,omitempty"`

	Year  *int   `json:"year,omitempty"`
	Genre string `json:"genre,omitempty"`

	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Label  string `json:"label,omitempty"`
	Track  string `json:"track,omitempty"`

	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Publisher string `json:"publisher,omitempty"`
}

// TextSearch builds a plain free-text query.
func TextSearch(q string) SearchQuery {
	return SearchQuery{Type: SearchTypeSearch, Query: q}
}

// Keywords returns the free-text portion of the query.
func (q SearchQuery) Keywords() string {
	return q.Query
}

// ResultLimit returns the effective limit, clamped to the Torznab maximum.
func (q SearchQuery) ResultLimit(defaultLimit int) int {
	if q.Limit == nil || *q.Limit <= 0 {
		return defaultLimit
	}
	if *q.Limit > defaultLimit {
		return defaultLimit
	}
	return *q.Limit
}

// Page derives the 1-based page number from limit and offset.
func (q SearchQuery) Page() int {
	if q.Limit != nil && q.Offset != nil && *q.Limit > 0 {
		return (*q.Offset / *q.Limit) + 1
	}
	return 1
}

// IMDBIDShort strips the tt prefix from the IMDB id.
func (q SearchQuery) IMDBIDShort() string {
	return strings.TrimPrefix(q.IMDBID, "tt")
}
