// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer manages the configured search sources: native YAML
// definitions executed by the in-process engine and proxied Torznab
// endpoints, plus the aggregation and caching layer over both.
package indexer

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/native"
	"github.com/autobrr/searchbrr/pkg/torznab"
)

// Kind distinguishes the two indexer families in cache fingerprints and
// API responses.
type Kind string

const (
	KindNative  Kind = "native"
	KindProxied Kind = "proxied"

	// KindTorznab fingerprints the mixed native+proxied fan-out behind
	// the Torznab endpoints, keeping it apart from the kind-scoped
	// aggregates in the JSON API.
	KindTorznab Kind = "torznab"
)

// Indexer is one searchable source.
type Indexer interface {
	ID() string
	Name() string
	Kind() Kind
	Search(ctx context.Context, query domain.SearchQuery) ([]*domain.TorrentResult, error)
}

// NativeIndexer executes one YAML definition through the native engine.
type NativeIndexer struct {
	definition *native.IndexerDefinition
	executor   *native.Executor
	settings   map[string]string
	log        zerolog.Logger

	// Indexers are shared across concurrent requests; the preflight
	// visit must happen exactly once.
	visitOnce sync.Once
}

// NewNativeIndexer pairs a definition with an executor and the user's
// setting overrides for it.
func NewNativeIndexer(definition *native.IndexerDefinition, executor *native.Executor, settings map[string]string, logger zerolog.Logger) *NativeIndexer {
	return &NativeIndexer{
		definition: definition,
		executor:   executor,
		settings:   settings,
		log:        logger.With().Str("indexer", definition.ID).Logger(),
	}
}

func (n *NativeIndexer) ID() string   { return n.definition.ID }
func (n *NativeIndexer) Name() string { return n.definition.Name }
func (n *NativeIndexer) Kind() Kind   { return KindNative }

// Definition exposes the parsed definition for caps and settings APIs.
func (n *NativeIndexer) Definition() *native.IndexerDefinition { return n.definition }

// Search runs the definition against the tracker. The first search visits
// the site root once to pick up session cookies.
func (n *NativeIndexer) Search(ctx context.Context, query domain.SearchQuery) ([]*domain.TorrentResult, error) {
	n.visitOnce.Do(func() {
		if err := n.executor.VisitBaseURL(ctx, n.definition); err != nil {
			n.log.Debug().Err(err).Msg("base URL preflight failed")
		}
	})
	return n.executor.Search(ctx, n.definition, query, n.settings)
}

// Download resolves and fetches a torrent payload through the definition's
// download block.
func (n *NativeIndexer) Download(ctx context.Context, link string) ([]byte, error) {
	return n.executor.Download(ctx, n.definition, link)
}

// Test runs a keyword-less search and reports how many results came back.
func (n *NativeIndexer) Test(ctx context.Context) (int, time.Duration, error) {
	start := time.Now()
	results, err := n.Search(ctx, domain.SearchQuery{Type: domain.SearchTypeSearch})
	return len(results), time.Since(start), err
}

// ProxiedIndexer forwards searches to an external Torznab endpoint.
type ProxiedIndexer struct {
	name   string
	client *torznab.Client
	log    zerolog.Logger
}

// NewProxiedIndexer wraps a configured Torznab endpoint.
func NewProxiedIndexer(cfg domain.ProxiedIndexer, userAgent string, logger zerolog.Logger) *ProxiedIndexer {
	return &ProxiedIndexer{
		name: cfg.Name,
		client: torznab.NewClient(torznab.Config{
			BaseURL:   cfg.URL,
			APIKey:    cfg.APIKey,
			UserAgent: userAgent,
		}),
		log: logger.With().Str("indexer", cfg.Name).Logger(),
	}
}

func (p *ProxiedIndexer) ID() string   { return p.name }
func (p *ProxiedIndexer) Name() string { return p.name }
func (p *ProxiedIndexer) Kind() Kind   { return KindProxied }

// Client exposes the underlying Torznab client for download resolution.
func (p *ProxiedIndexer) Client() *torznab.Client { return p.client }

// Search translates the query into Torznab parameters and converts the
// returned items into results.
func (p *ProxiedIndexer) Search(ctx context.Context, query domain.SearchQuery) ([]*domain.TorrentResult, error) {
	params := torznab.SearchParams{
		Type:   string(query.Type),
		Query:  query.Query,
		IMDBID: query.IMDBID,
	}
	if len(query.Categories) > 0 {
		cats := make([]string, len(query.Categories))
		for i, c := range query.Categories {
			cats[i] = strconv.Itoa(c)
		}
		params.Cat = strings.Join(cats, ",")
	}
	if query.Season != nil {
		params.Season = strconv.Itoa(*query.Season)
	}
	if query.Episode != nil {
		params.Episode = strconv.Itoa(*query.Episode)
	}
	if query.TMDBID != nil {
		params.TMDBID = strconv.Itoa(*query.TMDBID)
	}
	if query.TVDBID != nil {
		params.TVDBID = strconv.Itoa(*query.TVDBID)
	}
	if query.Year != nil {
		params.Year = strconv.Itoa(*query.Year)
	}
	if query.Limit != nil {
		params.Limit = *query.Limit
	}
	if query.Offset != nil {
		params.Offset = *query.Offset
	}

	items, err := p.client.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]*domain.TorrentResult, 0, len(items))
	for _, item := range items {
		results = append(results, itemToResult(item, p.name))
	}
	return results, nil
}

// Test fetches the upstream caps document to verify connectivity and
// credentials.
func (p *ProxiedIndexer) Test(ctx context.Context) error {
	_, err := p.client.Caps(ctx)
	return err
}

func itemToResult(item torznab.Item, indexer string) *domain.TorrentResult {
	result := &domain.TorrentResult{
		Title:      item.Title,
		GUID:       item.GUID,
		Link:       item.Link,
		Details:    item.Comments,
		Magnet:     item.MagnetURL,
		Size:       item.Size,
		Seeders:    item.Seeders,
		Leechers:   item.Peers,
		Grabs:      item.Grabs,
		Categories: item.Categories,
		InfoHash:   item.InfoHash,
		Indexer:    indexer,
	}
	if result.GUID == "" {
		result.GUID = result.Title
	}

	if item.PublishDate != "" {
		for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
			if t, err := time.Parse(layout, item.PublishDate); err == nil {
				utc := t.UTC()
				result.PublishDate = &utc
				break
			}
		}
	}

	return result
}
