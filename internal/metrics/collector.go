// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/models"
)

const collectTimeout = 5 * time.Second

// IndexerCounter reports how many indexers are loaded, split by kind.
// Satisfied by indexer.Manager.
type IndexerCounter interface {
	Counts() (nativeCount, proxiedCount int)
}

// SearchCollector exposes search activity and indexer state as
// Prometheus metrics. Values are read from the stores on every scrape.
type SearchCollector struct {
	indexers   IndexerCounter
	searchLogs *models.SearchLogStore
	cache      *models.SearchCacheStore
	log        zerolog.Logger

	indexersDesc      *prometheus.Desc
	searchesTotalDesc *prometheus.Desc
	searchAvgDesc     *prometheus.Desc
	cacheEntriesDesc  *prometheus.Desc
}

func NewSearchCollector(indexers IndexerCounter, searchLogs *models.SearchLogStore, cache *models.SearchCacheStore, logger zerolog.Logger) *SearchCollector {
	return &SearchCollector{
		indexers:   indexers,
		searchLogs: searchLogs,
		cache:      cache,
		log:        logger.With().Str("component", "metrics").Logger(),

		indexersDesc: prometheus.NewDesc(
			"searchbrr_indexers",
			"Number of loaded indexers by kind",
			[]string{"kind"},
			nil,
		),
		searchesTotalDesc: prometheus.NewDesc(
			"searchbrr_searches_total",
			"Total number of recorded searches",
			nil,
			nil,
		),
		searchAvgDesc: prometheus.NewDesc(
			"searchbrr_search_duration_avg_ms",
			"Average search duration in milliseconds",
			nil,
			nil,
		),
		cacheEntriesDesc: prometheus.NewDesc(
			"searchbrr_cache_entries",
			"Number of live search cache entries",
			nil,
			nil,
		),
	}
}

func (c *SearchCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.indexersDesc
	ch <- c.searchesTotalDesc
	ch <- c.searchAvgDesc
	ch <- c.cacheEntriesDesc
}

func (c *SearchCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	if c.indexers != nil {
		native, proxied := c.indexers.Counts()
		ch <- prometheus.MustNewConstMetric(c.indexersDesc, prometheus.GaugeValue, float64(native), "native")
		ch <- prometheus.MustNewConstMetric(c.indexersDesc, prometheus.GaugeValue, float64(proxied), "proxied")
	}

	if c.searchLogs != nil {
		stats, err := c.searchLogs.Stats(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to read search stats")
		} else {
			ch <- prometheus.MustNewConstMetric(c.searchesTotalDesc, prometheus.CounterValue, float64(stats.TotalSearches))
			ch <- prometheus.MustNewConstMetric(c.searchAvgDesc, prometheus.GaugeValue, stats.AvgSearchTimeMs)
		}
	}

	if c.cache != nil {
		entries, err := c.cache.List(ctx, 10000)
		if err != nil {
			c.log.Warn().Err(err).Msg("failed to list search cache")
		} else {
			ch <- prometheus.MustNewConstMetric(c.cacheEntriesDesc, prometheus.GaugeValue, float64(len(entries)))
		}
	}
}
