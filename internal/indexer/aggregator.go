// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/moistari/rls"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/models"
)

// AllIndexers is the pseudo-id for a fan-out over every indexer of a kind.
const AllIndexers = "all"

const maxConcurrentSearches = 4

// Aggregator fans a query out over indexers, merges the results and keeps
// them in the sqlite-backed TTL cache. Every search, cached or not, is
// written to the search log.
type Aggregator struct {
	cache *models.SearchCacheStore
	logs  *models.SearchLogStore

	ttl   time.Duration
	limit int
	log   zerolog.Logger
}

// NewAggregator wires the aggregator to its stores. ttl and limit follow
// the config defaults (one hour, 100) when zero.
func NewAggregator(cache *models.SearchCacheStore, logs *models.SearchLogStore, ttl time.Duration, limit int, logger zerolog.Logger) *Aggregator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if limit <= 0 {
		limit = 100
	}
	return &Aggregator{
		cache: cache,
		logs:  logs,
		ttl:   ttl,
		limit: limit,
		log:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Fingerprint is the cache key for one logical search.
func Fingerprint(kind Kind, indexerID string, query domain.SearchQuery) string {
	cats := make([]string, len(query.Categories))
	for i, c := range query.Categories {
		cats[i] = strconv.Itoa(c)
	}
	return fmt.Sprintf("%s:%s:%s:%s", kind, indexerID, query.Query, strings.Join(cats, ","))
}

// Search runs the query over the given indexers under the fingerprint
// (kind, indexerID). A cache hit short-circuits the fan-out; a failing
// indexer contributes nothing but never fails the aggregate.
func (a *Aggregator) Search(ctx context.Context, kind Kind, indexerID string, indexers []Indexer, query domain.SearchQuery) ([]*domain.TorrentResult, error) {
	start := time.Now()
	key := Fingerprint(kind, indexerID, query)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		var results []*domain.TorrentResult
		decodeErr := json.Unmarshal(cached, &results)
		if decodeErr == nil {
			a.log.Debug().Str("key", key).Int("results", len(results)).Msg("cache hit")
			a.logSearch(ctx, query.Query, indexerID, len(results), time.Since(start))
			return a.finalize(results, query), nil
		}
		// Drop the bad row so the next search with this fingerprint
		// does not trip over it again.
		a.log.Warn().Err(decodeErr).Str("key", key).Msg("discarding undecodable cache entry")
		if err := a.cache.Delete(ctx, key); err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("failed to drop cache entry")
		}
	} else if !errors.Is(err, models.ErrCacheMiss) {
		a.log.Warn().Err(err).Str("key", key).Msg("cache lookup failed")
	}

	results := a.fanOut(ctx, indexers, query)

	if len(results) > 0 {
		if payload, err := json.Marshal(results); err == nil {
			if err := a.cache.Set(ctx, key, payload, a.ttl); err != nil {
				a.log.Warn().Err(err).Str("key", key).Msg("failed to cache results")
			}
		}
	}

	a.logSearch(ctx, query.Query, indexerID, len(results), time.Since(start))
	return a.finalize(results, query), nil
}

// fanOut searches every indexer with bounded parallelism. Results flow
// back over a channel so no slice is shared between goroutines.
func (a *Aggregator) fanOut(ctx context.Context, indexers []Indexer, query domain.SearchQuery) []*domain.TorrentResult {
	resultCh := make(chan []*domain.TorrentResult, len(indexers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSearches)

	for _, idx := range indexers {
		g.Go(func() error {
			results, err := idx.Search(gctx, query)
			if err != nil {
				a.log.Warn().Err(err).Str("indexer", idx.ID()).Msg("indexer search failed")
				return nil
			}
			for _, r := range results {
				if r.Indexer == "" {
					r.Indexer = idx.ID()
				}
			}
			resultCh <- results
			return nil
		})
	}

	_ = g.Wait()
	close(resultCh)

	var merged []*domain.TorrentResult
	for results := range resultCh {
		merged = append(merged, results...)
	}
	return dedupe(merged)
}

// dedupe drops repeated releases, keyed by infohash when known and
// normalized title+size otherwise. First occurrence wins.
func dedupe(results []*domain.TorrentResult) []*domain.TorrentResult {
	seen := make(map[uint64]bool, len(results))
	out := results[:0]
	for _, r := range results {
		key := dedupeKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// dedupeKey hashes the identifying parts of a release. Titles go through
// the release-name parser so "Ubuntu 24.04 LTS" and "Ubuntu.24.04.LTS"
// from different trackers collapse into one entry.
func dedupeKey(r *domain.TorrentResult) uint64 {
	if r.InfoHash != "" {
		return xxhash.Sum64String("h:" + strings.ToLower(r.InfoHash))
	}
	size := int64(0)
	if r.Size != nil {
		size = *r.Size
	}

	rel := rls.ParseString(r.Title)
	key := fmt.Sprintf("t:%s:%d:%d:%d:%s:%s:%d",
		strings.ToLower(rel.Title), rel.Year, rel.Series, rel.Episode,
		strings.ToLower(rel.Resolution), strings.ToLower(rel.Group), size)
	return xxhash.Sum64String(key)
}

// finalize orders by seeders descending (unknown counts as zero) and
// truncates to the effective limit.
func (a *Aggregator) finalize(results []*domain.TorrentResult, query domain.SearchQuery) []*domain.TorrentResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SeederCount() > results[j].SeederCount()
	})

	limit := query.ResultLimit(a.limit)
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func (a *Aggregator) logSearch(ctx context.Context, query, indexer string, count int, duration time.Duration) {
	if a.logs == nil {
		return
	}
	if err := a.logs.Create(ctx, query, indexer, count, duration); err != nil {
		a.log.Warn().Err(err).Msg("failed to write search log")
	}
}

// SweepCache removes expired cache rows; called once at startup.
func (a *Aggregator) SweepCache(ctx context.Context) {
	deleted, err := a.cache.DeleteExpired(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("cache sweep failed")
		return
	}
	if deleted > 0 {
		a.log.Info().Int64("deleted", deleted).Msg("swept expired cache entries")
	}
}

var inflight sync.Map

// SearchSingleFlight collapses concurrent searches with the same
// fingerprint into one fan-out.
func (a *Aggregator) SearchSingleFlight(ctx context.Context, kind Kind, indexerID string, indexers []Indexer, query domain.SearchQuery) ([]*domain.TorrentResult, error) {
	key := Fingerprint(kind, indexerID, query)

	type flight struct {
		done    chan struct{}
		results []*domain.TorrentResult
		err     error
	}

	f := &flight{done: make(chan struct{})}
	if actual, loaded := inflight.LoadOrStore(key, f); loaded {
		prior := actual.(*flight)
		select {
		case <-prior.done:
			return prior.results, prior.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.results, f.err = a.Search(ctx, kind, indexerID, indexers, query)
	close(f.done)
	inflight.Delete(key)
	return f.results, f.err
}
