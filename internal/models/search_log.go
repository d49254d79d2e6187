// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"time"

	"github.com/autobrr/searchbrr/internal/dbinterface"
)

// SearchLog is one recorded search, cache hits included.
type SearchLog struct {
	ID          int       `json:"id"`
	Query       string    `json:"query"`
	Indexer     string    `json:"indexer"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"result_count"`
	DurationMs  int64     `json:"duration_ms"`
}

// SearchStats aggregates search activity for the stats endpoint.
type SearchStats struct {
	TotalSearches   int     `json:"total_searches"`
	AvgSearchTimeMs float64 `json:"avg_search_time_ms"`
}

type SearchLogStore struct {
	db dbinterface.Querier
}

func NewSearchLogStore(db dbinterface.Querier) *SearchLogStore {
	return &SearchLogStore{db: db}
}

// Create records a completed search.
func (s *SearchLogStore) Create(ctx context.Context, query, indexer string, resultCount int, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_logs (query, indexer, result_count, duration_ms)
		VALUES (?, ?, ?, ?)
	`, query, indexer, resultCount, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to create search log: %w", err)
	}

	return nil
}

// Recent returns the newest entries, most recent first.
func (s *SearchLogStore) Recent(ctx context.Context, limit int) ([]*SearchLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, indexer, timestamp, result_count, duration_ms
		FROM search_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list search logs: %w", err)
	}
	defer rows.Close()

	var logs []*SearchLog
	for rows.Next() {
		var entry SearchLog
		if err := rows.Scan(&entry.ID, &entry.Query, &entry.Indexer, &entry.Timestamp, &entry.ResultCount, &entry.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan search log: %w", err)
		}
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}

// Stats returns the total search count and the mean duration.
func (s *SearchLogStore) Stats(ctx context.Context) (*SearchStats, error) {
	var stats SearchStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(duration_ms), 0)
		FROM search_logs
	`).Scan(&stats.TotalSearches, &stats.AvgSearchTimeMs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute search stats: %w", err)
	}

	return &stats, nil
}

// Clear deletes all entries and returns how many were removed.
func (s *SearchLogStore) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM search_logs")
	if err != nil {
		return 0, fmt.Errorf("failed to clear search logs: %w", err)
	}

	return result.RowsAffected()
}
