// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/autobrr/searchbrr/internal/dbinterface"
)

// Download types distinguish how a release left the system.
const (
	DownloadTypeClient = "client"
	DownloadTypeFile   = "file"
	DownloadTypeMagnet = "magnet"
)

// DownloadLog is one release handed to a client or saved to disk.
type DownloadLog struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Magnet       string    `json:"magnet,omitempty"`
	DownloadLink string    `json:"download_link,omitempty"`
	ClientName   string    `json:"client_name,omitempty"`
	DownloadType string    `json:"download_type"`
	Timestamp    time.Time `json:"timestamp"`
}

type DownloadLogStore struct {
	db dbinterface.Querier
}

func NewDownloadLogStore(db dbinterface.Querier) *DownloadLogStore {
	return &DownloadLogStore{db: db}
}

// Create records a download event.
func (s *DownloadLogStore) Create(ctx context.Context, entry *DownloadLog) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_logs (title, magnet, download_link, client_name, download_type)
		VALUES (?, ?, ?, ?, ?)
	`, entry.Title, nullableString(entry.Magnet), nullableString(entry.DownloadLink), nullableString(entry.ClientName), entry.DownloadType)
	if err != nil {
		return fmt.Errorf("failed to create download log: %w", err)
	}

	return nil
}

// Recent returns the newest entries, most recent first.
func (s *DownloadLogStore) Recent(ctx context.Context, limit int) ([]*DownloadLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, magnet, download_link, client_name, download_type, timestamp
		FROM download_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list download logs: %w", err)
	}
	defer rows.Close()

	var logs []*DownloadLog
	for rows.Next() {
		var entry DownloadLog
		var magnet, link, client sql.NullString

		if err := rows.Scan(&entry.ID, &entry.Title, &magnet, &link, &client, &entry.DownloadType, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan download log: %w", err)
		}

		entry.Magnet = magnet.String
		entry.DownloadLink = link.String
		entry.ClientName = client.String
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
