// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package dbinterface provides the database interface stores are written
// against. It has no dependencies and is implemented by *sql.DB, *sql.Tx,
// and *database.DB, which keeps stores testable against plain connections.
package dbinterface

import (
	"context"
	"database/sql"
)

// Querier is the centralized interface for database operations.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
