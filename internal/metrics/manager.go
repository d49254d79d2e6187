// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/models"
)

// Manager owns the Prometheus registry and the application collectors.
type Manager struct {
	registry *prometheus.Registry
}

func NewManager(indexers IndexerCounter, searchLogs *models.SearchLogStore, cache *models.SearchCacheStore, logger zerolog.Logger) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(NewSearchCollector(indexers, searchLogs, cache, logger))

	return &Manager{registry: registry}
}

func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
