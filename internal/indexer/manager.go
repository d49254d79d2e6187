// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/native"
)

// Manager owns the live indexer instances. Saving a new proxy URL or
// changing proxied indexer config rebuilds it wholesale, so all access
// goes through the read lock.
type Manager struct {
	mu      sync.RWMutex
	native  map[string]*NativeIndexer
	proxied map[string]*ProxiedIndexer

	proxyURL  string
	userAgent string
	utcDates  bool
	log       zerolog.Logger
}

// NewManager builds an empty manager. Populate it with LoadNative and
// SetProxied.
func NewManager(proxyURL, userAgent string, logger zerolog.Logger) *Manager {
	return &Manager{
		native:    make(map[string]*NativeIndexer),
		proxied:   make(map[string]*ProxiedIndexer),
		proxyURL:  proxyURL,
		userAgent: userAgent,
		log:       logger.With().Str("component", "indexer-manager").Logger(),
	}
}

// LoadNative replaces the native indexer set with the definitions found in
// dir. Settings carries per-definition user overrides keyed by id. Each
// indexer gets its own executor so cookie jars stay isolated.
func (m *Manager) LoadNative(dir string, settings map[string]map[string]string) (int, error) {
	definitions, err := native.LoadDefinitions(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to load definitions: %w", err)
	}

	m.mu.RLock()
	proxyURL := m.proxyURL
	utcDates := m.utcDates
	m.mu.RUnlock()

	loaded := make(map[string]*NativeIndexer, len(definitions))
	for _, def := range definitions {
		executor, err := native.NewExecutor(proxyURL, m.log)
		if err != nil {
			m.log.Error().Err(err).Str("indexer", def.ID).Msg("failed to create executor")
			continue
		}
		executor.SetUTCDates(utcDates)
		loaded[def.ID] = NewNativeIndexer(def, executor, settings[def.ID], m.log)
	}

	m.mu.Lock()
	m.native = loaded
	m.mu.Unlock()

	m.log.Info().Int("count", len(loaded)).Str("dir", dir).Msg("loaded native indexers")
	return len(loaded), nil
}

// SetProxied replaces the proxied indexer set from config.
func (m *Manager) SetProxied(configs []domain.ProxiedIndexer) {
	proxied := make(map[string]*ProxiedIndexer, len(configs))
	for _, cfg := range configs {
		if cfg.Name == "" || cfg.URL == "" {
			continue
		}
		proxied[cfg.Name] = NewProxiedIndexer(cfg, m.userAgent, m.log)
	}

	m.mu.Lock()
	m.proxied = proxied
	m.mu.Unlock()
}

// SetUTCDates controls whether native executors render date templates in
// UTC. Takes effect on the next LoadNative.
func (m *Manager) SetUTCDates(utc bool) {
	m.mu.Lock()
	m.utcDates = utc
	m.mu.Unlock()
}

// SetProxyURL replaces the proxy used for indexers built from now on.
// Callers reload the native and proxied sets afterwards so the change
// takes effect.
func (m *Manager) SetProxyURL(proxyURL string) {
	m.mu.Lock()
	m.proxyURL = proxyURL
	m.mu.Unlock()
}

// Native returns one native indexer by definition id.
func (m *Manager) Native(id string) (*NativeIndexer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.native[id]
	return idx, ok
}

// Proxied returns one proxied indexer by name.
func (m *Manager) Proxied(name string) (*ProxiedIndexer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.proxied[name]
	return idx, ok
}

// AllNative returns the native indexers sorted by id.
func (m *Manager) AllNative() []*NativeIndexer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*NativeIndexer, 0, len(m.native))
	for _, idx := range m.native {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AllProxied returns the proxied indexers sorted by name.
func (m *Manager) AllProxied() []*ProxiedIndexer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*ProxiedIndexer, 0, len(m.proxied))
	for _, idx := range m.proxied {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Counts reports how many indexers are loaded per kind.
func (m *Manager) Counts() (nativeCount, proxiedCount int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.native), len(m.proxied)
}
