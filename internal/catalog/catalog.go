// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package catalog fetches indexer definitions from the Jackett repository
// and manages the local available/active directory pair.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	githubAPIBase   = "https://api.github.com"
	jackettRepo     = "Jackett/Jackett"
	definitionsPath = "src/Jackett.Common/Definitions"
)

// AvailableIndexer is one catalog entry.
type AvailableIndexer struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Active      bool   `json:"active"`
}

type githubContent struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Service downloads definitions and tracks which ones are active. Catalog
// listings from GitHub are cached in memory until Refresh.
type Service struct {
	client       *http.Client
	apiBase      string
	availableDir string
	activeDir    string
	log          zerolog.Logger

	mu     sync.RWMutex
	remote []AvailableIndexer
}

// NewService builds a catalog service. Traffic honors the proxy URL when
// set.
func NewService(availableDir, activeDir, proxyURL string, logger zerolog.Logger) (*Service, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
	}

	return &Service{
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
		apiBase:      githubAPIBase,
		availableDir: availableDir,
		activeDir:    activeDir,
		log:          logger.With().Str("component", "catalog").Logger(),
	}, nil
}

// ActiveDir is where activated definitions live; the indexer manager loads
// from here.
func (s *Service) ActiveDir() string { return s.activeDir }

// Refresh re-fetches the GitHub catalog, retrying transient failures.
func (s *Service) Refresh(ctx context.Context) ([]AvailableIndexer, error) {
	listURL := fmt.Sprintf("%s/repos/%s/contents/%s", s.apiBase, jackettRepo, definitionsPath)

	var contents []githubContent
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/vnd.github+json")

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				return fmt.Errorf("GitHub API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			return json.NewDecoder(resp.Body).Decode(&contents)
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch definitions catalog: %w", err)
	}

	var catalog []AvailableIndexer
	for _, item := range contents {
		if item.Type != "file" || !strings.HasSuffix(item.Name, ".yml") || item.DownloadURL == "" {
			continue
		}
		catalog = append(catalog, AvailableIndexer{
			Name:        strings.TrimSuffix(item.Name, ".yml"),
			Filename:    item.Name,
			DownloadURL: item.DownloadURL,
		})
	}

	sort.Slice(catalog, func(i, j int) bool { return catalog[i].Name < catalog[j].Name })

	s.mu.Lock()
	s.remote = catalog
	s.mu.Unlock()

	s.log.Info().Int("count", len(catalog)).Msg("refreshed definitions catalog")
	return catalog, nil
}

// List returns the catalog, fetching it on first use. Active definitions
// are flagged. A non-empty filter narrows the list by fuzzy name match.
func (s *Service) List(ctx context.Context, filter string) ([]AvailableIndexer, error) {
	s.mu.RLock()
	remote := s.remote
	s.mu.RUnlock()

	if remote == nil {
		var err error
		remote, err = s.Refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	active := make(map[string]bool)
	for _, name := range s.ListActive() {
		active[name] = true
	}

	out := make([]AvailableIndexer, 0, len(remote))
	for _, item := range remote {
		if filter != "" && !fuzzy.MatchFold(filter, item.Name) {
			continue
		}
		item.Active = active[item.Name]
		out = append(out, item)
	}
	return out, nil
}

// Lookup finds one catalog entry by name.
func (s *Service) Lookup(ctx context.Context, name string) (AvailableIndexer, error) {
	items, err := s.List(ctx, "")
	if err != nil {
		return AvailableIndexer{}, err
	}
	for _, item := range items {
		if strings.EqualFold(item.Name, name) {
			return item, nil
		}
	}
	return AvailableIndexer{}, fmt.Errorf("definition %q not found in catalog", name)
}

// Download fetches one definition, validates that it is YAML and stores it
// in the available directory.
func (s *Service) Download(ctx context.Context, indexer AvailableIndexer) (string, error) {
	if err := os.MkdirAll(s.availableDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create available dir: %w", err)
	}

	var content []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexer.DownloadURL, nil)
			if err != nil {
				return err
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("download returned %d", resp.StatusCode)
			}

			content, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", indexer.Name, err)
	}

	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("invalid YAML for %s: %w", indexer.Name, err)
	}

	path := filepath.Join(s.availableDir, indexer.Filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.log.Info().Str("indexer", indexer.Name).Str("path", path).Msg("downloaded definition")
	return path, nil
}

// Activate copies a downloaded definition into the active directory.
func (s *Service) Activate(name string) error {
	src := filepath.Join(s.availableDir, name+".yml")
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("definition %q is not downloaded: %w", name, err)
	}

	if err := os.MkdirAll(s.activeDir, 0o755); err != nil {
		return fmt.Errorf("failed to create active dir: %w", err)
	}

	dst := filepath.Join(s.activeDir, name+".yml")
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("failed to activate %s: %w", name, err)
	}
	return nil
}

// Deactivate removes the active copy of a definition. The available cache
// copy stays.
func (s *Service) Deactivate(name string) error {
	path := filepath.Join(s.activeDir, name+".yml")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("definition %q is not active", name)
		}
		return fmt.Errorf("failed to deactivate %s: %w", name, err)
	}
	return nil
}

// ListAvailable lists the names of locally cached definitions.
func (s *Service) ListAvailable() []string {
	return listYAMLNames(s.availableDir)
}

// ListActive lists the names of active definitions.
func (s *Service) ListActive() []string {
	return listYAMLNames(s.activeDir)
}

func listYAMLNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".yml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".yml"))
		}
	}
	sort.Strings(names)
	return names
}

// Hydrate ensures the catalog is usable at startup: when no definitions
// have ever been downloaded, fetch the remote list so the UI has
// something to offer. Failure leaves an empty catalog behind a warn.
func (s *Service) Hydrate(ctx context.Context) {
	if len(s.ListAvailable()) > 0 {
		return
	}
	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to hydrate definitions catalog")
	}
}
