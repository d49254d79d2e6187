// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api assembles the HTTP server: routing, authentication,
// compression and graceful shutdown.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/internal/api/handlers"
	"github.com/autobrr/searchbrr/internal/api/middleware"
	"github.com/autobrr/searchbrr/internal/catalog"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/models"
)

// Dependencies carries everything the router needs.
type Dependencies struct {
	Config     *config.AppConfig
	Manager    *indexer.Manager
	Aggregator *indexer.Aggregator
	Catalog    *catalog.Service

	CacheStore       *models.SearchCacheStore
	SearchLogStore   *models.SearchLogStore
	DownloadLogStore *models.DownloadLogStore
	APIKeyStore      *models.APIKeyStore

	Logger zerolog.Logger
}

// Server is the HTTP front of the application.
type Server struct {
	deps      *Dependencies
	startedAt time.Time
	log       zerolog.Logger
}

// NewServer creates a server from its dependencies.
func NewServer(deps *Dependencies) *Server {
	return &Server{
		deps:      deps,
		startedAt: time.Now(),
		log:       deps.Logger.With().Str("component", "api").Logger(),
	}
}

// reloadIndexers rebuilds the manager from the current config: native
// definitions from the active directory, proxied endpoints from config.
func (s *Server) reloadIndexers() error {
	if _, err := s.deps.Manager.LoadNative(s.deps.Catalog.ActiveDir(), s.deps.Config.Config.NativeSettings); err != nil {
		return err
	}
	s.deps.Manager.SetProxied(s.deps.Config.Config.Indexers)
	return nil
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	deps := s.deps

	torznabHandler := handlers.NewTorznabHandler(deps.Manager, deps.Aggregator, deps.DownloadLogStore, deps.Config, deps.Logger)
	nativeHandler := handlers.NewNativeHandler(deps.Manager, deps.Aggregator, deps.Catalog, deps.Config, s.reloadIndexers, deps.Logger)
	settingsHandler := handlers.NewSettingsHandler(deps.Config, deps.Manager, deps.CacheStore, deps.SearchLogStore, s.reloadIndexers, deps.Logger)
	systemHandler := handlers.NewSystemHandler(deps.Manager, deps.Config, deps.SearchLogStore, deps.CacheStore, s.startedAt, deps.Logger)
	downloadHandler := handlers.NewDownloadHandler(deps.Config, deps.DownloadLogStore, deps.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
	}).Handler)
	r.Use(middleware.SelectiveCompress(1024, 4))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if deps.Config.Config.PprofEnabled {
		mountPprof(r)
	}

	r.Route("/api", func(r chi.Router) {
		// Torznab clients authenticate with ?apikey=.
		r.Use(middleware.APIKeyFromQuery("apikey"))
		r.Use(middleware.RequireAPIKey(deps.APIKeyStore, deps.Logger))

		systemHandler.Routes(r)
		downloadHandler.Routes(r)

		r.Route("/v2.0", torznabHandler.Routes)
		r.Route("/native", nativeHandler.Routes)
		r.Route("/settings", settingsHandler.Routes)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.deps.Config.Config.Host, s.deps.Config.Config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
