// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/searchbrr/internal/api"
	"github.com/autobrr/searchbrr/internal/buildinfo"
	"github.com/autobrr/searchbrr/internal/catalog"
	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/database"
	"github.com/autobrr/searchbrr/internal/domain"
	"github.com/autobrr/searchbrr/internal/indexer"
	"github.com/autobrr/searchbrr/internal/logger"
	"github.com/autobrr/searchbrr/internal/metrics"
	"github.com/autobrr/searchbrr/internal/models"
	"github.com/autobrr/searchbrr/internal/update"
)

// RunServeCommand starts the API server and everything behind it.
func RunServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the searchbrr server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.New(configPath)
			if err != nil {
				return err
			}
			cfg.Config.Version = buildinfo.Version

			logger.Setup(cfg.Config)
			cfg.OnLogLevelChange(logger.SetLogLevel)

			log.Info().
				Str("version", buildinfo.Version).
				Str("config", cfg.GetConfigPath()).
				Msg("starting searchbrr")

			db, err := database.New(cfg.GetDatabasePath())
			if err != nil {
				return err
			}
			defer db.Close()

			cacheStore := models.NewSearchCacheStore(db)
			searchLogs := models.NewSearchLogStore(db)
			downloadLogs := models.NewDownloadLogStore(db)
			apiKeys := models.NewAPIKeyStore(db)

			catalogSvc, err := catalog.NewService(cfg.GetIndexersAvailableDir(), cfg.GetIndexersActiveDir(), cfg.Config.ProxyURL, log.Logger)
			if err != nil {
				return err
			}
			catalogSvc.Hydrate(ctx)

			manager := indexer.NewManager(cfg.Config.ProxyURL, buildinfo.UserAgent, log.Logger)
			manager.SetUTCDates(cfg.Config.UTCDates)
			if _, err := manager.LoadNative(catalogSvc.ActiveDir(), cfg.Config.NativeSettings); err != nil {
				log.Warn().Err(err).Msg("failed to load native definitions")
			}
			manager.SetProxied(cfg.Config.Indexers)

			aggregator := indexer.NewAggregator(cacheStore, searchLogs, cfg.Config.CacheTTL(), cfg.Config.ResultLimit(), log.Logger)
			aggregator.SweepCache(ctx)

			updateSvc := update.NewService(log.Logger, cfg.Config.CheckForUpdates, buildinfo.Version, buildinfo.UserAgent)
			updateSvc.Start(ctx)

			// External edits to the config file take effect without a restart.
			cfg.OnConfigChange(func(c *domain.Config) {
				manager.SetUTCDates(c.UTCDates)
				manager.SetProxyURL(c.ProxyURL)
				if _, err := manager.LoadNative(catalogSvc.ActiveDir(), c.NativeSettings); err != nil {
					log.Warn().Err(err).Msg("failed to reload native definitions")
				}
				manager.SetProxied(c.Indexers)
				updateSvc.SetEnabled(c.CheckForUpdates)
			})

			server := api.NewServer(&api.Dependencies{
				Config:     cfg,
				Manager:    manager,
				Aggregator: aggregator,
				Catalog:    catalogSvc,

				CacheStore:       cacheStore,
				SearchLogStore:   searchLogs,
				DownloadLogStore: downloadLogs,
				APIKeyStore:      apiKeys,

				Logger: log.Logger,
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(gctx)
			})

			if cfg.Config.MetricsEnabled {
				metricsManager := metrics.NewManager(manager, searchLogs, cacheStore, log.Logger)
				metricsServer := metrics.NewServer(metricsManager, cfg.Config.MetricsHost, cfg.Config.MetricsPort, log.Logger)
				g.Go(func() error {
					return metricsServer.ListenAndServe(gctx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file or its directory")

	return cmd
}
