// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/autobrr/searchbrr/internal/catalog"
	"github.com/autobrr/searchbrr/internal/config"
)

// RunDefinitionsCommand inspects and refreshes the indexer definitions
// catalog without starting the server.
func RunDefinitionsCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "definitions",
		Short: "Manage native indexer definitions",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file or its directory")

	cmd.AddCommand(runDefinitionsListCommand(&configPath))
	cmd.AddCommand(runDefinitionsUpdateCommand(&configPath))
	return cmd
}

func openCatalog(configPath string) (*catalog.Service, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, err
	}
	return catalog.NewService(cfg.GetIndexersAvailableDir(), cfg.GetIndexersActiveDir(), cfg.Config.ProxyURL, zerolog.Nop())
}

func runDefinitionsListCommand(configPath *string) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog definitions and whether they are active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openCatalog(*configPath)
			if err != nil {
				return err
			}

			items, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			for _, item := range items {
				marker := " "
				if item.Active {
					marker = "*"
				}
				cmd.Printf("%s %s\n", marker, item.Name)
			}
			cmd.Printf("%d definitions (* = active)\n", len(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Fuzzy name filter")
	return cmd
}

func runDefinitionsUpdateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh the catalog and re-download active definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openCatalog(*configPath)
			if err != nil {
				return err
			}

			items, err := svc.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Catalog refreshed: %d definitions available\n", len(items))

			for _, name := range svc.ListActive() {
				item, err := svc.Lookup(cmd.Context(), name)
				if err != nil {
					cmd.Printf("  %s: no longer in catalog\n", name)
					continue
				}
				if _, err := svc.Download(cmd.Context(), item); err != nil {
					cmd.Printf("  %s: download failed: %v\n", name, err)
					continue
				}
				if err := svc.Activate(name); err != nil {
					cmd.Printf("  %s: activation failed: %v\n", name, err)
					continue
				}
				cmd.Printf("  %s: updated\n", name)
			}
			return nil
		},
	}
}
