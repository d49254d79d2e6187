// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/autobrr/searchbrr/internal/config"
	"github.com/autobrr/searchbrr/internal/database"
	"github.com/autobrr/searchbrr/internal/models"
)

// RunAPIKeyCommand manages API keys from the command line. Until the
// first key exists the instance answers without authentication.
func RunAPIKeyCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file or its directory")

	cmd.AddCommand(runAPIKeyCreateCommand(&configPath))
	cmd.AddCommand(runAPIKeyListCommand(&configPath))
	cmd.AddCommand(runAPIKeyDeleteCommand(&configPath))
	return cmd
}

func openAPIKeyStore(configPath string) (*models.APIKeyStore, func() error, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, nil, err
	}

	return models.NewAPIKeyStore(db), db.Close, nil
}

func runAPIKeyCreateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := openAPIKeyStore(*configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			rawKey, apiKey, err := store.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cmd.Printf("Created API key %q (id %d)\n", apiKey.Name, apiKey.ID)
			cmd.Printf("Key (shown only once): %s\n", rawKey)
			return nil
		},
	}
}

func runAPIKeyListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeDB, err := openAPIKeyStore(*configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			keys, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				cmd.Println("No API keys. The instance answers without authentication.")
				return nil
			}

			for _, key := range keys {
				lastUsed := "never"
				if key.LastUsedAt != nil {
					lastUsed = key.LastUsedAt.Format("2006-01-02 15:04:05")
				}
				cmd.Printf("%d\t%s\tcreated %s\tlast used %s\n",
					key.ID, key.Name, key.CreatedAt.Format("2006-01-02 15:04:05"), lastUsed)
			}
			return nil
		},
	}
}

func runAPIKeyDeleteCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}

			store, closeDB, err := openAPIKeyStore(*configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}

			cmd.Printf("Deleted API key %d\n", id)
			return nil
		},
	}
}
