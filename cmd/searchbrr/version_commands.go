// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/autobrr/searchbrr/internal/buildinfo"
	"github.com/autobrr/searchbrr/internal/update"
	"github.com/autobrr/searchbrr/pkg/version"
)

// RunVersionCommand prints build information, optionally checking GitHub
// for a newer release.
func RunVersionCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Print(buildinfo.String())

			if !check {
				return nil
			}

			checker := version.NewChecker("autobrr", "searchbrr", buildinfo.UserAgent)
			newAvailable, release, err := checker.CheckNewVersion(cmd.Context(), buildinfo.Version)
			if err != nil {
				return err
			}
			if newAvailable && release != nil {
				cmd.Printf("New release available: %s\n", release.TagName)
			} else {
				cmd.Println("No newer release available.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}

// RunUpdateCommand replaces the running binary with the latest release.
func RunUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Self-update to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			updater := update.NewUpdater(update.Config{
				Repository: "autobrr/searchbrr",
				Version:    buildinfo.Version,
			})

			updated, err := updater.Run(cmd.Context())
			if err != nil {
				return err
			}
			if !updated {
				cmd.Println("Already up to date.")
			}
			return nil
		},
	}
}
