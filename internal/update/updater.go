// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
)

// Config names the GitHub repository releases are pulled from and the
// version the running binary was built as.
type Config struct {
	Repository string
	Version    string
}

// Updater replaces the running binary with the latest GitHub release.
type Updater struct {
	config Config
}

func NewUpdater(config Config) *Updater {
	return &Updater{config: config}
}

// Run downloads and installs a newer release when one exists, returning
// true when the binary was replaced. Development builds and unsupported
// environments bail out before touching the network.
func (u *Updater) Run(ctx context.Context) (bool, error) {
	if _, err := semver.NewVersion(u.config.Version); err != nil {
		return false, fmt.Errorf("could not parse version: %w", err)
	}

	if !isSelfUpdateSupportedPlatform() || isRunningInContainer() {
		return false, ErrSelfUpdateUnsupported
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(u.config.Repository))
	if err != nil {
		return false, fmt.Errorf("failed to detect latest release: %w", err)
	}
	if !found {
		return false, fmt.Errorf("no release found for %s", u.config.Repository)
	}

	if latest.LessOrEqual(u.config.Version) {
		fmt.Printf("Current binary is the latest version: %s\n", u.config.Version)
		return false, nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return false, fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return false, fmt.Errorf("failed to update binary: %w", err)
	}

	fmt.Printf("Successfully updated to version: %s\n", latest.Version())
	return true, nil
}
