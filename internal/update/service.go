// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package update

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autobrr/searchbrr/pkg/version"
)

const defaultCheckInterval = 2 * time.Hour

// Service periodically checks GitHub for new searchbrr releases and
// caches the latest result for the stats endpoint.
type Service struct {
	log            zerolog.Logger
	currentVersion string
	releaseChecker *version.Checker

	mu            sync.RWMutex
	latestRelease *version.Release
	lastChecked   time.Time
	lastTag       string
	isEnabled     bool
}

// NewService creates a new update check service.
func NewService(log zerolog.Logger, enabled bool, currentVersion, userAgent string) *Service {
	return &Service{
		log:            log.With().Str("component", "update").Logger(),
		currentVersion: currentVersion,
		releaseChecker: version.NewChecker("autobrr", "searchbrr", userAgent),
		isEnabled:      enabled,
	}
}

// Start launches a background loop that checks for updates until ctx is
// cancelled. The first check runs shortly after startup.
func (s *Service) Start(ctx context.Context) {
	go func() {
		s.initialCheck(ctx)

		ticker := time.NewTicker(defaultCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CheckUpdates(ctx)
			}
		}
	}()
}

func (s *Service) initialCheck(ctx context.Context) {
	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		s.CheckUpdates(ctx)
	}
}

// GetLatestRelease returns the last known release when a newer version
// has been found, nil otherwise.
func (s *Service) GetLatestRelease(_ context.Context) *version.Release {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestRelease
}

// CheckUpdates refreshes the latest release information when update
// checks are enabled.
func (s *Service) CheckUpdates(ctx context.Context) {
	s.mu.RLock()
	enabled := s.isEnabled
	s.mu.RUnlock()

	if !enabled {
		s.log.Trace().Msg("skipping update check, disabled in config")
		return
	}

	if _, err := s.CheckUpdateAvailable(ctx); err != nil {
		s.log.Error().Err(err).Msg("error checking new release")
	}
}

// CheckUpdateAvailable performs a check and returns the new release when
// one is available.
func (s *Service) CheckUpdateAvailable(ctx context.Context) (*version.Release, error) {
	s.log.Trace().Msg("checking for updates")

	newAvailable, release, err := s.releaseChecker.CheckNewVersion(ctx, s.currentVersion)
	if err != nil {
		return nil, err
	}

	if !newAvailable || release == nil {
		s.mu.Lock()
		s.latestRelease = nil
		s.mu.Unlock()
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastTag == release.TagName {
		s.lastChecked = time.Now()
		return s.latestRelease, nil
	}

	s.lastTag = release.TagName
	s.lastChecked = time.Now()
	s.latestRelease = release

	s.log.Info().Str("tag", release.TagName).Msg("new release detected")

	return release, nil
}

// CanSelfUpdate reports whether the running binary can replace itself.
// Container deployments and Windows are excluded.
func (s *Service) CanSelfUpdate() bool {
	if !isSelfUpdateSupportedPlatform() {
		return false
	}
	return !isRunningInContainer()
}

// SetEnabled toggles whether periodic update checks run.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.isEnabled = enabled
	s.mu.Unlock()
}
