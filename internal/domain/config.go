// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string `toml:"-" mapstructure:"-"`
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	CheckForUpdates bool `toml:"checkForUpdates" mapstructure:"checkForUpdates"`
	PprofEnabled    bool `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	MetricsEnabled  bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost     string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort     int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// DownloadPath is where resolved .torrent files and magnet stubs are written.
	DownloadPath string `toml:"downloadPath" mapstructure:"downloadPath"`

	// ProxyURL routes all native indexer traffic through an HTTP or SOCKS proxy.
	// Changing it at runtime rebuilds the indexer manager.
	ProxyURL string `toml:"proxyUrl" mapstructure:"proxyUrl"`

	// CacheTTLMinutes controls how long aggregated search results stay valid.
	CacheTTLMinutes int `toml:"cacheTtlMinutes" mapstructure:"cacheTtlMinutes"`

	// MaxResults caps the number of results returned per search.
	MaxResults int `toml:"maxResults" mapstructure:"maxResults"`

	// UTCDates renders {{ .Query.Today }} and friends in UTC instead of local time.
	UTCDates bool `toml:"utcDates" mapstructure:"utcDates"`

	Indexers         []ProxiedIndexer             `toml:"indexers" mapstructure:"indexers"`
	DisabledIndexers []string                     `toml:"disabledIndexers" mapstructure:"disabledIndexers"`
	NativeSettings   map[string]map[string]string `toml:"nativeSettings" mapstructure:"nativeSettings"`

	DownloadClient DownloadClientConfig `toml:"downloadClient" mapstructure:"downloadClient"`
}

// ProxiedIndexer is an external Torznab endpoint (Jackett, Prowlarr, NZBHydra)
// that participates in aggregated searches alongside native definitions.
type ProxiedIndexer struct {
	Name   string `toml:"name" mapstructure:"name" json:"name"`
	URL    string `toml:"url" mapstructure:"url" json:"url"`
	APIKey string `toml:"apiKey" mapstructure:"apiKey" json:"api_key"`
}

// DownloadClientConfig selects and configures the torrent client releases are
// handed to.
type DownloadClientConfig struct {
	Client        string `toml:"client" mapstructure:"client" json:"client"`
	TorrServerURL string `toml:"torrserverUrl" mapstructure:"torrserverUrl" json:"torrserver_url"`
	QbitURL       string `toml:"qbitUrl" mapstructure:"qbitUrl" json:"qbit_url"`
	QbitUsername  string `toml:"qbitUsername" mapstructure:"qbitUsername" json:"qbit_username"`
	QbitPassword  string `toml:"qbitPassword" mapstructure:"qbitPassword" json:"qbit_password"`
}

// CacheTTL returns the configured cache lifetime, defaulting to one hour.
func (c *Config) CacheTTL() time.Duration {
	if c.CacheTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// ResultLimit returns the configured result cap, defaulting to 100.
func (c *Config) ResultLimit() int {
	if c.MaxResults <= 0 {
		return 100
	}
	return c.MaxResults
}

// IsIndexerEnabled reports whether an indexer id is not on the disabled list.
func (c *Config) IsIndexerEnabled(id string) bool {
	for _, disabled := range c.DisabledIndexers {
		if strings.EqualFold(disabled, id) {
			return false
		}
	}
	return true
}

// RedactString replaces a string with asterisks of the same length
func RedactString(s string) string {
	if len(s) == 0 {
		return ""
	}

	return strings.Repeat("*", len(s))
}

// IsRedactedValue checks if a value appears to be redacted (all asterisks)
func IsRedactedValue(value string) bool {
	if value == "" {
		return false
	}

	for _, char := range value {
		if char != '*' {
			return false
		}
	}
	return true
}
