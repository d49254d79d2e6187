// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads, watches and persists the application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/searchbrr/internal/domain"
)

const envPrefix = "SEARCHBRR__"

// AppConfig wraps the parsed configuration together with the viper
// instance that loaded it.
type AppConfig struct {
	Config *domain.Config

	viper      *viper.Viper
	configPath string

	mu               sync.Mutex
	onConfigChange   []func(*domain.Config)
	onLogLevelChange []func(string)
}

// New loads the configuration from configPath, or from the default
// location when empty. A missing file is generated with commented
// defaults first.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		Config: &domain.Config{},
		viper:  viper.New(),
	}

	c.setDefaults()

	if configPath == "" {
		configPath = filepath.Join(getDefaultConfigDir(), "config.toml")
	}
	if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configPath = filepath.Join(configPath, "config.toml")
	}
	c.configPath = configPath

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(configPath); err != nil {
			return nil, err
		}
	}

	c.viper.SetConfigFile(configPath)
	c.viper.SetConfigType("toml")
	if err := c.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	c.watch()
	return c, nil
}

// getDefaultConfigDir honors XDG_CONFIG_HOME directly (the Docker image
// sets it to /config) and falls back to the per-user config dir.
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "searchbrr")
	}
	return "."
}

func (c *AppConfig) setDefaults() {
	c.viper.SetDefault("host", "127.0.0.1")
	c.viper.SetDefault("port", 3420)
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("checkForUpdates", true)
	c.viper.SetDefault("cacheTtlMinutes", 60)
	c.viper.SetDefault("maxResults", 100)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
}

// loadFromEnv applies SEARCHBRR__* overrides. Environment always wins
// over the file.
func (c *AppConfig) loadFromEnv() {
	overrides := map[string]string{
		"HOST":              "host",
		"PORT":              "port",
		"BASE_URL":          "baseUrl",
		"LOG_LEVEL":         "logLevel",
		"LOG_PATH":          "logPath",
		"LOG_MAX_SIZE":      "logMaxSize",
		"LOG_MAX_BACKUPS":   "logMaxBackups",
		"DATA_DIR":          "dataDir",
		"DATABASE_PATH":     "databasePath",
		"DOWNLOAD_PATH":     "downloadPath",
		"PROXY_URL":         "proxyUrl",
		"CACHE_TTL_MINUTES": "cacheTtlMinutes",
		"MAX_RESULTS":       "maxResults",
		"UTC_DATES":         "utcDates",
		"CHECK_FOR_UPDATES": "checkForUpdates",
		"PPROF_ENABLED":     "pprofEnabled",
		"METRICS_ENABLED":   "metricsEnabled",
		"METRICS_HOST":      "metricsHost",
		"METRICS_PORT":      "metricsPort",
	}

	for env, key := range overrides {
		value := os.Getenv(envPrefix + env)
		if value == "" {
			continue
		}
		switch key {
		case "port", "logMaxSize", "logMaxBackups", "cacheTtlMinutes", "maxResults", "metricsPort":
			if n, err := strconv.Atoi(value); err == nil {
				c.viper.Set(key, n)
			}
		case "utcDates", "checkForUpdates", "pprofEnabled", "metricsEnabled":
			if b, err := strconv.ParseBool(value); err == nil {
				c.viper.Set(key, b)
			}
		default:
			c.viper.Set(key, value)
		}
	}
}

// watch reloads the file on change and fans the new state out to the
// registered listeners. Only dynamic settings take effect without a
// restart; the log level is the common case.
func (c *AppConfig) watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		newConfig := &domain.Config{}
		if err := c.viper.Unmarshal(newConfig); err != nil {
			log.Error().Err(err).Msg("failed to reload config")
			return
		}

		oldLevel := c.Config.LogLevel
		*c.Config = *newConfig

		if !strings.EqualFold(oldLevel, newConfig.LogLevel) {
			log.Info().Str("logLevel", newConfig.LogLevel).Msg("log level changed")
			for _, fn := range c.onLogLevelChange {
				fn(newConfig.LogLevel)
			}
		}
		for _, fn := range c.onConfigChange {
			fn(c.Config)
		}
	})
	c.viper.WatchConfig()
}

// OnLogLevelChange registers a callback for live log level reloads.
func (c *AppConfig) OnLogLevelChange(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLogLevelChange = append(c.onLogLevelChange, fn)
}

// OnConfigChange registers a callback run after any file reload.
func (c *AppConfig) OnConfigChange(fn func(*domain.Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConfigChange = append(c.onConfigChange, fn)
}

// GetConfigPath returns the path of the loaded config file.
func (c *AppConfig) GetConfigPath() string {
	return c.configPath
}

// GetDatabasePath returns the sqlite path: explicit databasePath when
// configured, otherwise next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if path := c.viper.GetString("databasePath"); path != "" {
		return path
	}
	return filepath.Join(c.GetDataDir(), "searchbrr.db")
}

// GetDataDir returns where mutable state lives: dataDir when configured,
// otherwise the config file's directory.
func (c *AppConfig) GetDataDir() string {
	if c.Config.DataDir != "" {
		return c.Config.DataDir
	}
	return filepath.Dir(c.configPath)
}

// GetIndexersAvailableDir is the catalog cache for downloaded definitions.
func (c *AppConfig) GetIndexersAvailableDir() string {
	return filepath.Join(c.GetDataDir(), "indexers", "available")
}

// GetIndexersActiveDir holds the definitions the engine actually loads.
func (c *AppConfig) GetIndexersActiveDir() string {
	return filepath.Join(c.GetDataDir(), "indexers", "active", "native")
}

// Update applies fn to the config under the lock and persists the result.
func (c *AppConfig) Update(fn func(*domain.Config)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.Config)
	return c.save()
}

// save serializes the full config back to disk. Comments in a
// hand-edited file do not survive; the generated file is rewritten the
// same way the settings endpoints left it.
func (c *AppConfig) save() error {
	content, err := toml.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(c.configPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// UpdateLogSettings rewrites only the log keys, updating commented
// defaults in place so the generated file keeps its shape.
func (c *AppConfig) UpdateLogSettings(level, logPath string, maxSize, maxBackups int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	content, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, logPath, maxSize, maxBackups)
	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	c.Config.LogLevel = level
	c.Config.LogPath = logPath
	c.Config.LogMaxSize = maxSize
	c.Config.LogMaxBackups = maxBackups
	return nil
}

// updateLogSettingsInTOML replaces the log keys in place, uncommenting
// them when the generated file still carries the commented defaults.
func updateLogSettingsInTOML(content, level, logPath string, maxSize, maxBackups int) string {
	replacements := map[string]string{
		"logLevel":      fmt.Sprintf("logLevel = %q", level),
		"logPath":       fmt.Sprintf("logPath = %q", logPath),
		"logMaxSize":    fmt.Sprintf("logMaxSize = %d", maxSize),
		"logMaxBackups": fmt.Sprintf("logMaxBackups = %d", maxBackups),
	}
	replaced := make(map[string]bool, len(replacements))

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
		for key, replacement := range replacements {
			if replaced[key] {
				continue
			}
			if strings.HasPrefix(trimmed, key) {
				rest := strings.TrimSpace(trimmed[len(key):])
				if strings.HasPrefix(rest, "=") {
					lines[i] = replacement
					replaced[key] = true
				}
			}
		}
	}

	// Keys missing from the file entirely get appended.
	for key, replacement := range replacements {
		if !replaced[key] {
			lines = append(lines, replacement)
		}
	}

	return strings.Join(lines, "\n")
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("generated default config")
	return nil
}

const defaultConfigTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "127.0.0.1"
host = "127.0.0.1"

# Port
# Default: 3420
port = 3420

# Base URL
# Set custom baseUrl eg /searchbrr/ to serve behind a reverse proxy.
# Optional
#baseUrl = "/searchbrr/"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/searchbrr.log"

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: 50
#logMaxSize = 50

# Number of rotated log files to retain (0 keeps all)
# Default: 3
#logMaxBackups = 3

# Data directory for the database and indexer definitions
# Default: next to the config file
#dataDir = "/config"

# Where resolved .torrent files and magnet stubs are written
# Optional
#downloadPath = "/downloads"

# Route native indexer traffic through an HTTP or SOCKS proxy
# Optional
#proxyUrl = "socks5://127.0.0.1:9050"

# How long aggregated search results stay cached, in minutes
# Default: 60
#cacheTtlMinutes = 60

# Maximum results returned per search
# Default: 100
#maxResults = 100

# Render date template variables in UTC instead of local time
# Default: false
#utcDates = false

# Check for updates
# Default: true
checkForUpdates = true

# Enable the Prometheus metrics listener
# Default: false
#metricsEnabled = false

# Metrics listener address
# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Metrics listener port
# Default: 9074
#metricsPort = 9074
`
