package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/searchbrr/internal/domain"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDatabasePathConfiguration(t *testing.T) {
	tests := []struct {
		name           string
		config         string
		envVars        map[string]string
		expectedDBPath string
	}{
		{
			name: "default_behavior_db_next_to_config",
			config: `
host = "localhost"
port = 3420
logLevel = "INFO"
`,
			expectedDBPath: "searchbrr.db",
		},
		{
			name: "explicit_path_in_config",
			config: `
host = "localhost"
port = 3420
databasePath = "/var/db/searchbrr/custom.db"
`,
			expectedDBPath: "custom.db",
		},
		{
			name: "explicit_path_via_env_var",
			config: `
host = "localhost"
port = 3420
`,
			envVars: map[string]string{
				"SEARCHBRR__DATABASE_PATH": "/var/db/searchbrr/searchbrr.db",
			},
			expectedDBPath: "/var/db/searchbrr/searchbrr.db",
		},
		{
			name: "env_var_overrides_config",
			config: `
host = "localhost"
port = 3420
databasePath = "/original/path.db"
`,
			envVars: map[string]string{
				"SEARCHBRR__DATABASE_PATH": "/override/path.db",
			},
			expectedDBPath: "/override/path.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, t.TempDir(), tt.config)

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := New(configPath)
			require.NoError(t, err)
			require.NotNil(t, cfg)

			dbPath := cfg.GetDatabasePath()
			assert.Contains(t, dbPath, tt.expectedDBPath)

			if filepath.IsAbs(tt.expectedDBPath) {
				assert.True(t, filepath.IsAbs(dbPath), "expected absolute path")
			}
		})
	}
}

func TestDatabasePath_NextToConfigByDefault(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, `
host = "localhost"
port = 3420
logLevel = "INFO"
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "searchbrr.db"), cfg.GetDatabasePath())
}

func TestDockerEnvironmentCompatibility(t *testing.T) {
	// In Docker, XDG_CONFIG_HOME=/config should be used directly.
	t.Setenv("XDG_CONFIG_HOME", "/config")
	assert.Equal(t, "/config", getDefaultConfigDir())
}

func TestGeneratesDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	cfg, err := New(configPath)
	require.NoError(t, err)
	require.FileExists(t, configPath)

	assert.Equal(t, "127.0.0.1", cfg.Config.Host)
	assert.Equal(t, 3420, cfg.Config.Port)
	assert.Equal(t, "INFO", cfg.Config.LogLevel)
	assert.Equal(t, 60, cfg.Config.CacheTTLMinutes)
	assert.Equal(t, 100, cfg.Config.MaxResults)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# config.toml - Auto-generated on first run")
}

func TestEnvOverrides(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
host = "localhost"
port = 3420
proxyUrl = "socks5://old:1080"
`)

	t.Setenv("SEARCHBRR__PORT", "9117")
	t.Setenv("SEARCHBRR__PROXY_URL", "socks5://new:1080")
	t.Setenv("SEARCHBRR__UTC_DATES", "true")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9117, cfg.Config.Port)
	assert.Equal(t, "socks5://new:1080", cfg.Config.ProxyURL)
	assert.True(t, cfg.Config.UTCDates)
}

func TestUpdatePersistsConfig(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), `
host = "localhost"
port = 3420
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	err = cfg.Update(func(c *domain.Config) {
		c.ProxyURL = "http://127.0.0.1:8118"
		c.DisabledIndexers = []string{"exampletracker"}
	})
	require.NoError(t, err)

	reloaded, err := New(configPath)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8118", reloaded.Config.ProxyURL)
	assert.Equal(t, []string{"exampletracker"}, reloaded.Config.DisabledIndexers)
}

func TestIndexerDirs(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, `
host = "localhost"
port = 3420
`)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "indexers", "available"), cfg.GetIndexersAvailableDir())
	assert.Equal(t, filepath.Join(tmpDir, "indexers", "active", "native"), cfg.GetIndexersActiveDir())
}
