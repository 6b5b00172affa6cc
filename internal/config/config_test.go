package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so no stray .env or config.yaml
// is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Schedule.PollIntervalMinutes)
	assert.Equal(t, 24, cfg.Schedule.RetryFailedHours)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.PollInterval())
	assert.Equal(t, 24*time.Hour, cfg.Schedule.RetryCooldown())
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "./data/aiodarr.db", cfg.Database.Path)
	assert.Equal(t, "https://api.real-debrid.com/rest/1.0", cfg.RealDebrid.BaseURL)
	assert.Equal(t, 90, cfg.History.RetentionDays)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("AIOSTREAMS_URL", "http://aio.local/stremio/abc/")
	t.Setenv("RADARR_URL", "http://radarr:7878/")
	t.Setenv("RADARR_API_KEY", " rkey ")
	t.Setenv("SONARR_URL", "http://sonarr:8989")
	t.Setenv("SONARR_API_KEY", "skey")
	t.Setenv("REALDEBRID_API_KEY", "rd")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.test/hook")
	t.Setenv("POLL_INTERVAL_MINUTES", "5")
	t.Setenv("RETRY_FAILED_HOURS", "12")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://aio.local/stremio/abc", cfg.AIOStreams.URL)
	assert.Equal(t, "http://radarr:7878", cfg.Radarr.URL)
	assert.Equal(t, "rkey", cfg.Radarr.APIKey)
	assert.True(t, cfg.Sonarr.Enabled())
	assert.Equal(t, "rd", cfg.RealDebrid.APIKey)
	assert.Equal(t, "https://discord.test/hook", cfg.Discord.WebhookURL)
	assert.Equal(t, 5, cfg.Schedule.PollIntervalMinutes)
	assert.Equal(t, 12, cfg.Schedule.RetryFailedHours)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AIOSTREAMS_URL=http://from-dotenv\nRADARR_URL=http://radarr\nRADARR_API_KEY=k\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AIOSTREAMS_URL")
		os.Unsetenv("RADARR_URL")
		os.Unsetenv("RADARR_API_KEY")
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv", cfg.AIOStreams.URL)
	assert.True(t, cfg.Radarr.Enabled())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "aiodarr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aiostreams:
  url: http://aio.yaml/
sonarr:
  url: http://sonarr.yaml
  api_key: yaml-key
schedule:
  poll_interval_minutes: 30
api:
  address: ":9191"
`), 0o600))
	t.Setenv("POLL_INTERVAL_MINUTES", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://aio.yaml", cfg.AIOStreams.URL)
	assert.Equal(t, "yaml-key", cfg.Sonarr.APIKey)
	assert.Equal(t, 15, cfg.Schedule.PollIntervalMinutes, "environment wins over file")
	assert.Equal(t, ":9191", cfg.API.Address)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.AIOStreams.URL = "http://aio"
		cfg.Radarr = ArrConfig{URL: "http://radarr", APIKey: "k"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "sonarr only", mutate: func(c *Config) {
			c.Radarr = ArrConfig{}
			c.Sonarr = ArrConfig{URL: "http://sonarr", APIKey: "k"}
		}},
		{name: "missing aiostreams", mutate: func(c *Config) { c.AIOStreams.URL = "" }, wantErr: "AIOSTREAMS_URL"},
		{name: "no library", mutate: func(c *Config) { c.Radarr = ArrConfig{} }, wantErr: "at least one"},
		{name: "radarr without key", mutate: func(c *Config) {
			c.Sonarr = ArrConfig{URL: "http://sonarr", APIKey: "k"}
			c.Radarr.APIKey = ""
		}, wantErr: "RADARR_API_KEY"},
		{name: "zero interval", mutate: func(c *Config) { c.Schedule.PollIntervalMinutes = 0 }, wantErr: "POLL_INTERVAL_MINUTES"},
		{name: "negative cooldown", mutate: func(c *Config) { c.Schedule.RetryFailedHours = -1 }, wantErr: "RETRY_FAILED_HOURS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
