// Package config loads aiodarr settings from defaults, an optional YAML file,
// a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	AIOStreams AIOStreamsConfig `mapstructure:"aiostreams"`
	Radarr     ArrConfig        `mapstructure:"radarr"`
	Sonarr     ArrConfig        `mapstructure:"sonarr"`
	RealDebrid RealDebridConfig `mapstructure:"realdebrid"`
	Discord    DiscordConfig    `mapstructure:"discord"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Database   DatabaseConfig   `mapstructure:"database"`
	History    HistoryConfig    `mapstructure:"history"`
	API        APIConfig        `mapstructure:"api"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AIOStreamsConfig points at the stream discovery instance.
type AIOStreamsConfig struct {
	URL string `mapstructure:"url"`
}

// ArrConfig holds a Radarr or Sonarr connection.
type ArrConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Enabled reports whether both URL and key are set.
func (c ArrConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != ""
}

// RealDebridConfig enables post-trigger verification when APIKey is set.
type RealDebridConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DiscordConfig enables webhook notifications when WebhookURL is set.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
	AvatarURL  string `mapstructure:"avatar_url"`
}

// ScheduleConfig controls the polling loop and retry cooldown.
type ScheduleConfig struct {
	PollIntervalMinutes int  `mapstructure:"poll_interval_minutes"`
	RetryFailedHours    int  `mapstructure:"retry_failed_hours"`
	RunOnStart          bool `mapstructure:"run_on_start"`
}

// PollInterval returns the polling interval as a duration.
func (c ScheduleConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

// RetryCooldown returns how long a failed item is skipped.
func (c ScheduleConfig) RetryCooldown() time.Duration {
	return time.Duration(c.RetryFailedHours) * time.Hour
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig controls outcome history retention.
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// APIConfig holds the status API listener. An empty Address disables it.
type APIConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// envBindings maps config keys to the environment variable names used by
// existing deployments.
var envBindings = map[string]string{
	"aiostreams.url":                 "AIOSTREAMS_URL",
	"radarr.url":                     "RADARR_URL",
	"radarr.api_key":                 "RADARR_API_KEY",
	"sonarr.url":                     "SONARR_URL",
	"sonarr.api_key":                 "SONARR_API_KEY",
	"realdebrid.api_key":             "REALDEBRID_API_KEY",
	"discord.webhook_url":            "DISCORD_WEBHOOK_URL",
	"schedule.poll_interval_minutes": "POLL_INTERVAL_MINUTES",
	"schedule.retry_failed_hours":    "RETRY_FAILED_HOURS",
	"database.path":                  "DATABASE_PATH",
	"api.address":                    "API_ADDRESS",
	"logging.level":                  "LOG_LEVEL",
	"logging.format":                 "LOG_FORMAT",
	"logging.path":                   "LOG_PATH",
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
// A .env file in the working directory is loaded first; variables already
// set in the process environment win over it.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.aiodarr")
	}

	v.SetEnvPrefix("AIODARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env, "AIODARR_"+env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("aiostreams.url", "")
	v.SetDefault("radarr.url", "")
	v.SetDefault("radarr.api_key", "")
	v.SetDefault("sonarr.url", "")
	v.SetDefault("sonarr.api_key", "")
	v.SetDefault("realdebrid.api_key", "")
	v.SetDefault("realdebrid.base_url", d.RealDebrid.BaseURL)
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("discord.username", d.Discord.Username)
	v.SetDefault("discord.avatar_url", "")
	v.SetDefault("schedule.poll_interval_minutes", d.Schedule.PollIntervalMinutes)
	v.SetDefault("schedule.retry_failed_hours", d.Schedule.RetryFailedHours)
	v.SetDefault("schedule.run_on_start", d.Schedule.RunOnStart)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("history.retention_days", d.History.RetentionDays)
	v.SetDefault("api.address", "")
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		RealDebrid: RealDebridConfig{BaseURL: "https://api.real-debrid.com/rest/1.0"},
		Discord:    DiscordConfig{Username: "AIOStreams Bridge"},
		Schedule: ScheduleConfig{
			PollIntervalMinutes: 10,
			RetryFailedHours:    24,
			RunOnStart:          true,
		},
		Database: DatabaseConfig{Path: "./data/aiodarr.db"},
		History:  HistoryConfig{RetentionDays: 90},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

func (c *Config) normalize() {
	c.AIOStreams.URL = trimURL(c.AIOStreams.URL)
	c.Radarr.URL = trimURL(c.Radarr.URL)
	c.Sonarr.URL = trimURL(c.Sonarr.URL)
	c.RealDebrid.BaseURL = trimURL(c.RealDebrid.BaseURL)
	c.Radarr.APIKey = strings.TrimSpace(c.Radarr.APIKey)
	c.Sonarr.APIKey = strings.TrimSpace(c.Sonarr.APIKey)
	c.RealDebrid.APIKey = strings.TrimSpace(c.RealDebrid.APIKey)
	c.Discord.WebhookURL = strings.TrimSpace(c.Discord.WebhookURL)
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// Validate checks the settings required to run a cycle.
func (c *Config) Validate() error {
	var errs []error
	if c.AIOStreams.URL == "" {
		errs = append(errs, errors.New("AIOSTREAMS_URL is required"))
	}
	if !c.Radarr.Enabled() && !c.Sonarr.Enabled() {
		errs = append(errs, errors.New("at least one of Radarr (RADARR_URL, RADARR_API_KEY) or Sonarr (SONARR_URL, SONARR_API_KEY) must be configured"))
	}
	if c.Radarr.URL != "" && c.Radarr.APIKey == "" {
		errs = append(errs, errors.New("RADARR_API_KEY is required when RADARR_URL is set"))
	}
	if c.Sonarr.URL != "" && c.Sonarr.APIKey == "" {
		errs = append(errs, errors.New("SONARR_API_KEY is required when SONARR_URL is set"))
	}
	if c.Schedule.PollIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL_MINUTES must be positive, got %d", c.Schedule.PollIntervalMinutes))
	}
	if c.Schedule.RetryFailedHours <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_FAILED_HOURS must be positive, got %d", c.Schedule.RetryFailedHours))
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history retention must not be negative, got %d", c.History.RetentionDays))
	}
	return errors.Join(errs...)
}
