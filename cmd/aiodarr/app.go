package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/api"
	"github.com/aiodarr/aiodarr/internal/arr"
	"github.com/aiodarr/aiodarr/internal/bridge"
	"github.com/aiodarr/aiodarr/internal/config"
	"github.com/aiodarr/aiodarr/internal/database"
	"github.com/aiodarr/aiodarr/internal/debrid"
	"github.com/aiodarr/aiodarr/internal/grab"
	"github.com/aiodarr/aiodarr/internal/health"
	"github.com/aiodarr/aiodarr/internal/history"
	"github.com/aiodarr/aiodarr/internal/logger"
	"github.com/aiodarr/aiodarr/internal/notification"
	"github.com/aiodarr/aiodarr/internal/notification/discord"
	"github.com/aiodarr/aiodarr/internal/processed"
	"github.com/aiodarr/aiodarr/internal/scheduler"
	"github.com/aiodarr/aiodarr/internal/scheduler/tasks"
	"github.com/aiodarr/aiodarr/internal/streams"
)

// app holds the wired components for one process.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	history   *history.Service
	store     *processed.Store
	health    *health.Service
	libraries []arr.Library
	cycles    *bridge.Service
}

// newApp opens the database and wires the cycle service.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		history: history.NewService(db.Conn(), log.Logger),
		store:   processed.New(cfg.Schedule.RetryCooldown()),
		health:  health.NewService(log.Logger),
	}
	a.health.RegisterItem(health.CategoryStreams, health.IDAIOStreams, "AIOStreams")

	if cfg.Radarr.Enabled() {
		a.libraries = append(a.libraries, arr.NewRadarrClient(arr.ConnectionConfig{URL: cfg.Radarr.URL, APIKey: cfg.Radarr.APIKey}))
		log.Info().Msg("Radarr client initialized")
	}
	if cfg.Sonarr.Enabled() {
		a.libraries = append(a.libraries, arr.NewSonarrClient(arr.ConnectionConfig{URL: cfg.Sonarr.URL, APIKey: cfg.Sonarr.APIKey}))
		log.Info().Msg("Sonarr client initialized")
	}

	var attemptOpts []grab.Option
	if cfg.RealDebrid.APIKey != "" {
		attemptOpts = append(attemptOpts, grab.WithVerifier(debrid.NewClient(cfg.RealDebrid.BaseURL, cfg.RealDebrid.APIKey, log.Logger)))
		a.health.RegisterItem(health.CategoryDebrid, health.IDRealDebrid, "Real-Debrid")
		log.Info().Msg("Real-Debrid client initialized for stream verification")
	}

	a.cycles = bridge.NewService(bridge.Dependencies{
		Libraries: a.libraries,
		Catalog:   streams.NewClient(cfg.AIOStreams.URL, log.Logger),
		Attempter: grab.NewAttempter(log.Logger, attemptOpts...),
		Store:     a.store,
		Notifier:  newNotifier(cfg, log.Logger),
		History:   a.history,
		Health:    a.health,
	}, log.Logger)

	return a, nil
}

func newNotifier(cfg *config.Config, log zerolog.Logger) notification.Notifier {
	if cfg.Discord.WebhookURL == "" {
		return notification.Nop{}
	}
	log.Info().Msg("Discord notifier initialized")
	return discordNotifier(cfg, log)
}

func discordNotifier(cfg *config.Config, log zerolog.Logger) *discord.Notifier {
	return discord.New(discord.Settings{
		WebhookURL: cfg.Discord.WebhookURL,
		Username:   cfg.Discord.Username,
		AvatarURL:  cfg.Discord.AvatarURL,
	}, nil, log)
}

// newScheduler registers the poll cycle, library health checks and history
// cleanup.
func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.log.Logger)
	if err != nil {
		return nil, err
	}
	if err := tasks.RegisterCycleTask(sched, a.cycles, a.cfg.Schedule.PollInterval(), a.cfg.Schedule.RunOnStart); err != nil {
		return nil, fmt.Errorf("register cycle task: %w", err)
	}
	if err := tasks.RegisterLibraryHealthTask(sched, a.health, a.libraries); err != nil {
		return nil, fmt.Errorf("register library health: %w", err)
	}
	if err := tasks.RegisterHistoryCleanupTask(sched, a.history, a.cfg.History.RetentionDays, a.log.Logger); err != nil {
		return nil, fmt.Errorf("register history cleanup: %w", err)
	}
	return sched, nil
}

// newAPIServer returns nil when no API address is configured.
func (a *app) newAPIServer(sched *scheduler.Scheduler) *api.Server {
	if a.cfg.API.Address == "" {
		return nil
	}
	return api.NewServer(api.Options{
		Version:   version,
		Cycles:    a.cycles,
		Store:     a.store,
		Scheduler: sched,
		History:   a.history,
		Health:    a.health,
		Logs:      a.log.Recent(),
		LogPath:   a.cfg.Logging.Path,
	}, a.log.Logger)
}

func (a *app) Close() error {
	return a.db.Close()
}
