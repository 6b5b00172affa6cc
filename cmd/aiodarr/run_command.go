package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiodarr/aiodarr/internal/daemon"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the poll loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.validConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer log.Close()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().
				Str("version", version).
				Str("aiostreams", cfg.AIOStreams.URL).
				Dur("pollInterval", cfg.Schedule.PollInterval()).
				Dur("retryCooldown", cfg.Schedule.RetryCooldown()).
				Msg("Starting aiodarr")

			a, err := newApp(sigCtx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.newScheduler()
			if err != nil {
				return err
			}

			var server daemon.APIServer
			if s := a.newAPIServer(sched); s != nil {
				server = s
			}

			d, err := daemon.New(daemon.LockPath(cfg.Database.Path), sched, server, cfg.API.Address, log.Logger)
			if err != nil {
				return err
			}
			return d.Run(sigCtx)
		},
	}
}
