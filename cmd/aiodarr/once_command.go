package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aiodarr/aiodarr/internal/bridge"
	"github.com/aiodarr/aiodarr/internal/daemon"
)

func newOnceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.validConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			defer log.Close()

			unlock, err := daemon.AcquireLock(daemon.LockPath(cfg.Database.Path))
			if err != nil {
				return err
			}
			defer unlock()

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(sigCtx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.cycles.RunCycle(sigCtx)
			fmt.Fprintln(cmd.OutOrStdout(), renderCycle(result))
			return err
		},
	}
}

func renderCycle(result bridge.CycleResult) string {
	rows := make([][]string, 0, len(result.Items))
	for _, item := range result.Items {
		detail := item.Reason
		if item.State == bridge.StateSucceeded {
			detail = fmt.Sprintf("%s (%s)", item.Stream, item.Quality)
		}
		rows = append(rows, []string{
			item.Key,
			item.Title,
			string(item.State),
			strconv.Itoa(item.Attempts),
			detail,
		})
	}
	out := renderTable(
		[]string{"Key", "Title", "State", "Attempts", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
	return fmt.Sprintf("%s\nCycle %s: %d items, %d succeeded, %d skipped in %s",
		out, result.ID, len(result.Items),
		result.Count(bridge.StateSucceeded), result.Count(bridge.StateSkip),
		result.Duration.Round(time.Millisecond))
}
