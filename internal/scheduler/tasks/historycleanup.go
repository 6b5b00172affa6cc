package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/history"
	"github.com/aiodarr/aiodarr/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// HistoryPruner deletes history older than a cutoff.
type HistoryPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ HistoryPruner = (*history.Service)(nil)

// RegisterHistoryCleanupTask registers a daily 2 AM task that deletes history
// entries older than retentionDays. Nothing is registered when retentionDays
// is zero.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, pruner HistoryPruner, retentionDays int, logger zerolog.Logger) error {
	if retentionDays <= 0 {
		return nil
	}
	retention := time.Duration(retentionDays) * 24 * time.Hour
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes history entries older than the configured retention period",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			deleted, err := pruner.DeleteOlderThan(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			logger.Info().Int64("deleted", deleted).Int("retentionDays", retentionDays).Msg("Pruned history")
			return nil
		},
	})
}
