package tasks

import (
	"context"
	"time"

	"github.com/aiodarr/aiodarr/internal/scheduler"
)

const CycleTaskID = "cycle"

// CycleRunner runs one poll cycle.
type CycleRunner interface {
	Run(ctx context.Context) error
}

// RegisterCycleTask registers the poll cycle at the given interval.
func RegisterCycleTask(sched *scheduler.Scheduler, runner CycleRunner, interval time.Duration, runOnStart bool) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CycleTaskID,
		Name:        "Poll Cycle",
		Description: "Searches cached streams for wanted movies and episodes",
		Interval:    interval,
		Func:        runner.Run,
		RunOnStart:  runOnStart,
	})
}
