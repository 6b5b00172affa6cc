package tasks

import (
	"context"
	"time"

	"github.com/aiodarr/aiodarr/internal/arr"
	"github.com/aiodarr/aiodarr/internal/bridge"
	"github.com/aiodarr/aiodarr/internal/health"
	"github.com/aiodarr/aiodarr/internal/scheduler"
)

const (
	LibraryHealthTaskID = "library-health"

	libraryHealthInterval = 15 * time.Minute
)

// RegisterLibraryHealthTask checks each library's system status every 15
// minutes and on startup, recording the result in tracker.
func RegisterLibraryHealthTask(sched *scheduler.Scheduler, tracker *health.Service, libraries []arr.Library) error {
	for _, lib := range libraries {
		tracker.RegisterItem(health.CategoryLibraries, bridge.LibraryHealthID(lib), lib.Name())
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          LibraryHealthTaskID,
		Name:        "Library Health",
		Description: "Checks that Radarr and Sonarr are reachable with the configured API keys",
		Interval:    libraryHealthInterval,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			for _, lib := range libraries {
				id := bridge.LibraryHealthID(lib)
				if err := lib.Validate(ctx); err != nil {
					tracker.SetError(health.CategoryLibraries, id, err.Error())
					continue
				}
				tracker.ClearStatus(health.CategoryLibraries, id)
			}
			return nil
		},
	})
}
