// Package notification reports grab outcomes to an external channel.
package notification

import (
	"context"
	"time"

	"github.com/aiodarr/aiodarr/internal/media"
)

// SuccessEvent is sent immediately when an item was grabbed.
type SuccessEvent struct {
	Kind        media.Kind
	Title       string
	IMDbID      string
	Quality     media.Quality
	StreamTitle string
	Attempts    int
	OccurredAt  time.Time
}

// FailureEvent is collected during a cycle and sent in one batch.
type FailureEvent struct {
	Kind       media.Kind
	Title      string
	Reason     string
	Details    map[string]string
	OccurredAt time.Time
}

// Notifier delivers outcome events. Implementations handle their own
// transport errors and never report them to the caller.
type Notifier interface {
	NotifySuccess(ctx context.Context, event SuccessEvent)
	CollectFailure(event FailureEvent)
	// Flush sends collected failures and clears them.
	Flush(ctx context.Context)
}

// Nop discards every event.
type Nop struct{}

func (Nop) NotifySuccess(context.Context, SuccessEvent) {}

func (Nop) CollectFailure(FailureEvent) {}

func (Nop) Flush(context.Context) {}
